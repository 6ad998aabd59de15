// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Wrap prefixes err with message, keeping err in the chain.
// A nil err yields nil.
//
//	if err := yaml.Unmarshal(data, c); err != nil {
//	    return errors.Wrap(err, "failed to parse YAML")
//	}
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// As finds the first error in err's tree that matches target and sets target
// to it. See errors.As.
//
//	var oauthErr *OAuthError
//	if errors.As(err, &oauthErr) && oauthErr.Reason == ReasonExpiredNoRefresh {
//	    // restart the authorization flow
//	}
func As(err error, target any) bool {
	return errors.As(err, target)
}
