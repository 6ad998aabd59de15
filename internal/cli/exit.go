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

package cli

import (
	"fmt"
	"io"
	"os"

	rcerrors "github.com/tombee/restclient/pkg/errors"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitRequestFailed = 1
	ExitConfigError   = 2
	ExitAuthError     = 3
	ExitHTTPError     = 4
	ExitUsage         = 64 // EX_USAGE from sysexits.h
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates an error for configuration failures
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// NewUsageError creates an error for invalid command-line input
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitUsage, Message: msg, Cause: cause}
}

// NewRequestError creates an error for a failed call. The exit code is
// refined from the cause: OAuth failures and HTTP error statuses get their
// own codes.
func NewRequestError(msg string, cause error) *ExitError {
	code := ExitRequestFailed
	var (
		oauthErr  *rcerrors.OAuthError
		statusErr *rcerrors.StatusError
		cfgErr    *rcerrors.ConfigError
	)
	switch {
	case rcerrors.As(cause, &oauthErr):
		code = ExitAuthError
	case rcerrors.As(cause, &statusErr):
		code = ExitHTTPError
	case rcerrors.As(cause, &cfgErr):
		code = ExitConfigError
	}
	return &ExitError{Code: code, Message: msg, Cause: cause}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if rcerrors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitRequestFailed
}

// PrintError writes err and any user-facing suggestion to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err.Error())

	var userErr rcerrors.UserVisibleError
	if rcerrors.As(err, &userErr) && userErr.IsUserVisible() {
		if suggestion := userErr.Suggestion(); suggestion != "" {
			fmt.Fprintln(w, "Suggestion:", suggestion)
		}
	}
}

// HandleExitError prints err to stderr and exits with its exit code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	os.Exit(ExitCode(err))
}
