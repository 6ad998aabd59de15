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
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/tombee/restclient/pkg/restclient/oauth"
)

func newTokenCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage OAuth2 tokens",
		Long:  `Exchange authorization codes and obtain or refresh access tokens with the oauth2 adapter.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code and print the token endpoint response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := oauthAdapter(g, cmd)
			if err != nil {
				return err
			}
			res, err := adapter.ProcessRequestToken(cmd.Context(), args[0])
			if err != nil {
				return NewRequestError("authorization code exchange failed", err)
			}
			if err := writeResult(cmd.OutOrStdout(), res, false, g.json); err != nil {
				return err
			}
			if res.StatusCode != 200 {
				return &ExitError{Code: ExitAuthError, Message: fmt.Sprintf("token endpoint returned HTTP %d", res.StatusCode)}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the access token, fetching or refreshing it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := oauthAdapter(g, cmd)
			if err != nil {
				return err
			}
			if _, err := adapter.AccessToken(cmd.Context()); err != nil {
				return NewRequestError("failed to obtain access token", err)
			}
			return writeToken(cmd.OutOrStdout(), adapter.CurrentToken(), g.json)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Force a refresh-token grant and print the new token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := oauthAdapter(g, cmd)
			if err != nil {
				return err
			}
			if _, err := adapter.Refresh(cmd.Context()); err != nil {
				return NewRequestError("token refresh failed", err)
			}
			return writeToken(cmd.OutOrStdout(), adapter.CurrentToken(), g.json)
		},
	})

	return cmd
}

func oauthAdapter(g *globalFlags, cmd *cobra.Command) (*oauth.Adapter, error) {
	c, err := g.newClient(cmd)
	if err != nil {
		return nil, err
	}
	adapter, ok := c.Adapter().(*oauth.Adapter)
	if !ok {
		return nil, NewConfigError("token commands require the oauth2 adapter", nil)
	}
	return adapter, nil
}

type tokenOutput struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Expiry       string `json:"expiry,omitempty"`
}

func writeToken(w io.Writer, tok *oauth2.Token, asJSON bool) error {
	out := tokenOutput{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		out.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "access_token:  %s\n", out.AccessToken)
	if out.RefreshToken != "" {
		fmt.Fprintf(w, "refresh_token: %s\n", out.RefreshToken)
	}
	if out.Expiry != "" {
		fmt.Fprintf(w, "expiry:        %s\n", out.Expiry)
	}
	return nil
}
