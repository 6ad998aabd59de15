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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/restclient/pkg/restclient"
	"github.com/tombee/restclient/pkg/transport"
)

func newRequestCommand(g *globalFlags, method string) *cobra.Command {
	var (
		headers []string
		form    bool
		timeout time.Duration
		raise   bool
		include bool
	)

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <path> [key=value | key:=json]...",
		Short: fmt.Sprintf("Send a %s request", method),
		Long: fmt.Sprintf(`Send a %s request to <path> relative to the base URL.

Parameters are given as key=value (string) or key:=json (raw JSON value).
They are sent in the query string for GET and DELETE, and in the body
otherwise (JSON unless --form is set).`, method),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return NewUsageError("invalid parameter", err)
			}

			opts := []restclient.CallOption{}
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok || strings.TrimSpace(name) == "" {
					return NewUsageError(fmt.Sprintf("invalid header %q, expected \"Name: value\"", h), nil)
				}
				opts = append(opts, restclient.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
			}
			if form {
				opts = append(opts, restclient.WithOption(transport.OptionEncoding, transport.EncodingForm))
			}
			if timeout > 0 {
				opts = append(opts, restclient.WithOption(transport.OptionTimeout, timeout))
			}

			c, err := g.newClient(cmd)
			if err != nil {
				return err
			}
			if raise {
				c.RegisterResponseHandler(restclient.DefaultKey, restclient.Named(restclient.OperationRaiseForStatus))
			}

			res, err := send(cmd, c, method, args[0], params, opts)
			if err != nil {
				return NewRequestError(fmt.Sprintf("%s %s failed", method, args[0]), err)
			}
			return writeResult(cmd.OutOrStdout(), res, include, g.json)
		},
	}

	fs := cmd.Flags()
	fs.StringArrayVarP(&headers, "header", "H", nil, `Add a request header ("Name: value"), repeatable`)
	fs.BoolVar(&form, "form", false, "Send body parameters form-encoded")
	fs.DurationVar(&timeout, "timeout", 0, "Per-request timeout (e.g. 5s)")
	fs.BoolVar(&raise, "fail", false, "Exit with an error on HTTP status >= 400")
	fs.BoolVarP(&include, "include", "i", false, "Print the status line and response headers")

	return cmd
}

func send(cmd *cobra.Command, c *restclient.Client, method, path string, params transport.Params, opts []restclient.CallOption) (*transport.Result, error) {
	ctx := cmd.Context()
	switch method {
	case http.MethodGet:
		return c.Get(ctx, path, params, opts...)
	case http.MethodPost:
		return c.Post(ctx, path, params, opts...)
	case http.MethodPut:
		return c.Put(ctx, path, params, opts...)
	case http.MethodPatch:
		return c.Patch(ctx, path, params, opts...)
	case http.MethodDelete:
		return c.Delete(ctx, path, params, opts...)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
}

// parseParams turns key=value and key:=json arguments into Params.
func parseParams(args []string) (transport.Params, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := transport.Params{}
	for _, arg := range args {
		if key, raw, ok := strings.Cut(arg, ":="); ok && !strings.Contains(key, "=") {
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, fmt.Errorf("%s: invalid JSON value: %w", key, err)
			}
			params[key] = v
			continue
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q: expected key=value or key:=json", arg)
		}
		params[key] = value
	}
	return params, nil
}

type resultOutput struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

func writeResult(w io.Writer, res *transport.Result, include, asJSON bool) error {
	if asJSON {
		out := resultOutput{Status: res.StatusCode, Body: bodyValue(res)}
		if include {
			out.Headers = make(map[string]string, len(res.Headers))
			for name := range res.Headers {
				out.Headers[name] = res.Headers.Get(name)
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if include {
		fmt.Fprintf(w, "HTTP %d %s\n", res.StatusCode, http.StatusText(res.StatusCode))
		for _, name := range slices.Sorted(maps.Keys(res.Headers)) {
			fmt.Fprintf(w, "%s: %s\n", name, strings.Join(res.Headers[name], ", "))
		}
		fmt.Fprintln(w)
	}

	if len(res.Body) == 0 {
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, res.Body, "", "  "); err == nil {
		pretty.WriteByte('\n')
		_, err := w.Write(pretty.Bytes())
		return err
	}
	_, err := w.Write(res.Body)
	return err
}

// bodyValue returns the decoded JSON body, or the raw body as a string.
func bodyValue(res *transport.Result) any {
	if len(res.Body) == 0 {
		return nil
	}
	if v, err := res.Data(); err == nil {
		return v
	}
	return string(res.Body)
}
