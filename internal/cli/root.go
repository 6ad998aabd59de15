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

// Package cli implements the restclient command-line tool.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/restclient/internal/log"
	"github.com/tombee/restclient/pkg/bootstrap"
	"github.com/tombee/restclient/pkg/config"
	"github.com/tombee/restclient/pkg/restclient"
)

// Build-time version information
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	baseURL    string
	verbose    bool
	json       bool
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "Path to config file (default: ~/.config/restclient/config.yaml)")
	fs.StringVar(&g.baseURL, "base-url", "", "Override the configured base URL")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVar(&g.json, "json", false, "Output in JSON format")
}

func (g *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}

	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func (g *globalFlags) newClient(cmd *cobra.Command) (*restclient.Client, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()

	c, err := bootstrap.New(cfg, bootstrap.WithLogger(log.New(logCfg)))
	if err != nil {
		return nil, NewConfigError("failed to create client", err)
	}
	return c, nil
}

// NewRootCommand creates the root Cobra command.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "restclient",
		Short: "restclient - call REST APIs with OAuth2 or static bearer tokens",
		Long: `restclient issues REST calls against a configured base URL, attaching a
bearer token obtained through the OAuth2 authorization-code and
refresh-token grants, or a static token.

Configuration is read from ~/.config/restclient/config.yaml (or --config)
and RESTCLIENT_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	g.register(cmd.PersistentFlags())

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		cmd.AddCommand(newRequestCommand(g, method))
	}
	cmd.AddCommand(newTokenCommand(g))
	cmd.AddCommand(newVersionCommand(g))

	return cmd
}
