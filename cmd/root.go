// Package cmd implements the seo-pinger command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonesrussell/seo-pinger/cmd/common"
	"github.com/jonesrussell/seo-pinger/cmd/endpoints"
	"github.com/jonesrussell/seo-pinger/cmd/serve"
	"github.com/jonesrussell/seo-pinger/cmd/submit"
	"github.com/jonesrussell/seo-pinger/infrastructure/jwt"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

const defaultTokenTTL = 24 * time.Hour

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &common.GlobalFlags{}

	root := &cobra.Command{
		Use:   "seo-pinger",
		Short: "Notify search engines and ping services about new content",
		Long: `seo-pinger announces sitemaps, feeds and pages to search engine and blog
ping services. Endpoints come from a built-in catalog, user-defined custom
endpoints and, optionally, an AI suggestion provider.`,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "",
		"config file (default is $CONFIG_PATH or ./config.yml)")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seo-pinger version %s\n", Version)
		},
	})
	root.AddCommand(submit.Command(flags))
	root.AddCommand(endpoints.Command(flags))
	root.AddCommand(serve.Command(flags))
	root.AddCommand(tokenCommand(flags))

	return root
}

// tokenCommand issues a bearer token for the protected API.
func tokenCommand(flags *common.GlobalFlags) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Issue an API token signed with auth.jwt_secret",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(flags, true)
			if err != nil {
				return err
			}
			if deps.Config.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set; the API is open")
			}

			token, err := jwt.Issue(deps.Config.Auth.JWTSecret, subject, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "seo-pinger-cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "token lifetime; 0 never expires")
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
