package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/web/auth"
)

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	var (
		scopes []string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Issue a bearer token for the docs API",
		Long: `Sign a token for SUBJECT with auth.secret. Without --scope the token
carries the configured auth.scope.

Examples:
  fielddoc token ci-bot
  fielddoc token alice --scope docs:read --ttl 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Auth.Secret == "" {
				return fmt.Errorf("auth.secret is not configured")
			}
			if !cmd.Flags().Changed("scope") {
				scopes = []string{a.cfg.Auth.Scope}
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = a.cfg.Auth.TokenTTL
			}

			token, err := auth.NewTokenService(a.cfg.Auth.Secret, ttl).Issue(args[0], scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&scopes, "scope", "s", nil, "Scopes granted by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (overrides auth.token_ttl)")

	return cmd
}
