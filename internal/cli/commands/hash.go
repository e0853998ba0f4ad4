package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/web/auth"
)

// NewHashSecretCommand creates the hash-secret command
func NewHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [SECRET]",
		Short: "Hash a client secret for auth.clients",
		Long: `Print the bcrypt hash of SECRET, or of the first line read from stdin when
no argument is given. Put the hash under auth.clients in fielddoc.yaml; the
client can then exchange its id and secret for a token at POST /auth/token.

Examples:
  echo -n "$CI_SECRET" | fielddoc hash-secret
  fielddoc hash-secret s3cret`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret from stdin: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashSecret(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
