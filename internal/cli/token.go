package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"quizquest/internal/config"
)

// NewTokenCmd issues a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tok, err := newVerifier(cfg).Issue(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the token subject")
	return cmd
}
