package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/wastebank/internal/identity"
)

func newOperatorCommand(open Opener) *cobra.Command {
	opCmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage cashier operators",
	}
	opCmd.AddCommand(newOperatorAddCommand(open))
	return opCmd
}

func newOperatorAddCommand(open Opener) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an operator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("OPERATOR_PASSWORD")
			}
			s, closeStore, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			// The token settings are irrelevant here; only Register is used.
			auth := identity.NewAuthenticator(s, "", time.Minute)
			op, err := auth.Register(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("register %s: %w", email, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "operator %s registered (%s)\n", op.Email, op.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "operator email")
	cmd.Flags().StringVar(&password, "password", "", "operator password (defaults to $OPERATOR_PASSWORD)")
	cmd.MarkFlagRequired("email")

	return cmd
}
