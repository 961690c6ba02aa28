package main

import (
	"context"
	"fmt"
	"io"

	"github.com/proppicks/auth-gateway/app"
	"github.com/proppicks/auth-gateway/config"
	"github.com/proppicks/auth-gateway/models"
	"github.com/spf13/cobra"
)

// roleSetter is the slice of auth.Service the user commands need
type roleSetter interface {
	SetRole(ctx context.Context, email string, role models.UserRole) (*models.User, error)
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer user accounts",
	}

	var role string
	promote := &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant a role to a registered account",
		Long: `Grant a role to the account registered under email. Use this to
create the first admin; later changes go through PATCH /api/admin/users/{id}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromote(cmd, args[0], models.UserRole(role))
		},
	}
	promote.Flags().StringVar(&role, "role", string(models.RoleAdmin), "role to assign (admin or standard)")
	cmd.AddCommand(promote)

	return cmd
}

func runPromote(cmd *cobra.Command, email string, role models.UserRole) (err error) {
	ctx := cmd.Context()

	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := initLogger()
	if err != nil {
		return err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	// Close drains the audit queue so the role change is recorded
	defer func() {
		if closeErr := deps.Close(context.Background()); err == nil {
			err = closeErr
		}
	}()

	return setUserRole(ctx, deps.AuthService, email, role, cmd.OutOrStdout())
}

func setUserRole(ctx context.Context, svc roleSetter, email string, role models.UserRole, out io.Writer) error {
	user, err := svc.SetRole(ctx, email, role)
	if err != nil {
		return fmt.Errorf("failed to set role for %s: %w", email, err)
	}

	_, err = fmt.Fprintf(out, "%s (%s) now has role %s\n", user.Email, user.ID, user.Role)
	return err
}
