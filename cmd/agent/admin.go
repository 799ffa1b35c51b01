package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/guiqiqi/itmo-moodle-agent/internal/app"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
)

// adminTask runs fn against a started admin agent.
func adminTask(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Services) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	agent, err := app.NewAdmin(cfg)
	if err != nil {
		return err
	}
	return agent.RunTask(cmd.Context(), func(ctx context.Context) error {
		return fn(ctx, agent.Services())
	})
}

// byEmail wraps an operation on one identity looked up by email.
func byEmail(email *string, fn func(ctx context.Context, svc *app.Services, ident *identity.Identity) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return adminTask(cmd, func(ctx context.Context, svc *app.Services) error {
			ident, err := svc.Identities.GetByEmail(ctx, *email)
			if err != nil {
				return err
			}
			return fn(ctx, svc, ident)
		})
	}
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage identities",
	}
	cmd.PersistentFlags().StringVar(&email, "email", "", "identity email")
	_ = cmd.MarkPersistentFlagRequired("email")

	disable := &cobra.Command{
		Use:   "disable",
		Short: "Disable an identity and revoke its refresh token",
		RunE: byEmail(&email, func(ctx context.Context, svc *app.Services, ident *identity.Identity) error {
			return svc.Accounts.DisableIdentity(ctx, ident.ID)
		}),
	}
	enable := &cobra.Command{
		Use:   "enable",
		Short: "Enable a disabled identity",
		RunE: byEmail(&email, func(ctx context.Context, svc *app.Services, ident *identity.Identity) error {
			return svc.Accounts.EnableIdentity(ctx, ident.ID)
		}),
	}
	del := &cobra.Command{
		Use:   "delete",
		Short: "Mark an identity deleted and free its email",
		RunE: byEmail(&email, func(ctx context.Context, svc *app.Services, ident *identity.Identity) error {
			return svc.Accounts.DeleteIdentity(ctx, ident.ID)
		}),
	}
	reset := &cobra.Command{
		Use:   "reset-password",
		Short: "Replace an identity's password",
		RunE: byEmail(&email, func(ctx context.Context, svc *app.Services, ident *identity.Identity) error {
			return svc.Accounts.ResetPassword(ctx, ident.ID, password)
		}),
	}
	reset.Flags().StringVar(&password, "password", "", "new password")
	_ = reset.MarkFlagRequired("password")

	cmd.AddCommand(disable, enable, del, reset)
	return cmd
}

// NewGroupCmd creates the group subcommand.
func NewGroupCmd() *cobra.Command {
	var email, group string
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage group membership",
	}
	cmd.PersistentFlags().StringVar(&email, "email", "", "identity email")
	cmd.PersistentFlags().StringVar(&group, "group", "", "group name")
	_ = cmd.MarkPersistentFlagRequired("email")
	_ = cmd.MarkPersistentFlagRequired("group")

	add := &cobra.Command{
		Use:   "add",
		Short: "Add an identity to a group, creating the group if needed",
		RunE: byEmail(&email, func(ctx context.Context, svc *app.Services, ident *identity.Identity) error {
			return svc.Accounts.AddToGroup(ctx, ident.ID, group)
		}),
	}
	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove an identity from a group",
		RunE: byEmail(&email, func(ctx context.Context, svc *app.Services, ident *identity.Identity) error {
			return svc.Accounts.RemoveFromGroup(ctx, ident.ID, group)
		}),
	}
	cmd.AddCommand(add, remove)
	return cmd
}

// NewSessionCmd creates the session subcommand.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage refresh tokens",
	}
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete refresh tokens past their validity window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return adminTask(cmd, func(ctx context.Context, svc *app.Services) error {
				n, err := svc.Sessions.PurgeExpired(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("purged %d expired refresh tokens\n", n)
				return nil
			})
		},
	}
	cmd.AddCommand(purge)
	return cmd
}
