package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/rbac"
	"yunmun/api/internal/store"
	"yunmun/api/internal/util"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage authors, editors and admins",
	}
	userCmd.AddCommand(newUserAddCommand(ctx))
	userCmd.AddCommand(newUserListCommand(ctx))
	return userCmd
}

func newUserAddCommand(ctx *commandContext) *cobra.Command {
	var (
		id    string
		name  string
		email string
		role  string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedRole, err := rbac.ParseRole(role)
			if err != nil {
				return err
			}
			name = strings.TrimSpace(name)
			email = strings.TrimSpace(email)
			if name == "" || email == "" {
				return errors.New("--name and --email are required")
			}
			if strings.TrimSpace(id) == "" {
				id = util.NewID("usr")
			}

			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			user := store.User{ID: id, DisplayName: name, Email: email, Role: parsedRole, CreatedAt: time.Now().UTC()}
			if err := st.InsertUser(cmd.Context(), user); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("user %s or email %s already exists", id, email)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", parsedRole, user.ID, user.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "User ID (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Notification address")
	cmd.Flags().StringVar(&role, "role", string(rbac.RoleAuthor), "author, editor or admin")
	return cmd
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users")
				return nil
			}
			list := newListing("ID", "Name", "Email", "Role", "Created")
			for _, u := range users {
				list.add(u.ID, u.DisplayName, u.Email, u.Role, formatStamp(u.CreatedAt))
			}
			list.print(cmd.OutOrStdout())
			return nil
		},
	}
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue API bearer tokens",
	}

	var (
		userID string
		ttl    time.Duration
	)
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for a registered user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			user, err := st.GetUserByID(cmd.Context(), strings.TrimSpace(userID))
			if err != nil {
				return fmt.Errorf("look up user %q: %w", userID, err)
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL()
			}
			token, err := auth.IssueForActor([]byte(cfg.TokenSecret), auth.Actor{
				UserID: user.ID,
				Name:   user.DisplayName,
				Role:   user.Role,
			}, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&userID, "user", "", "User ID")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to the configured TTL)")
	_ = issueCmd.MarkFlagRequired("user")
	tokenCmd.AddCommand(issueCmd)

	return tokenCmd
}
