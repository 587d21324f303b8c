package cli

import (
	"fmt"
	"strconv"

	"github.com/fitcircle/fitcircle/api/rest"
	"github.com/fitcircle/fitcircle/model"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func countArg(args []string) (int, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Create, count and delete accounts"}

	var password string
	create := &cobra.Command{
		Use:   "create COUNT",
		Short: "Create COUNT accounts with random usernames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := countArg(args)
			if err != nil {
				return err
			}
			hash, err := rest.HashPassword(password)
			if err != nil {
				return err
			}
			printf(cmd, "Creating %d user(s)...\n", n)
			accounts := make([]model.Account, n)
			for i := range accounts {
				accounts[i] = model.Account{
					Username:     "user_" + uuid.NewString()[:8],
					PasswordHash: hash,
					Status:       1,
				}
			}
			if err := a.db.WithContext(cmd.Context()).CreateInBatches(accounts, 100).Error; err != nil {
				return fmt.Errorf("create users: %w", err)
			}
			printf(cmd, "Successfully created %d user(s)!\n", n)
			return nil
		},
	}
	create.Flags().StringVarP(&password, "password", "p", "password123", "password for every created account")

	count := &cobra.Command{
		Use:   "count",
		Short: "Print the number of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := countRows(a.db.WithContext(cmd.Context()), &model.Account{})
			if err != nil {
				return err
			}
			printf(cmd, "%d\n", n)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete every account together with all relationships and notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printf(cmd, "Deleting all users...\n")
			err := a.db.WithContext(cmd.Context()).Transaction(func(tx *gorm.DB) error {
				all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
				for _, m := range []interface{}{
					&model.Notification{},
					&model.FriendRequest{},
					&model.Friendship{},
					&model.GroupAddRequest{},
					&model.GroupMembership{},
					&model.Group{},
					&model.Account{},
				} {
					if err := all.Delete(m).Error; err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("delete users: %w", err)
			}
			printf(cmd, "Successfully deleted all users!\n")
			return nil
		},
	}

	cmd.AddCommand(create, count, del)
	return cmd
}
