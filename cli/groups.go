package cli

import (
	"context"
	"math/rand"

	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newGroupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "groups", Short: "Bulk group transitions"}

	create := &cobra.Command{
		Use:   "create COUNT",
		Short: "Create COUNT groups, each hosted by a random existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := countArg(args)
			if err != nil {
				return err
			}
			ids, err := a.userIDs(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				printf(cmd, "No users to host groups; run 'fitctl users create' first\n")
				return nil
			}
			printf(cmd, "Creating %d group(s)...\n", n)
			var t tally
			err = a.fanOut(cmd.Context(), n, func(ctx context.Context, _ int) error {
				_, err := a.svc.CreateGroup(ctx, ids[rand.Intn(len(ids))], social.GroupAttrs{
					Name:        "Group " + uuid.NewString()[:8],
					Description: "Seeded by fitctl",
				})
				return t.record(err)
			})
			if err != nil {
				return err
			}
			printf(cmd, "Successfully created %d group(s)!\n", t.done.Load())
			return nil
		},
	}

	var message string
	send := &cobra.Command{
		Use:   "send-requests COUNT",
		Short: "Send up to COUNT join requests from every user to random groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := countArg(args)
			if err != nil {
				return err
			}
			ids, err := a.userIDs(cmd.Context())
			if err != nil {
				return err
			}
			var groups []int64
			if err := a.db.WithContext(cmd.Context()).Model(&model.Group{}).Order("id").Pluck("id", &groups).Error; err != nil {
				return err
			}
			printf(cmd, "Sending %d request(s) from each user...\n", n)
			var t tally
			err = a.fanOut(cmd.Context(), len(ids), func(ctx context.Context, i int) error {
				sent := 0
				for _, j := range rand.Perm(len(groups)) {
					if sent == n {
						break
					}
					_, err := a.svc.SendJoinRequest(ctx, ids[i], groups[j], message)
					if err == nil {
						sent++
					}
					if err := t.record(err); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			printf(cmd, "Successfully sent %d request(s), %d skipped\n", t.done.Load(), t.skipped.Load())
			return nil
		},
	}
	send.Flags().StringVarP(&message, "message", "m", "", "message attached to each request")

	respond := func(use, short string, accept bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				type pending struct {
					ID      int64
					AdminID int64
				}
				var reqs []pending
				err := a.db.WithContext(cmd.Context()).Table("group_add_requests AS r").
					Select("r.id AS id, g.admin_id AS admin_id").
					Joins("JOIN social_groups g ON g.id = r.group_id").
					Where("r.status = ?", model.RequestPending).
					Order("r.id").Scan(&reqs).Error
				if err != nil {
					return err
				}
				var t tally
				err = a.fanOut(cmd.Context(), len(reqs), func(ctx context.Context, i int) error {
					if accept {
						_, err := a.svc.AcceptJoinRequest(ctx, reqs[i].AdminID, reqs[i].ID)
						return t.record(err)
					}
					_, err := a.svc.DeclineJoinRequest(ctx, reqs[i].AdminID, reqs[i].ID)
					return t.record(err)
				})
				if err != nil {
					return err
				}
				printf(cmd, "Processed %d request(s), %d skipped\n", t.done.Load(), t.skipped.Load())
				return nil
			},
		}
	}

	kick := &cobra.Command{
		Use:   "kick",
		Short: "Kick every accepted member except group admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			type member struct {
				GroupID int64
				UserID  int64
				AdminID int64
			}
			var rows []member
			err := a.db.WithContext(cmd.Context()).Table("group_memberships AS m").
				Select("m.group_id AS group_id, m.user_id AS user_id, g.admin_id AS admin_id").
				Joins("JOIN social_groups g ON g.id = m.group_id").
				Where("m.status = ? AND m.user_id <> g.admin_id", model.MembershipAccepted).
				Order("m.id").Scan(&rows).Error
			if err != nil {
				return err
			}
			var t tally
			err = a.fanOut(cmd.Context(), len(rows), func(ctx context.Context, i int) error {
				m := rows[i]
				_, err := a.svc.KickMember(ctx, m.AdminID, m.GroupID, m.UserID)
				return t.record(err)
			})
			if err != nil {
				return err
			}
			printf(cmd, "Successfully kicked %d user(s)\n", t.done.Load())
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete every group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var groups []model.Group
			if err := a.db.WithContext(cmd.Context()).Order("id").Find(&groups).Error; err != nil {
				return err
			}
			printf(cmd, "Deleting all groups...\n")
			var t tally
			err := a.fanOut(cmd.Context(), len(groups), func(ctx context.Context, i int) error {
				_, err := a.svc.DeleteGroup(ctx, groups[i].AdminID, groups[i].ID)
				return t.record(err)
			})
			if err != nil {
				return err
			}
			printf(cmd, "Successfully deleted %d group(s)!\n", t.done.Load())
			return nil
		},
	}

	count := &cobra.Command{
		Use:   "count",
		Short: "Print the number of groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := countRows(a.db.WithContext(cmd.Context()), &model.Group{})
			if err != nil {
				return err
			}
			printf(cmd, "%d\n", n)
			return nil
		},
	}

	cmd.AddCommand(
		create,
		send,
		respond("accept-requests", "Accept every pending join request", true),
		respond("decline-requests", "Decline every pending join request", false),
		kick,
		del,
		count,
	)
	return cmd
}

func countRows(db *gorm.DB, m interface{}) (int64, error) {
	var n int64
	err := db.Model(m).Count(&n).Error
	return n, err
}
