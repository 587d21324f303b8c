package cli

import (
	"context"
	"math/rand"

	"github.com/fitcircle/fitcircle/model"
	"github.com/spf13/cobra"
)

func newFriendsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "friends", Short: "Bulk friendship transitions"}

	var message string
	send := &cobra.Command{
		Use:   "send-requests COUNT",
		Short: "Send up to COUNT friend requests from every user to random users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := countArg(args)
			if err != nil {
				return err
			}
			printf(cmd, "Sending %d request(s) from each user...\n", n)
			var t tally
			err = a.eachUserToRandomOthers(cmd.Context(), n, &t, func(ctx context.Context, from, to int64) error {
				_, err := a.svc.SendFriendRequest(ctx, from, to, message)
				return err
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
				var reqs []model.FriendRequest
				err := a.db.WithContext(cmd.Context()).
					Where("status = ?", model.RequestPending).Order("id").Find(&reqs).Error
				if err != nil {
					return err
				}
				var t tally
				err = a.fanOut(cmd.Context(), len(reqs), func(ctx context.Context, i int) error {
					r := reqs[i]
					if accept {
						_, err := a.svc.AcceptFriendRequest(ctx, r.ReceiverID, r.ID)
						return t.record(err)
					}
					_, err := a.svc.DeclineFriendRequest(ctx, r.ReceiverID, r.ID)
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
		Short: "End every active friendship",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []model.Friendship
			err := a.db.WithContext(cmd.Context()).
				Where("status = ?", model.FriendshipActive).Order("id").Find(&rows).Error
			if err != nil {
				return err
			}
			var t tally
			err = a.fanOut(cmd.Context(), len(rows), func(ctx context.Context, i int) error {
				_, err := a.svc.KickFriend(ctx, rows[i].InitiatorID, rows[i].CounterpartID)
				return t.record(err)
			})
			if err != nil {
				return err
			}
			printf(cmd, "Successfully kicked %d friend(s)\n", t.done.Load())
			return nil
		},
	}

	block := &cobra.Command{
		Use:   "block COUNT",
		Short: "Have every user block up to COUNT random users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := countArg(args)
			if err != nil {
				return err
			}
			printf(cmd, "Blocking %d user(s) for each user...\n", n)
			var t tally
			err = a.eachUserToRandomOthers(cmd.Context(), n, &t, func(ctx context.Context, from, to int64) error {
				_, err := a.svc.BlockUser(ctx, from, to)
				return err
			})
			if err != nil {
				return err
			}
			printf(cmd, "Successfully blocked %d user(s), %d skipped\n", t.done.Load(), t.skipped.Load())
			return nil
		},
	}

	cmd.AddCommand(
		send,
		respond("accept-requests", "Accept every pending friend request", true),
		respond("decline-requests", "Decline every pending friend request", false),
		kick,
		block,
	)
	return cmd
}

// eachUserToRandomOthers calls op from every user towards random other users
// until n calls succeed for that user or the candidates run out.
func (a *app) eachUserToRandomOthers(ctx context.Context, n int, t *tally, op func(ctx context.Context, from, to int64) error) error {
	ids, err := a.userIDs(ctx)
	if err != nil {
		return err
	}
	return a.fanOut(ctx, len(ids), func(ctx context.Context, i int) error {
		from, sent := ids[i], 0
		for _, j := range rand.Perm(len(ids)) {
			if sent == n {
				break
			}
			if j == i {
				continue
			}
			err := op(ctx, from, ids[j])
			if err == nil {
				sent++
			}
			if err := t.record(err); err != nil {
				return err
			}
		}
		return nil
	})
}
