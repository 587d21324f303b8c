// Package cli implements fitctl, the maintenance and seeding tool. Every
// relationship change goes through social.Service, so seeded data obeys the
// same rules and produces the same notifications as API traffic.
package cli

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/fitcircle/fitcircle/audit"
	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/config"
	dbadapter "github.com/fitcircle/fitcircle/db"
	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social"
	"github.com/fitcircle/fitcircle/social/errs"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// app is the state shared by every subcommand. db and svc are opened lazily
// from --config unless already set.
type app struct {
	cfgPath string
	workers int
	verbose bool

	db     *gorm.DB
	svc    *social.Service
	audit  *audit.Service
	logger *zap.Logger
}

// Execute runs fitctl and returns the process exit code.
func Execute() int {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "fitctl",
		Short:         "fitcircle maintenance and seeding tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.workers < 1 {
				return fmt.Errorf("--workers must be at least 1")
			}
			return a.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "config/config.yaml", "path to the server config file")
	root.PersistentFlags().IntVarP(&a.workers, "workers", "w", 4, "parallel operations")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log every transition")

	root.AddCommand(newUsersCmd(a), newFriendsCmd(a), newGroupsCmd(a))
	return root
}

func (a *app) open() error {
	if a.logger == nil {
		if a.verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			a.logger = l
		} else {
			a.logger = zap.NewNop()
		}
	}
	if a.db != nil && a.svc != nil {
		return nil
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	a.db = db
	a.audit = audit.New(db, a.logger)
	hooks := hook.NewCenter(a.logger)
	social.RegisterObservers(hooks, a.audit, notify.NewInbox(db, c, cfg.Social, a.logger))
	a.svc = social.NewService(db, notify.NewDBEmitter(), hooks, cfg.Social, a.logger)
	return nil
}

func (a *app) close() {
	if a.audit != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.audit.Stop(ctx)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// tally counts the outcome of a batch. Rule violations from the engine are
// skips; anything else aborts the batch.
type tally struct {
	done    atomic.Int64
	skipped atomic.Int64
}

func (t *tally) record(err error) error {
	if err == nil {
		t.done.Add(1)
		return nil
	}
	if errs.KindOf(err) != errs.KindUnknown {
		t.skipped.Add(1)
		return nil
	}
	return err
}

// fanOut runs fn for i in [0,n) on at most a.workers goroutines.
func (a *app) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { return fn(gctx, i) })
	}
	return g.Wait()
}

func (a *app) userIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := a.db.WithContext(ctx).Model(&model.Account{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
