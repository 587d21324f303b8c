package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fitcircle/fitcircle/api/rest"
	"github.com/fitcircle/fitcircle/audit"
	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/config"
	dbadapter "github.com/fitcircle/fitcircle/db"
	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/scheduler"
	"github.com/fitcircle/fitcircle/social"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		auditSvc.Stop(ctx)
	}()

	// ---- Social engine ----
	inbox := notify.NewInbox(db, c, cfg.Social, logger)
	hooks := hook.NewCenter(logger)
	social.RegisterObservers(hooks, auditSvc, inbox)
	svc := social.NewService(db, notify.NewDBEmitter(), hooks, cfg.Social, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	err = sched.AddCron("notification_purge", cfg.Social.NotificationPurgeCron, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, ran, err := inbox.PurgeReadLocked(ctx, time.Now().Add(-cfg.Social.NotificationTTL), 10*time.Minute)
		if err != nil {
			logger.Error("notification purge failed", zap.Error(err))
			return
		}
		if ran {
			logger.Info("notification purge", zap.Int64("deleted", n))
		}
	})
	if err != nil {
		logger.Fatal("scheduler setup failed", zap.Error(err))
	}
	if every := cfg.Social.StatsLogInterval; every > 0 {
		sched.AddTicker("stats_report", every, func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			st, err := svc.Stats(ctx)
			if err != nil {
				logger.Warn("stats report failed", zap.Error(err))
				return
			}
			logger.Info("stats",
				zap.Int64("users", st.Users),
				zap.Int64("friendships", st.Friendships),
				zap.Int64("groups", st.Groups),
				zap.Int64("pending_requests", st.Pending))
		})
	}

	// ---- HTTP ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := rest.NewRouter(rest.Deps{
		Config:    cfg,
		DB:        db,
		Cache:     c,
		Social:    svc,
		Inbox:     inbox,
		Scheduler: sched,
		Logger:    logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
