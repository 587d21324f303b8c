package rest

import (
	"net/http"

	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/config"
	mw "github.com/fitcircle/fitcircle/middleware"
	"github.com/fitcircle/fitcircle/scheduler"
	"github.com/fitcircle/fitcircle/social"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Cache     cache.Cache
	Social    *social.Service
	Inbox     *notify.Inbox
	Scheduler *scheduler.Scheduler
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(d.Logger), mw.Recovery(d.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := NewAuthHandler(d.DB, d.Cache, cfg.Security, d.Logger)
	friendH := NewFriendHandler(d.Social, d.Logger)
	groupH := NewGroupHandler(d.Social, d.Logger)
	notifH := NewNotificationHandler(d.Inbox, d.Logger)
	auth := mw.Auth(cfg.Security, d.Cache)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)

		friendsG := api.Group("/friends", auth)
		friendsG.GET("", friendH.List)
		friendsG.GET("/requests/received", friendH.Received)
		friendsG.GET("/requests/sent", friendH.Sent)
		friendsG.GET("/blocked", friendH.Blocked)
		friendsG.GET("/blocked-by", friendH.BlockedBy)
		friendsG.POST("/requests", friendH.Send)
		friendsG.POST("/requests/:id/accept", friendH.Accept)
		friendsG.POST("/requests/:id/decline", friendH.Decline)
		friendsG.DELETE("/requests/:id", friendH.Cancel)
		friendsG.POST("/:id/kick", friendH.Kick)
		friendsG.POST("/:id/block", friendH.Block)
		friendsG.POST("/:id/unblock", friendH.Unblock)

		groupsG := api.Group("/groups", auth)
		groupsG.POST("", groupH.Create)
		groupsG.GET("/mine", groupH.Mine)
		groupsG.POST("/requests/:rid/accept", groupH.Accept)
		groupsG.POST("/requests/:rid/decline", groupH.Decline)
		groupsG.GET("/:id", groupH.Detail)
		groupsG.PUT("/:id", groupH.Update)
		groupsG.DELETE("/:id", groupH.Delete)
		groupsG.POST("/:id/requests", groupH.Join)
		groupsG.GET("/:id/requests", groupH.Requests)
		groupsG.GET("/:id/members", groupH.Members)
		groupsG.GET("/:id/blocked", groupH.Blocked)
		groupsG.POST("/:id/members/:uid/kick", groupH.Kick)
		groupsG.POST("/:id/members/:uid/block", groupH.Block)
		groupsG.POST("/:id/members/:uid/unblock", groupH.Unblock)
		groupsG.POST("/:id/exit", groupH.Exit)

		notifG := api.Group("/notifications", auth)
		notifG.GET("", notifH.List)
		notifG.GET("/unread-count", notifH.UnreadCount)
		notifG.POST("/read-all", notifH.MarkAllRead)
		notifG.POST("/:id/read", notifH.MarkRead)

		if d.Scheduler != nil {
			adminH := NewAdminHandler(d.DB, d.Cache, d.Social, d.Inbox, d.Scheduler, cfg.Social.NotificationTTL, d.Logger)
			adminG := api.Group("/admin", AdminAuth(cfg.Server.AdminKey))
			adminG.GET("/metrics", adminH.Metrics)
			adminG.GET("/scheduler", adminH.ListSchedulerTasks)
			adminG.POST("/accounts/:id/ban", adminH.BanAccount)
			adminG.POST("/notifications/purge", adminH.PurgeNotifications)
		}
	}
	return r
}
