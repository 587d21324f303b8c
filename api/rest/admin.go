package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/fitcircle/fitcircle/cache"
	mw "github.com/fitcircle/fitcircle/middleware"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/scheduler"
	"github.com/fitcircle/fitcircle/social"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles operator endpoints. Routes are guarded by AdminAuth.
type AdminHandler struct {
	db        *gorm.DB
	cache     cache.Cache
	svc       *social.Service
	inbox     *notify.Inbox
	sched     *scheduler.Scheduler
	retention time.Duration
	logger    *zap.Logger
}

func NewAdminHandler(
	db *gorm.DB,
	c cache.Cache,
	svc *social.Service,
	inbox *notify.Inbox,
	sched *scheduler.Scheduler,
	retention time.Duration,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{db: db, cache: c, svc: svc, inbox: inbox, sched: sched, retention: retention, logger: logger}
}

// Metrics handles GET /api/admin/metrics.
func (h *AdminHandler) Metrics(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":           stats,
		"scheduler_tasks": len(h.sched.Tasks()),
	})
}

// BanAccount handles POST /api/admin/accounts/:id/ban with {"ban": bool}.
// A ban takes effect at once: Auth rejects the account's live sessions while
// the cache marker exists, and login and refresh check the stored status.
func (h *AdminHandler) BanAccount(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Ban *bool `json:"ban" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"ban\": true|false}"})
		return
	}

	ctx := c.Request.Context()
	var acc model.Account
	if err := h.db.WithContext(ctx).Select("id").First(&acc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		respondErr(c, h.logger, err)
		return
	}

	status := 1
	if *req.Ban {
		status = 0
	}
	if err := h.db.WithContext(ctx).Model(&acc).Update("status", status).Error; err != nil {
		respondErr(c, h.logger, err)
		return
	}
	var err error
	if *req.Ban {
		err = h.cache.Set(ctx, mw.BannedKey(id), "1", 0)
	} else {
		err = h.cache.Del(ctx, mw.BannedKey(id))
	}
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	h.logger.Info("account status changed", zap.Int64("user_id", id), zap.Int("status", status))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// ListSchedulerTasks handles GET /api/admin/scheduler.
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// PurgeNotifications handles POST /api/admin/notifications/purge, running the
// retention sweep immediately.
func (h *AdminHandler) PurgeNotifications(c *gin.Context) {
	n, err := h.inbox.PurgeRead(c.Request.Context(), time.Now().Add(-h.retention))
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// AdminAuth checks the X-Admin-Key header. With no key configured every
// admin route answers 503.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
