package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/config"
	mw "github.com/fitcircle/fitcircle/middleware"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

// AuthHandler handles login, logout and token refresh.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// HashPassword returns the bcrypt hash stored for new accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login handles POST /api/auth/login.
// An unknown username is registered on the spot.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.lockedOut(c.Request.Context(), req.Username) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many failed logins, try again later"})
		return
	}

	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := HashPassword(req.Password)
		if err != nil {
			respondErr(c, h.logger, err)
			return
		}
		acc = model.Account{Username: req.Username, PasswordHash: hash, Status: 1}
		if err := h.db.Create(&acc).Error; err != nil {
			// Lost a race with a concurrent registration of the same name.
			if store.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
				return
			}
			respondErr(c, h.logger, err)
			return
		}
		h.logger.Info("account registered", zap.Int64("user_id", acc.ID), zap.String("username", acc.Username))
	case err != nil:
		respondErr(c, h.logger, err)
		return
	default:
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
			h.recordFailure(c.Request.Context(), req.Username)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.clearFailures(c.Request.Context(), req.Username)
		if acc.Status == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
			return
		}
	}

	token, err := h.issue(c.Request.Context(), acc.ID)
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}

	_ = h.db.Model(&acc).Updates(map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": acc.ID, "username": acc.Username})
}

func failureKey(username string) string { return "login_fail:" + username }

func (h *AuthHandler) lockedOut(ctx context.Context, username string) bool {
	if h.sec.LoginMaxFailures <= 0 {
		return false
	}
	v, err := h.cache.Get(ctx, failureKey(username))
	if err != nil {
		if !cache.IsNotFound(err) {
			h.logger.Warn("login failure counter read failed", zap.Error(err))
		}
		return false
	}
	n, _ := strconv.Atoi(v)
	return n >= h.sec.LoginMaxFailures
}

// recordFailure counts a wrong password. The window starts at the first
// failure and is not extended by later ones.
func (h *AuthHandler) recordFailure(ctx context.Context, username string) {
	if h.sec.LoginMaxFailures <= 0 {
		return
	}
	key := failureKey(username)
	n, err := h.cache.IncrBy(ctx, key, 1)
	if err == nil && n == 1 {
		err = h.cache.Expire(ctx, key, h.sec.LoginLockout)
	}
	if err != nil {
		h.logger.Warn("login failure counter update failed", zap.Error(err))
		return
	}
	if int(n) == h.sec.LoginMaxFailures {
		h.logger.Warn("login locked out", zap.String("username", username), zap.Duration("for", h.sec.LoginLockout))
	}
}

func (h *AuthHandler) clearFailures(ctx context.Context, username string) {
	if h.sec.LoginMaxFailures <= 0 {
		return
	}
	if err := h.cache.Del(ctx, failureKey(username)); err != nil {
		h.logger.Warn("login failure counter reset failed", zap.Error(err))
	}
}

// issue signs a token and records its session.
func (h *AuthHandler) issue(ctx context.Context, userID int64) (string, error) {
	token, err := mw.GenerateToken(userID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(userID, 10), h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

func (h *AuthHandler) drop(ctx context.Context, token string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.cache.Del(ctx, mw.SessionKey(token)); err != nil {
		h.logger.Warn("session delete failed", zap.Error(err))
	}
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.drop(c.Request.Context(), mw.GetToken(c))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh. The presented token stops working.
func (h *AuthHandler) Refresh(c *gin.Context) {
	userID := mw.GetUserID(c)
	var acc model.Account
	if err := h.db.WithContext(c.Request.Context()).Select("id", "status").First(&acc, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.drop(c.Request.Context(), mw.GetToken(c))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account not found"})
			return
		}
		respondErr(c, h.logger, err)
		return
	}
	h.drop(c.Request.Context(), mw.GetToken(c))
	if acc.Status == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	}
	token, err := h.issue(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
