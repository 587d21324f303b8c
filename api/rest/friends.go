package rest

import (
	"net/http"

	mw "github.com/fitcircle/fitcircle/middleware"
	"github.com/fitcircle/fitcircle/social"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FriendHandler serves /api/friends.
type FriendHandler struct {
	svc    *social.Service
	logger *zap.Logger
}

func NewFriendHandler(svc *social.Service, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{svc: svc, logger: logger}
}

// List handles GET /api/friends.
func (h *FriendHandler) List(c *gin.Context) {
	friends, err := h.svc.Friends(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// Received handles GET /api/friends/requests/received.
func (h *FriendHandler) Received(c *gin.Context) {
	reqs, err := h.svc.ReceivedRequests(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// Sent handles GET /api/friends/requests/sent.
func (h *FriendHandler) Sent(c *gin.Context) {
	reqs, err := h.svc.SentRequests(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// Blocked handles GET /api/friends/blocked.
func (h *FriendHandler) Blocked(c *gin.Context) {
	rows, err := h.svc.Blocked(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": rows})
}

// BlockedBy handles GET /api/friends/blocked-by.
func (h *FriendHandler) BlockedBy(c *gin.Context) {
	rows, err := h.svc.BlockedBy(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked_by": rows})
}

type sendFriendRequest struct {
	ReceiverID int64  `json:"receiver_id" binding:"required,gt=0"`
	Message    string `json:"message"`
}

// Send handles POST /api/friends/requests.
func (h *FriendHandler) Send(c *gin.Context) {
	var req sendFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.svc.SendFriendRequest(c.Request.Context(), mw.GetUserID(c), req.ReceiverID, req.Message)
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// byRequestID adapts an (actor, id) operation to a handler on /:id.
func (h *FriendHandler) byRequestID(op func(c *gin.Context, actor, id int64) (*social.Snapshot, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		snap, err := op(c, mw.GetUserID(c), id)
		if err != nil {
			respondErr(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// Accept handles POST /api/friends/requests/:id/accept.
func (h *FriendHandler) Accept(c *gin.Context) {
	h.byRequestID(func(c *gin.Context, actor, id int64) (*social.Snapshot, error) {
		return h.svc.AcceptFriendRequest(c.Request.Context(), actor, id)
	})(c)
}

// Decline handles POST /api/friends/requests/:id/decline.
func (h *FriendHandler) Decline(c *gin.Context) {
	h.byRequestID(func(c *gin.Context, actor, id int64) (*social.Snapshot, error) {
		return h.svc.DeclineFriendRequest(c.Request.Context(), actor, id)
	})(c)
}

// Cancel handles DELETE /api/friends/requests/:id.
func (h *FriendHandler) Cancel(c *gin.Context) {
	h.byRequestID(func(c *gin.Context, actor, id int64) (*social.Snapshot, error) {
		return h.svc.CancelFriendRequest(c.Request.Context(), actor, id)
	})(c)
}

// Kick handles POST /api/friends/:id/kick.
func (h *FriendHandler) Kick(c *gin.Context) {
	h.byRequestID(func(c *gin.Context, actor, id int64) (*social.Snapshot, error) {
		return h.svc.KickFriend(c.Request.Context(), actor, id)
	})(c)
}

// Block handles POST /api/friends/:id/block.
func (h *FriendHandler) Block(c *gin.Context) {
	h.byRequestID(func(c *gin.Context, actor, id int64) (*social.Snapshot, error) {
		return h.svc.BlockUser(c.Request.Context(), actor, id)
	})(c)
}

// Unblock handles POST /api/friends/:id/unblock.
func (h *FriendHandler) Unblock(c *gin.Context) {
	h.byRequestID(func(c *gin.Context, actor, id int64) (*social.Snapshot, error) {
		return h.svc.UnblockUser(c.Request.Context(), actor, id)
	})(c)
}
