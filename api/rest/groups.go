package rest

import (
	"net/http"

	mw "github.com/fitcircle/fitcircle/middleware"
	"github.com/fitcircle/fitcircle/social"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GroupHandler serves /api/groups.
type GroupHandler struct {
	svc    *social.Service
	logger *zap.Logger
}

func NewGroupHandler(svc *social.Service, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger}
}

type groupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *GroupHandler) reply(c *gin.Context, status int, v interface{}, err error) {
	if err != nil {
		respondErr(c, h.logger, err)
		return
	}
	c.JSON(status, v)
}

// Create handles POST /api/groups.
func (h *GroupHandler) Create(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.svc.CreateGroup(c.Request.Context(), mw.GetUserID(c),
		social.GroupAttrs{Name: req.Name, Description: req.Description})
	h.reply(c, http.StatusCreated, snap, err)
}

// Mine handles GET /api/groups/mine.
func (h *GroupHandler) Mine(c *gin.Context) {
	groups, err := h.svc.MyGroups(c.Request.Context(), mw.GetUserID(c))
	h.reply(c, http.StatusOK, gin.H{"groups": groups}, err)
}

// Detail handles GET /api/groups/:id.
func (h *GroupHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.svc.GroupDetail(c.Request.Context(), mw.GetUserID(c), id)
	h.reply(c, http.StatusOK, detail, err)
}

// Update handles PUT /api/groups/:id.
func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.svc.UpdateGroup(c.Request.Context(), mw.GetUserID(c), id,
		social.GroupAttrs{Name: req.Name, Description: req.Description})
	h.reply(c, http.StatusOK, snap, err)
}

// Delete handles DELETE /api/groups/:id.
func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	snap, err := h.svc.DeleteGroup(c.Request.Context(), mw.GetUserID(c), id)
	h.reply(c, http.StatusOK, snap, err)
}

// Members handles GET /api/groups/:id/members.
func (h *GroupHandler) Members(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	members, err := h.svc.Members(c.Request.Context(), mw.GetUserID(c), id)
	h.reply(c, http.StatusOK, gin.H{"members": members}, err)
}

// Blocked handles GET /api/groups/:id/blocked.
func (h *GroupHandler) Blocked(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.svc.BlockedMembers(c.Request.Context(), mw.GetUserID(c), id)
	h.reply(c, http.StatusOK, gin.H{"blocked": rows}, err)
}

// Requests handles GET /api/groups/:id/requests.
func (h *GroupHandler) Requests(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reqs, err := h.svc.PendingJoinRequests(c.Request.Context(), mw.GetUserID(c), id)
	h.reply(c, http.StatusOK, gin.H{"requests": reqs}, err)
}

type joinRequest struct {
	Message string `json:"message"`
}

// Join handles POST /api/groups/:id/requests.
func (h *GroupHandler) Join(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req joinRequest
	// An empty body is a join request without a message.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	snap, err := h.svc.SendJoinRequest(c.Request.Context(), mw.GetUserID(c), id, req.Message)
	h.reply(c, http.StatusCreated, snap, err)
}

// Accept handles POST /api/groups/requests/:rid/accept.
func (h *GroupHandler) Accept(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		return
	}
	snap, err := h.svc.AcceptJoinRequest(c.Request.Context(), mw.GetUserID(c), rid)
	h.reply(c, http.StatusOK, snap, err)
}

// Decline handles POST /api/groups/requests/:rid/decline.
func (h *GroupHandler) Decline(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		return
	}
	snap, err := h.svc.DeclineJoinRequest(c.Request.Context(), mw.GetUserID(c), rid)
	h.reply(c, http.StatusOK, snap, err)
}

type memberOp func(svc *social.Service, c *gin.Context, admin, group, user int64) (*social.Snapshot, error)

func (h *GroupHandler) member(op memberOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		uid, ok := paramID(c, "uid")
		if !ok {
			return
		}
		snap, err := op(h.svc, c, mw.GetUserID(c), id, uid)
		h.reply(c, http.StatusOK, snap, err)
	}
}

// Kick handles POST /api/groups/:id/members/:uid/kick.
func (h *GroupHandler) Kick(c *gin.Context) {
	h.member(func(svc *social.Service, c *gin.Context, admin, group, user int64) (*social.Snapshot, error) {
		return svc.KickMember(c.Request.Context(), admin, group, user)
	})(c)
}

// Block handles POST /api/groups/:id/members/:uid/block.
func (h *GroupHandler) Block(c *gin.Context) {
	h.member(func(svc *social.Service, c *gin.Context, admin, group, user int64) (*social.Snapshot, error) {
		return svc.BlockMember(c.Request.Context(), admin, group, user)
	})(c)
}

// Unblock handles POST /api/groups/:id/members/:uid/unblock.
func (h *GroupHandler) Unblock(c *gin.Context) {
	h.member(func(svc *social.Service, c *gin.Context, admin, group, user int64) (*social.Snapshot, error) {
		return svc.UnblockMember(c.Request.Context(), admin, group, user)
	})(c)
}

// Exit handles POST /api/groups/:id/exit.
func (h *GroupHandler) Exit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	snap, err := h.svc.ExitGroup(c.Request.Context(), mw.GetUserID(c), id)
	h.reply(c, http.StatusOK, snap, err)
}
