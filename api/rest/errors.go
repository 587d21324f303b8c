package rest

import (
	"errors"
	"net/http"
	"strconv"

	mw "github.com/fitcircle/fitcircle/middleware"
	"github.com/fitcircle/fitcircle/social/errs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondErr writes err as JSON. Domain errors keep their message; anything
// else is logged and hidden behind "internal error".
func respondErr(c *gin.Context, logger *zap.Logger, err error) {
	status := errs.KindOf(err).HTTPStatus()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	var e *errs.Error
	msg := err.Error()
	if errors.As(err, &e) {
		msg = e.Msg
	}
	c.JSON(status, gin.H{"error": msg, "kind": string(errs.KindOf(err))})
}

// paramID parses a positive int64 path parameter, answering 400 when it is not one.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
