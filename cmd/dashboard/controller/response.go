package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/service/rpc"
	"github.com/JustinTDCT/onlineTracker/service/store"
)

func ok(c *gin.Context, result interface{}) {
	c.JSON(http.StatusOK, model.Response{
		Code:   http.StatusOK,
		Result: result,
	})
}

func fail(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, model.Response{
		Code:    uint64(code),
		Message: err.Error(),
	})
}

// failErr picks the status code from the error kind.
func failErr(c *gin.Context, err error) {
	fail(c, statusOf(err), err)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, rpc.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, rpc.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, rpc.ErrNotAllowed), errors.Is(err, rpc.ErrNotApproved):
		return http.StatusForbidden
	case errors.Is(err, model.ErrUnknownMonitorKind), errors.Is(err, model.ErrCheckInterval),
		errors.Is(err, model.ErrEmptyTarget), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, errors.New("invalid id"))
		return 0, false
	}
	return id, true
}

func limitQuery(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
