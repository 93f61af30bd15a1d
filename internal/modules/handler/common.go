package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mindnote/counsel/internal/middleware"
	"github.com/mindnote/counsel/internal/modules/serializer"
	"github.com/mindnote/counsel/internal/modules/service"
	"github.com/mindnote/counsel/internal/pkg/errs"
)

// callerFrom reads the identity set by the auth middleware. It aborts with
// 401 when the request was not authenticated.
func callerFrom(c *gin.Context) (service.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.CheckLogin())
		return service.Caller{}, false
	}
	return caller, true
}

// writeServiceErr maps a service error onto the response envelope.
func writeServiceErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidHandle), errors.Is(err, errs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusForbidden, serializer.ForbiddenErr(""))
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr(err.Error(), err))
	case errors.Is(err, errs.ErrInvalidState):
		c.JSON(http.StatusConflict, serializer.StateErr(err.Error(), err))
	case errors.Is(err, errs.ErrBackend):
		c.JSON(http.StatusBadGateway, serializer.BackendErr("", err))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid "+name, err))
		return 0, false
	}
	return uint(v), true
}
