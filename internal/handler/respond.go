package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/pkg/metrics"
	"projectdash/pkg/rbac"
)

const dateLayout = "2006-01-02"

// debugMode gates whether internal failure responses carry the underlying
// error detail. Off by default; main flips it from the config.
var debugMode bool

// SetDebug toggles error detail on 500 responses.
func SetDebug(on bool) {
	debugMode = on
}

// actorKey is where the auth middleware stores the resolved user.
const actorKey = "actor"

// Actor returns the authenticated user set by the auth middleware.
func Actor(c *gin.Context) *model.User {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	return v.(*model.User)
}

// SetActor stores the authenticated user for downstream handlers.
func SetActor(c *gin.Context, u *model.User) {
	c.Set(actorKey, u)
}

// writeError maps the service error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var denied *rbac.DeniedError
	if errors.As(err, &denied) {
		metrics.IncrementAuthzDenial(denied.Role, string(denied.Action), string(denied.Resource))
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Error()})
		return
	}
	if ve, ok := apperr.IsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
		return
	}
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		resp := gin.H{"error": "internal error"}
		if debugMode {
			resp["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, resp)
	}
}

// writeBindError turns a gin binding failure into a 422 with a per-field
// reason map, matching the shape service validation errors use.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := map[string]string{}
		for _, fe := range verrs {
			fields[fe.Field()] = "failed on rule " + fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
}

// pathID parses the numeric :id path parameter; a second return of false
// means the response has already been written.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseDatePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
