package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/suPer8Hu/llm-workflow/internal/audit"
	"github.com/suPer8Hu/llm-workflow/internal/chat"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/httpapi/middleware"
)

// failErr maps an error kind to its status and envelope code.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		common.Fail(c, http.StatusBadRequest, 10003, err.Error())
	case errors.Is(err, common.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40400, err.Error())
	case errors.Is(err, common.ErrConflict):
		common.Fail(c, http.StatusConflict, 40900, err.Error())
	case errors.Is(err, chat.ErrProvider):
		common.Fail(c, http.StatusBadGateway, 50200, err.Error())
	default:
		log.Printf("[%s %s] request_id=%v err=%v", c.Request.Method, c.FullPath(), c.Value(middleware.RequestIDKey), err)
		common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
	}
}

// bindJSON decodes the request body into req. A failed binding tag answers
// 10002 naming the field; anything else is 10001.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "missing field "+verrs[0].Field())
		return false
	}
	common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
	return false
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// actor returns the caller's user id for ownership/audit columns.
func actor(c *gin.Context) *string {
	if id, ok := userIDFromContext(c); ok {
		return &id
	}
	return nil
}

func queryInt(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// tagFilter reads ?tags_any=a,b&tags_all=c. ?tag=x is shorthand for tags_any.
func tagFilter(c *gin.Context) db.TagFilter {
	f := db.TagFilter{
		Any: splitList(c.Query("tags_any")),
		All: splitList(c.Query("tags_all")),
	}
	if t := strings.TrimSpace(c.Query("tag")); t != "" {
		f.Any = append(f.Any, t)
	}
	return f
}

// record writes an audit entry. Failures are logged, not returned: the
// mutation it describes has already committed.
func (h *Handler) record(c *gin.Context, action, resourceType, resourceID string, payload any) {
	var rid *string
	if resourceID != "" {
		rid = &resourceID
	}
	if _, err := h.Audit.Record(c.Request.Context(), audit.Entry{
		ActorID:      actor(c),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   rid,
		Payload:      payload,
	}); err != nil {
		log.Printf("[audit] action=%s resource=%s/%s err=%v", action, resourceType, resourceID, err)
	}
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}
