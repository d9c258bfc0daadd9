package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/repository"
)

// ListAudit filters the audit log by ?action=&performedBy=&targetUserId=
// &roleId=&schoolhouseId=&since=&until= with RFC3339 bounds.
func (h HandlerSet) ListAudit(c *gin.Context) {
	filter := repository.AuditFilter{
		Action:        c.Query("action"),
		PerformedBy:   c.Query("performedBy"),
		TargetUserID:  c.Query("targetUserId"),
		RoleID:        c.Query("roleId"),
		SchoolhouseID: c.Query("schoolhouseId"),
		Page:          page(c),
	}

	for name, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failure", "message": name + " must be an RFC3339 timestamp"})
			return
		}
		*dst = t.UTC()
	}

	entries, total, err := h.svc.Audit.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toAudit(e))
	}
	c.JSON(http.StatusOK, newList(items, total, filter.Page))
}
