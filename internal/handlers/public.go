package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/middleware"
)

func (h HandlerSet) PublicIndex(c *gin.Context) {
	index, err := h.svc.Public.Index(c.Request.Context(), middleware.CurrentSchoolhouseSlug(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schoolhouse": toSchoolhouse(index.Schoolhouse),
		"media":       toPublicMedia(index.Media),
		"instructors": toPublicInstructors(index.Instructors),
		"classes":     toClasses(index.Classes),
	})
}

func (h HandlerSet) PublicInstructors(c *gin.Context) {
	rows, err := h.svc.Public.Instructors(c.Request.Context(), middleware.CurrentSchoolhouseSlug(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toPublicInstructors(rows)})
}

// PublicClasses lists published classes; ?futureOnly=true drops past ones.
func (h HandlerSet) PublicClasses(c *gin.Context) {
	rows, err := h.svc.Public.Classes(c.Request.Context(), middleware.CurrentSchoolhouseSlug(c), queryBool(c, "futureOnly"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toClasses(rows)})
}

func (h HandlerSet) PublicAbout(c *gin.Context) {
	about, err := h.svc.Public.About(c.Request.Context(), middleware.CurrentSchoolhouseSlug(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schoolhouseId":   about.SchoolhouseID,
		"longDescription": about.LongDescription,
		"media":           toPublicMedia(about.Media),
	})
}
