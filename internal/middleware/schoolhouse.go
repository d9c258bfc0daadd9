package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	SchoolhouseHeader = "X-Schoolhouse-Slug"
	ctxSchoolhouse    = "schoolhouse_slug"
)

// SchoolhouseSlug picks the tenant for public pages from the :slug route
// parameter, the schoolhouseSlug query or the X-Schoolhouse-Slug header, in
// that order. An empty slug is allowed.
func SchoolhouseSlug() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		if slug == "" {
			slug = c.Query("schoolhouseSlug")
		}
		if slug == "" {
			slug = c.GetHeader(SchoolhouseHeader)
		}
		c.Set(ctxSchoolhouse, strings.ToLower(strings.TrimSpace(slug)))
		c.Next()
	}
}

func CurrentSchoolhouseSlug(c *gin.Context) string {
	return c.GetString(ctxSchoolhouse)
}
