package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/service"
)

func (h HandlerSet) GetMyProfile(c *gin.Context) {
	p, err := h.svc.Instructors.GetProfileByUser(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfile(p))
}

type profileRequest struct {
	DisplayName        string `json:"displayName" binding:"required"`
	Bio                string `json:"bio"`
	PhotoURL           string `json:"photoUrl"`
	PublicContactEmail string `json:"publicContactEmail"`
	PublicContactPhone string `json:"publicContactPhone"`
}

func (h HandlerSet) UpsertMyProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, created, err := h.svc.Instructors.UpsertProfile(c.Request.Context(), service.InstructorProfileInput{
		DisplayName:        req.DisplayName,
		Bio:                req.Bio,
		PhotoURL:           req.PhotoURL,
		PublicContactEmail: req.PublicContactEmail,
		PublicContactPhone: req.PublicContactPhone,
	}, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, toProfile(p))
}
