package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/service"
)

// multipartOverhead leaves room for form fields and boundaries around the file.
const multipartOverhead = 1 << 20

func (h HandlerSet) UploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Media.MaxUploadBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, service.ErrUploadTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	asset, err := h.svc.Media.Upload(c.Request.Context(), service.UploadInput{
		File:         file,
		FileName:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Title:        c.PostForm("title"),
		Description:  c.PostForm("description"),
	}, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMedia(asset))
}

func (h HandlerSet) ListMyMedia(c *gin.Context) {
	assets, err := h.svc.Media.ListMine(c.Request.Context(), actor(c), page(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]mediaResponse, 0, len(assets))
	for _, a := range assets {
		items = append(items, toMedia(a))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) DeleteMedia(c *gin.Context) {
	if err := h.svc.Media.Delete(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) MediaURL(c *gin.Context) {
	link, err := h.svc.Media.SignedURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       "/api/v1/media/" + link.AssetID + "/content?" + link.Query(),
		"expiresAt": link.ExpiresAt,
	})
}

// MediaContent streams an asset to anyone holding a valid signature.
func (h HandlerSet) MediaContent(c *gin.Context) {
	expires, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		h.respondError(c, service.ErrInvalidMediaSignature)
		return
	}

	asset, body, err := h.svc.Media.Open(c.Request.Context(), c.Param("id"), c.Query("sig"), expires)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, asset.FileSizeBytes, asset.MimeType, body, map[string]string{
		"Cache-Control":          "private, max-age=300",
		"X-Content-Type-Options": "nosniff",
	})
}

type instructorAttachRequest struct {
	ProfileID         string `json:"profileId" binding:"required"`
	OnSchoolhousePage bool   `json:"onSchoolhousePage"`
	OnInstructorPage  bool   `json:"onInstructorPage"`
	SortOrder         int    `json:"sortOrder"`
}

func (h HandlerSet) AttachToInstructor(c *gin.Context) {
	var req instructorAttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	added, err := h.svc.Media.AttachToInstructor(c.Request.Context(), req.ProfileID, c.Param("id"), actor(c), service.InstructorAttachment{
		OnSchoolhousePage: req.OnSchoolhousePage,
		OnInstructorPage:  req.OnInstructorPage,
		SortOrder:         req.SortOrder,
	})
	h.respondAttach(c, added, err)
}

type schoolhouseAttachRequest struct {
	SchoolhouseID       string `json:"schoolhouseId" binding:"required"`
	VisibleOnPublicSite bool   `json:"visibleOnPublicSite"`
	SortOrder           int    `json:"sortOrder"`
}

func (h HandlerSet) AttachToSchoolhouse(c *gin.Context) {
	var req schoolhouseAttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	added, err := h.svc.Media.AttachToSchoolhouse(c.Request.Context(), req.SchoolhouseID, c.Param("id"), actor(c), service.SchoolhouseAttachment{
		VisibleOnPublicSite: req.VisibleOnPublicSite,
		SortOrder:           req.SortOrder,
	})
	h.respondAttach(c, added, err)
}

type classAttachRequest struct {
	ClassID               string `json:"classId" binding:"required"`
	VisibleToPublic       bool   `json:"visibleToPublic"`
	VisibleToEnrolledOnly bool   `json:"visibleToEnrolledOnly"`
	SortOrder             int    `json:"sortOrder"`
}

func (h HandlerSet) AttachToClass(c *gin.Context) {
	var req classAttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	added, err := h.svc.Media.AttachToClass(c.Request.Context(), req.ClassID, c.Param("id"), actor(c), service.ClassAttachment{
		VisibleToPublic:       req.VisibleToPublic,
		VisibleToEnrolledOnly: req.VisibleToEnrolledOnly,
		SortOrder:             req.SortOrder,
	})
	h.respondAttach(c, added, err)
}

func (h HandlerSet) respondAttach(c *gin.Context, added bool, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"attached": added})
}
