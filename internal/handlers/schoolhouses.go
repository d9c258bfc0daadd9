package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/middleware"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/service"
)

type schoolhouseRequest struct {
	Name             string `json:"name" binding:"required"`
	Slug             string `json:"slug" binding:"required"`
	Subdomain        string `json:"subdomain"`
	Tagline          string `json:"tagline"`
	ShortDescription string `json:"shortDescription"`
	LongDescription  string `json:"longDescription"`
	LogoURL          string `json:"logoUrl"`
	HeroImageURL     string `json:"heroImageUrl"`
	ContactEmail     string `json:"contactEmail"`
	ContactPhone     string `json:"contactPhone"`
	AddressLine1     string `json:"addressLine1"`
	AddressLine2     string `json:"addressLine2"`
	City             string `json:"city"`
	State            string `json:"state"`
	PostalCode       string `json:"postalCode"`
	Country          string `json:"country"`
	IsPublished      bool   `json:"isPublished"`
}

func (r schoolhouseRequest) input() service.SchoolhouseInput {
	return service.SchoolhouseInput{
		Name:             r.Name,
		Slug:             r.Slug,
		Subdomain:        r.Subdomain,
		Tagline:          r.Tagline,
		ShortDescription: r.ShortDescription,
		LongDescription:  r.LongDescription,
		LogoURL:          r.LogoURL,
		HeroImageURL:     r.HeroImageURL,
		ContactEmail:     r.ContactEmail,
		ContactPhone:     r.ContactPhone,
		AddressLine1:     r.AddressLine1,
		AddressLine2:     r.AddressLine2,
		City:             r.City,
		State:            r.State,
		PostalCode:       r.PostalCode,
		Country:          r.Country,
		IsPublished:      r.IsPublished,
	}
}

// ListSchoolhouses shows published schoolhouses only.
func (h HandlerSet) ListSchoolhouses(c *gin.Context) {
	h.listSchoolhouses(c, true)
}

// ListAllSchoolhouses includes unpublished schoolhouses and is mounted behind the Admin role.
func (h HandlerSet) ListAllSchoolhouses(c *gin.Context) {
	h.listSchoolhouses(c, false)
}

func (h HandlerSet) listSchoolhouses(c *gin.Context, publishedOnly bool) {
	p := page(c)
	rows, total, err := h.svc.Schoolhouses.List(c.Request.Context(), publishedOnly, p)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]schoolhouseResponse, 0, len(rows))
	for _, sh := range rows {
		items = append(items, toSchoolhouse(sh))
	}
	c.JSON(http.StatusOK, newList(items, total, p))
}

func (h HandlerSet) GetSchoolhouse(c *gin.Context) {
	sh, err := h.svc.Schoolhouses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSchoolhouse(sh))
}

func (h HandlerSet) CreateSchoolhouse(c *gin.Context) {
	var req schoolhouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sh, err := h.svc.Schoolhouses.Create(c.Request.Context(), req.input(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSchoolhouse(sh))
}

func (h HandlerSet) UpdateSchoolhouse(c *gin.Context) {
	var req schoolhouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sh, err := h.svc.Schoolhouses.Update(c.Request.Context(), c.Param("id"), req.input(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSchoolhouse(sh))
}

func (h HandlerSet) DeleteSchoolhouse(c *gin.Context) {
	isAdmin := middleware.HasRole(c, models.RoleAdmin)
	if err := h.svc.Schoolhouses.Delete(c.Request.Context(), c.Param("id"), actor(c), isAdmin); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListStaff returns active memberships unless ?includeInactive=true.
func (h HandlerSet) ListStaff(c *gin.Context) {
	rows, err := h.svc.Staff.ListStaff(c.Request.Context(), c.Param("id"), actor(c), !queryBool(c, "includeInactive"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]staffResponse, 0, len(rows))
	for _, m := range rows {
		items = append(items, toStaff(m))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type staffRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h HandlerSet) AddAdmin(c *gin.Context) {
	h.addStaff(c, h.svc.Staff.AddAdmin)
}

func (h HandlerSet) AddInstructor(c *gin.Context) {
	h.addStaff(c, h.svc.Staff.AddInstructor)
}

func (h HandlerSet) addStaff(c *gin.Context, add func(ctx context.Context, schoolhouseID, userID, actorID string) (models.StaffMembership, error)) {
	var req staffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := add(c.Request.Context(), c.Param("id"), req.UserID, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStaff(m))
}

func (h HandlerSet) RemoveStaff(c *gin.Context) {
	if err := h.svc.Staff.RemoveStaff(c.Request.Context(), c.Param("id"), c.Param("userId"), actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type classRequest struct {
	Title             string     `json:"title" binding:"required"`
	Slug              string     `json:"slug" binding:"required"`
	Summary           string     `json:"summary"`
	PricePerSeatCents int64      `json:"pricePerSeatCents"`
	StartsAt          time.Time  `json:"startsAt" binding:"required"`
	EndsAt            *time.Time `json:"endsAt"`
	IsPublished       bool       `json:"isPublished"`
}

func (r classRequest) input() service.ClassInput {
	return service.ClassInput{
		Title:             r.Title,
		Slug:              r.Slug,
		Summary:           r.Summary,
		PricePerSeatCents: r.PricePerSeatCents,
		StartsAt:          r.StartsAt,
		EndsAt:            r.EndsAt,
		IsPublished:       r.IsPublished,
	}
}

func (h HandlerSet) ListClasses(c *gin.Context) {
	rows, err := h.svc.Classes.ListClasses(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toClasses(rows)})
}

func (h HandlerSet) CreateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	class, err := h.svc.Classes.CreateClass(c.Request.Context(), c.Param("id"), req.input(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClass(class))
}

func (h HandlerSet) UpdateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	class, err := h.svc.Classes.UpdateClass(c.Request.Context(), c.Param("id"), req.input(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClass(class))
}

func (h HandlerSet) DeleteClass(c *gin.Context) {
	if err := h.svc.Classes.DeleteClass(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
