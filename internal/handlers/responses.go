package handlers

import (
	"time"

	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/service"
)

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Status      string    `json:"status"`
	Roles       []string  `json:"roles,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toUser(u models.User, roles []string) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Status:      string(u.Status),
		Roles:       roles,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type roleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toRole(r models.Role) roleResponse {
	return roleResponse{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type roleMemberResponse struct {
	UserID    string    `json:"userId"`
	GrantedBy string    `json:"grantedBy"`
	GrantedAt time.Time `json:"grantedAt"`
}

type staffResponse struct {
	ID            string    `json:"id"`
	SchoolhouseID string    `json:"schoolhouseId"`
	UserID        string    `json:"userId"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toStaff(m models.StaffMembership) staffResponse {
	return staffResponse{
		ID:            m.ID,
		SchoolhouseID: m.SchoolhouseID,
		UserID:        m.UserID,
		Role:          string(m.Role),
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type schoolhouseResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Subdomain        string    `json:"subdomain"`
	Tagline          string    `json:"tagline"`
	ShortDescription string    `json:"shortDescription"`
	LongDescription  string    `json:"longDescription"`
	LogoURL          string    `json:"logoUrl"`
	HeroImageURL     string    `json:"heroImageUrl"`
	ContactEmail     string    `json:"contactEmail"`
	ContactPhone     string    `json:"contactPhone"`
	AddressLine1     string    `json:"addressLine1"`
	AddressLine2     string    `json:"addressLine2"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	PostalCode       string    `json:"postalCode"`
	Country          string    `json:"country"`
	IsPublished      bool      `json:"isPublished"`
	CreatedByUserID  string    `json:"createdByUserId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toSchoolhouse(sh models.Schoolhouse) schoolhouseResponse {
	return schoolhouseResponse{
		ID:               sh.ID,
		Name:             sh.Name,
		Slug:             sh.Slug,
		Subdomain:        sh.Subdomain,
		Tagline:          sh.Tagline,
		ShortDescription: sh.ShortDescription,
		LongDescription:  sh.LongDescription,
		LogoURL:          sh.LogoURL,
		HeroImageURL:     sh.HeroImageURL,
		ContactEmail:     sh.ContactEmail,
		ContactPhone:     sh.ContactPhone,
		AddressLine1:     sh.AddressLine1,
		AddressLine2:     sh.AddressLine2,
		City:             sh.City,
		State:            sh.State,
		PostalCode:       sh.PostalCode,
		Country:          sh.Country,
		IsPublished:      sh.IsPublished,
		CreatedByUserID:  sh.CreatedByUserID,
		CreatedAt:        sh.CreatedAt,
		UpdatedAt:        sh.UpdatedAt,
	}
}

type classResponse struct {
	ID                string     `json:"id"`
	SchoolhouseID     string     `json:"schoolhouseId"`
	Title             string     `json:"title"`
	Slug              string     `json:"slug"`
	Summary           string     `json:"summary"`
	PricePerSeatCents int64      `json:"pricePerSeatCents"`
	StartsAt          time.Time  `json:"startsAt"`
	EndsAt            *time.Time `json:"endsAt"`
	IsPublished       bool       `json:"isPublished"`
}

func toClass(cl models.Class) classResponse {
	return classResponse{
		ID:                cl.ID,
		SchoolhouseID:     cl.SchoolhouseID,
		Title:             cl.Title,
		Slug:              cl.Slug,
		Summary:           cl.Summary,
		PricePerSeatCents: cl.PricePerSeatCents,
		StartsAt:          cl.StartsAt,
		EndsAt:            cl.EndsAt,
		IsPublished:       cl.IsPublished,
	}
}

func toClasses(rows []models.Class) []classResponse {
	out := make([]classResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toClass(row))
	}
	return out
}

type profileResponse struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	DisplayName        string    `json:"displayName"`
	Bio                string    `json:"bio"`
	PhotoURL           string    `json:"photoUrl"`
	PublicContactEmail string    `json:"publicContactEmail"`
	PublicContactPhone string    `json:"publicContactPhone"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toProfile(p models.InstructorProfile) profileResponse {
	return profileResponse{
		ID:                 p.ID,
		UserID:             p.UserID,
		DisplayName:        p.DisplayName,
		Bio:                p.Bio,
		PhotoURL:           p.PhotoURL,
		PublicContactEmail: p.PublicContactEmail,
		PublicContactPhone: p.PublicContactPhone,
		UpdatedAt:          p.UpdatedAt,
	}
}

type mediaResponse struct {
	ID            string    `json:"id"`
	OwnerUserID   string    `json:"ownerUserId"`
	MediaType     string    `json:"mediaType"`
	StoragePath   string    `json:"storagePath"`
	FileName      string    `json:"fileName"`
	FileSizeBytes int64     `json:"fileSizeBytes"`
	MimeType      string    `json:"mimeType"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toMedia(a models.MediaAsset) mediaResponse {
	return mediaResponse{
		ID:            a.ID,
		OwnerUserID:   a.OwnerUserID,
		MediaType:     string(a.MediaType),
		StoragePath:   a.StoragePath,
		FileName:      a.FileName,
		FileSizeBytes: a.FileSizeBytes,
		MimeType:      a.MimeType,
		Title:         a.Title,
		Description:   a.Description,
		CreatedAt:     a.CreatedAt,
	}
}

type auditResponse struct {
	ID                string    `json:"id"`
	Action            string    `json:"action"`
	RoleID            *string   `json:"roleId"`
	RoleName          string    `json:"roleName"`
	TargetUserID      *string   `json:"targetUserId"`
	SchoolhouseID     *string   `json:"schoolhouseId"`
	PerformedByUserID string    `json:"performedByUserId"`
	Details           string    `json:"details"`
	CreatedAt         time.Time `json:"createdAt"`
}

func toAudit(e models.AuditLogEntry) auditResponse {
	return auditResponse{
		ID:                e.ID,
		Action:            e.Action,
		RoleID:            e.RoleID,
		RoleName:          e.RoleName,
		TargetUserID:      e.TargetUserID,
		SchoolhouseID:     e.SchoolhouseID,
		PerformedByUserID: e.PerformedByUserID,
		Details:           e.Details,
		CreatedAt:         e.CreatedAt,
	}
}

type publicMediaResponse struct {
	ID        string        `json:"id"`
	SortOrder int           `json:"sortOrder"`
	Asset     mediaResponse `json:"asset"`
}

func toPublicMedia(rows []service.PublicMedia) []publicMediaResponse {
	out := make([]publicMediaResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, publicMediaResponse{ID: row.AttachmentID, SortOrder: row.SortOrder, Asset: toMedia(row.Asset)})
	}
	return out
}

type publicInstructorResponse struct {
	profileResponse
	Media []publicMediaResponse `json:"media"`
}

func toPublicInstructors(rows []service.PublicInstructor) []publicInstructorResponse {
	out := make([]publicInstructorResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, publicInstructorResponse{profileResponse: toProfile(row.Profile), Media: toPublicMedia(row.Media)})
	}
	return out
}

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
}

func newList[T any](items []T, total int64, p repository.Page) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: total, Page: p.Offset/p.Limit + 1}
}
