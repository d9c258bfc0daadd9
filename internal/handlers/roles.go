package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/service"
)

func (h HandlerSet) ListRoles(c *gin.Context) {
	roles, err := h.svc.Roles.ListRoles(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		items = append(items, toRole(r))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetRole(c *gin.Context) {
	detail, err := h.svc.Roles.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	members := make([]roleMemberResponse, 0, len(detail.Members))
	for _, m := range detail.Members {
		members = append(members, roleMemberResponse{UserID: m.UserID, GrantedBy: m.GrantedBy, GrantedAt: m.GrantedAt})
	}
	c.JSON(http.StatusOK, gin.H{
		"role":    toRole(detail.Role),
		"members": members,
	})
}

type roleRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

func (h HandlerSet) CreateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.svc.Roles.CreateRole(c.Request.Context(), service.RoleInput{Name: req.Name, Description: req.Description}, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRole(role))
}

func (h HandlerSet) UpdateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.svc.Roles.UpdateRole(c.Request.Context(), c.Param("id"), service.RoleInput{Name: req.Name, Description: req.Description}, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRole(role))
}

func (h HandlerSet) DeleteRole(c *gin.Context) {
	if err := h.svc.Roles.DeleteRole(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignUserToRole answers 201 for a new grant and 200 when the user
// already held the role.
func (h HandlerSet) AssignUserToRole(c *gin.Context) {
	added, err := h.svc.Roles.AssignUserToRole(c.Request.Context(), c.Param("id"), c.Param("userId"), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"assigned": added})
}

func (h HandlerSet) RemoveUserFromRole(c *gin.Context) {
	removed, err := h.svc.Roles.RemoveUserFromRole(c.Request.Context(), c.Param("id"), c.Param("userId"), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
