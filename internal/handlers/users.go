package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/service"
)

func (h HandlerSet) ListUsers(c *gin.Context) {
	p := page(c)
	users, total, err := h.svc.Users.ListUsers(c.Request.Context(), p)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUser(u, nil))
	}
	c.JSON(http.StatusOK, newList(items, total, p))
}

func (h HandlerSet) GetUser(c *gin.Context) {
	detail, err := h.svc.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(detail.User, detail.Roles))
}

type createUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName"`
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.svc.Users.CreateUser(c.Request.Context(), service.CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	}, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUser(user, nil))
}

type updateUserRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email" binding:"omitempty,email"`
	DisplayName *string `json:"displayName"`
	Password    *string `json:"password" binding:"omitempty,min=8"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.svc.Users.UpdateUser(c.Request.Context(), c.Param("id"), service.UpdateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	}, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(user, nil))
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	if err := h.svc.Users.DeleteUser(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) SuspendUser(c *gin.Context)   { h.changeStatus(c, h.svc.Users.Suspend) }
func (h HandlerSet) UnsuspendUser(c *gin.Context) { h.changeStatus(c, h.svc.Users.Unsuspend) }
func (h HandlerSet) BanUser(c *gin.Context)       { h.changeStatus(c, h.svc.Users.Ban) }
func (h HandlerSet) UnbanUser(c *gin.Context)     { h.changeStatus(c, h.svc.Users.Unban) }

type statusChange func(ctx context.Context, id, actorID string) (models.User, error)

func (h HandlerSet) changeStatus(c *gin.Context, change statusChange) {
	user, err := change(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(user, nil))
}
