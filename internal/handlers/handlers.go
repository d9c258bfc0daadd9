package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/middleware"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/service"
)

type AuditReader interface {
	List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLogEntry, int64, error)
}

type Services struct {
	Auth         *service.AuthService
	Users        *service.UserService
	Roles        *service.RoleService
	Staff        *service.StaffService
	Schoolhouses *service.SchoolhouseService
	Instructors  *service.InstructorService
	Classes      *service.ClassService
	Media        *service.MediaService
	Public       *service.PublicService
	Audit        AuditReader
}

// Identity is what the auth middleware needs to resolve a bearer token.
type Identity struct {
	Users    middleware.UserLookup
	Roles    middleware.RoleLookup
	Sessions middleware.SessionLookup
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	svc      Services
	identity Identity
	checks   map[string]HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, svc Services, identity Identity, checks map[string]HealthCheck) HandlerSet {
	return HandlerSet{
		log:      log.With().Str("component", "http").Logger(),
		cfg:      cfg,
		svc:      svc,
		identity: identity,
		checks:   checks,
	}
}

// Routes mounts every endpoint under router.
func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authn := middleware.Auth(h.cfg.Security, h.identity.Users, h.identity.Roles, h.identity.Sessions)
	admin := middleware.RequireRoles(models.RoleAdmin)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", authn, h.Logout)

		v1.GET("/me", authn, h.Me)

		roles := v1.Group("/roles")
		roles.GET("", h.ListRoles)
		roles.GET("/:id", h.GetRole)
		roles.POST("", authn, admin, h.CreateRole)
		roles.PUT("/:id", authn, admin, h.UpdateRole)
		roles.DELETE("/:id", authn, admin, h.DeleteRole)
		roles.POST("/:id/users/:userId", authn, admin, h.AssignUserToRole)
		roles.DELETE("/:id/users/:userId", authn, admin, h.RemoveUserFromRole)

		users := v1.Group("/users", authn)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.POST("", admin, h.CreateUser)
		users.PUT("/:id", admin, h.UpdateUser)
		users.DELETE("/:id", admin, h.DeleteUser)
		users.POST("/:id/suspend", admin, h.SuspendUser)
		users.POST("/:id/unsuspend", admin, h.UnsuspendUser)
		users.POST("/:id/ban", admin, h.BanUser)
		users.POST("/:id/unban", admin, h.UnbanUser)

		v1.GET("/admin/audit", authn, admin, h.ListAudit)
		v1.GET("/admin/schoolhouses", authn, admin, h.ListAllSchoolhouses)

		schoolhouses := v1.Group("/schoolhouses")
		schoolhouses.GET("", h.ListSchoolhouses)
		schoolhouses.GET("/:id", h.GetSchoolhouse)
		schoolhouses.POST("", authn, h.CreateSchoolhouse)
		schoolhouses.PUT("/:id", authn, h.UpdateSchoolhouse)
		schoolhouses.DELETE("/:id", authn, h.DeleteSchoolhouse)
		schoolhouses.GET("/:id/staff", authn, h.ListStaff)
		schoolhouses.POST("/:id/staff/admins", authn, h.AddAdmin)
		schoolhouses.POST("/:id/staff/instructors", authn, h.AddInstructor)
		schoolhouses.DELETE("/:id/staff/:userId", authn, h.RemoveStaff)
		schoolhouses.GET("/:id/classes", authn, h.ListClasses)
		schoolhouses.POST("/:id/classes", authn, h.CreateClass)

		classes := v1.Group("/classes", authn)
		classes.PUT("/:id", h.UpdateClass)
		classes.DELETE("/:id", h.DeleteClass)

		instructors := v1.Group("/instructors", authn)
		instructors.GET("/me", h.GetMyProfile)
		instructors.PUT("/me", h.UpsertMyProfile)

		media := v1.Group("/media")
		media.GET("/:id/content", h.MediaContent)
		media.GET("", authn, h.ListMyMedia)
		media.POST("", authn, h.UploadMedia)
		media.DELETE("/:id", authn, h.DeleteMedia)
		media.GET("/:id/url", authn, h.MediaURL)
		media.POST("/:id/attach/instructor", authn, h.AttachToInstructor)
		media.POST("/:id/attach/schoolhouse", authn, h.AttachToSchoolhouse)
		media.POST("/:id/attach/class", authn, h.AttachToClass)

		public := v1.Group("/public", middleware.SchoolhouseSlug())
		for _, prefix := range []string{"", "/:slug"} {
			public.GET(prefix+"/index", h.PublicIndex)
			public.GET(prefix+"/instructors", h.PublicInstructors)
			public.GET(prefix+"/classes", h.PublicClasses)
			public.GET(prefix+"/about", h.PublicAbout)
		}
	}
}
