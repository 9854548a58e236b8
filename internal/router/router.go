// Package router wires handlers, authentication and role gates onto the
// Echo instance.  Route groups mirror the workflow: public intake, auth,
// then role-gated registrar/HOD/technician/director operations.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/openlabtz/lims-backend/internal/config"
	"github.com/openlabtz/lims-backend/internal/handler"
	"github.com/openlabtz/lims-backend/internal/middleware"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Submission *handler.SubmissionHandler
	SampleFlow *handler.SampleWorkflowHandler
	TestFlow   *handler.TestWorkflowHandler
	Payment    *handler.PaymentHandler
	Dashboard  *handler.DashboardHandler
	Users      *handler.UserAdminHandler
	Org        *handler.OrgHandler
	Catalog    *handler.CatalogHandler
	Customers  *handler.CustomerCRUDHandler
	Lab        *handler.LabCRUDHandler
}

// Register mounts every route.  rdb may be nil, in which case the Redis
// cache and rate limiter pass requests straight through.
func Register(e *echo.Echo, cfg config.Config, h Handlers, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Public intake and catalog: no session required, but rate limited.
	e.POST("/v1/samples/submit", h.Submission.Submit, rateLimit)
	e.GET("/v1/ingredients", h.Catalog.List, rateLimit)

	// Auth endpoints.
	auth := e.Group("/v1/auth", rateLimit)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/refresh-access", h.Auth.RefreshAccess)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/verify-email/:token", h.Auth.VerifyEmail)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password/:token", h.Auth.ResetPassword)

	// Everything below requires a valid access token.
	v1 := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), rateLimit)
	v1.GET("/me", h.Auth.Me)

	staff := []workflow.Role{
		workflow.RoleAdmin, workflow.RoleRegistrar, workflow.RoleHOD,
		workflow.RoleTechnician, workflow.RoleDirector,
	}

	admin := middleware.RequireRole(workflow.RoleAdmin)
	registrar := middleware.RequireRole(workflow.RoleRegistrar, workflow.RoleAdmin)
	hod := middleware.RequireRole(workflow.RoleHOD, workflow.RoleAdmin)
	technician := middleware.RequireRole(workflow.RoleTechnician)
	director := middleware.RequireRole(workflow.RoleDirector, workflow.RoleAdmin)
	anyStaff := middleware.RequireRole(staff...)

	// Registrar workflow.
	v1.POST("/samples/register", h.Submission.Register, registrar)
	v1.GET("/samples/unclaimed", h.SampleFlow.Unclaimed, registrar)
	v1.POST("/samples/:id/claim", h.SampleFlow.Claim, registrar)
	v1.POST("/samples/:id/submit-to-hod", h.SampleFlow.SubmitToHOD, registrar)
	v1.POST("/payments/verify/:control_number", h.Payment.Verify, registrar)

	// HOD workflow.
	v1.POST("/samples/:id/assign-technicians", h.SampleFlow.AssignTechnicians, hod)
	v1.POST("/tests/:id/accept", h.TestFlow.Accept, hod)
	v1.POST("/tests/:id/reject", h.TestFlow.Reject, hod)

	// Technician workflow.
	v1.POST("/tests/:id/submit-result", h.TestFlow.SubmitResult, technician)

	// Director workflow.
	v1.POST("/tests/:id/approve", h.TestFlow.Approve, director)
	v1.POST("/samples/:id/send-to-dpf", h.SampleFlow.SendToDPF, director)

	// Dashboards, cached per user.
	dash := v1.Group("/dashboard", cache)
	dash.GET("/admin", h.Dashboard.Admin, admin)
	dash.GET("/registrar", h.Dashboard.Registrar, registrar)
	dash.GET("/hod", h.Dashboard.HOD, hod)
	dash.GET("/technician", h.Dashboard.Technician, technician)
	dash.GET("/director", h.Dashboard.Director, director)

	// User management: Admin only.
	v1.GET("/users", h.Users.List, admin)
	v1.POST("/users", h.Users.Create, admin)
	v1.GET("/users/:id", h.Users.Get, admin)
	v1.PUT("/users/:id", h.Users.Update, admin)
	v1.DELETE("/users/:id", h.Users.Delete, admin)

	// Departments and divisions: staff read, Admin mutate.
	v1.GET("/departments", h.Org.ListDepartments, anyStaff)
	v1.POST("/departments", h.Org.CreateDepartment, admin)
	v1.GET("/departments/:id", h.Org.GetDepartment, anyStaff)
	v1.PUT("/departments/:id", h.Org.UpdateDepartment, admin)
	v1.DELETE("/departments/:id", h.Org.DeleteDepartment, admin)
	v1.GET("/divisions", h.Org.ListDivisions, anyStaff)
	v1.POST("/divisions", h.Org.CreateDivision, admin)
	v1.GET("/divisions/:id", h.Org.GetDivision, anyStaff)
	v1.PUT("/divisions/:id", h.Org.UpdateDivision, admin)
	v1.DELETE("/divisions/:id", h.Org.DeleteDivision, admin)

	// Ingredient catalog mutations: Admin only (public list above).
	v1.POST("/ingredients", h.Catalog.Create, admin)
	v1.GET("/ingredients/:id", h.Catalog.Get, anyStaff)
	v1.PUT("/ingredients/:id", h.Catalog.Update, admin)
	v1.DELETE("/ingredients/:id", h.Catalog.Delete, admin)

	// Customer records: staff.
	v1.GET("/customers", h.Customers.List, anyStaff)
	v1.POST("/customers", h.Customers.Create, anyStaff)
	v1.GET("/customers/:id", h.Customers.Get, anyStaff)
	v1.PUT("/customers/:id", h.Customers.Update, anyStaff)
	v1.DELETE("/customers/:id", h.Customers.Delete, admin)

	// Samples, tests, payments, results: staff read, Admin create/correct/delete.
	v1.GET("/samples", h.Lab.ListSamples, anyStaff)
	v1.POST("/samples", h.Lab.CreateSample, admin)
	v1.GET("/samples/:id", h.Lab.GetSample, anyStaff)
	v1.PUT("/samples/:id", h.Lab.UpdateSample, admin)
	v1.DELETE("/samples/:id", h.Lab.DeleteSample, admin)
	v1.GET("/tests", h.Lab.ListTests, anyStaff)
	v1.POST("/tests", h.Lab.CreateTest, admin)
	v1.GET("/tests/:id", h.Lab.GetTest, anyStaff)
	v1.PUT("/tests/:id", h.Lab.UpdateTest, admin)
	v1.DELETE("/tests/:id", h.Lab.DeleteTest, admin)
	v1.GET("/payments", h.Lab.ListPayments, anyStaff)
	v1.POST("/payments", h.Lab.CreatePayment, admin)
	v1.GET("/payments/:id", h.Lab.GetPayment, anyStaff)
	v1.PUT("/payments/:id", h.Lab.UpdatePayment, admin)
	v1.DELETE("/payments/:id", h.Lab.DeletePayment, admin)
	v1.GET("/results", h.Lab.ListResults, anyStaff)
	v1.POST("/results", h.Lab.CreateResult, admin)
	v1.GET("/results/:id", h.Lab.GetResult, anyStaff)
	v1.PUT("/results/:id", h.Lab.UpdateResult, admin)
	v1.DELETE("/results/:id", h.Lab.DeleteResult, admin)
}
