package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// DashboardHandler serves the per-role landing views.  All dashboards
// are read-only and sit behind the Redis response cache.
type DashboardHandler struct {
	Users       *repository.UserRepo
	Departments *repository.DepartmentRepo
	Divisions   *repository.DivisionRepo
	Customers   *repository.CustomerRepo
	Ingredients *repository.IngredientRepo
	Samples     *repository.SampleRepo
	Tests       *repository.TestRepo
	Payments    *repository.PaymentRepo
}

func NewDashboardHandler(us *repository.UserRepo, de *repository.DepartmentRepo, di *repository.DivisionRepo, cu *repository.CustomerRepo, in *repository.IngredientRepo, sa *repository.SampleRepo, te *repository.TestRepo, pa *repository.PaymentRepo) *DashboardHandler {
	return &DashboardHandler{Users: us, Departments: de, Divisions: di, Customers: cu, Ingredients: in, Samples: sa, Tests: te, Payments: pa}
}

// Admin handles GET /v1/dashboard/admin: entity counts across the system.
func (h *DashboardHandler) Admin(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	counts := echo.Map{}
	for name, count := range map[string]func() (int, error){
		"users":       func() (int, error) { return h.Users.Count(ctx) },
		"departments": func() (int, error) { return h.Departments.Count(ctx) },
		"divisions":   func() (int, error) { return h.Divisions.Count(ctx) },
		"customers":   func() (int, error) { return h.Customers.Count(ctx) },
		"ingredients": func() (int, error) { return h.Ingredients.Count(ctx) },
		"samples":     func() (int, error) { return h.Samples.Count(ctx) },
		"tests":       func() (int, error) { return h.Tests.Count(ctx) },
		"payments":    func() (int, error) { return h.Payments.Count(ctx) },
	} {
		n, err := count()
		if err != nil {
			return internalError(c, err)
		}
		counts[name] = n
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "counts": counts})
}

// Registrar handles GET /v1/dashboard/registrar: the registrar's ten
// most recent samples plus the pending payments on their samples.
func (h *DashboardHandler) Registrar(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	recent, err := h.Samples.ListByRegistrar(ctx, uid, 10)
	if err != nil {
		return internalError(c, err)
	}
	pending, err := h.Payments.ListPendingByRegistrar(ctx, uid)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":          true,
		"recent_samples":   sampleParts(recent),
		"pending_payments": paymentParts(pending),
	})
}

// HOD handles GET /v1/dashboard/hod: the samples waiting on this HOD
// plus department statistics.
func (h *DashboardHandler) HOD(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	samples, err := h.Samples.ListForHOD(ctx, uid,
		workflow.SampleSubmittedToHOD, workflow.SampleInProgress, workflow.SampleAwaitingHOD)
	if err != nil {
		return internalError(c, err)
	}
	departmentSamples, err := h.Samples.CountByHOD(ctx, uid)
	if err != nil {
		return internalError(c, err)
	}
	pendingTests, err := h.Tests.CountPendingBySampleHOD(ctx, uid)
	if err != nil {
		return internalError(c, err)
	}

	teamMembers := 0
	me, err := h.Users.GetByID(ctx, uid)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return internalError(c, err)
	}
	if err == nil && me.DivisionID != nil {
		teamMembers, err = h.Users.CountByDivision(ctx, *me.DivisionID)
		if err != nil {
			return internalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"samples": sampleParts(samples),
		"stats": echo.Map{
			"department_samples": departmentSamples,
			"pending_tests":      pendingTests,
			"team_members":       teamMembers,
		},
	})
}

type technicianTestPart struct {
	ID            uint64  `json:"id"`
	SampleID      uint64  `json:"sample_id"`
	ControlNumber string  `json:"control_number"`
	SampleName    *string `json:"sample_name,omitempty"`
	Ingredient    string  `json:"ingredient"`
	Status        string  `json:"status"`
	Results       *string `json:"results,omitempty"`
}

func testWithSampleParts(tests []repository.TestWithSample) []technicianTestPart {
	out := make([]technicianTestPart, 0, len(tests))
	for _, tw := range tests {
		out = append(out, technicianTestPart{
			ID:            tw.Test.ID,
			SampleID:      tw.Test.SampleID,
			ControlNumber: tw.ControlNumber,
			SampleName:    tw.SampleName,
			Ingredient:    tw.IngredientName,
			Status:        string(tw.Test.Status),
			Results:       tw.Test.Results,
		})
	}
	return out
}

// Technician handles GET /v1/dashboard/technician: the technician's
// open and recently reviewed tests with their sample context.
func (h *DashboardHandler) Technician(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	tests, err := h.Tests.ListByTechnician(ctx, uid,
		workflow.TestInProgress, workflow.TestAwaitingHOD, workflow.TestAwaitingDG)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "tests": testWithSampleParts(tests)})
}

// Director handles GET /v1/dashboard/director: every test awaiting
// final approval.
func (h *DashboardHandler) Director(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	tests, err := h.Tests.ListAwaitingDirector(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "tests": testWithSampleParts(tests)})
}
