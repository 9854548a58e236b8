package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/repository"
)

// OrgHandler serves department and division management.  Reads are open
// to any authenticated user; mutations are Admin-only via the router.
type OrgHandler struct {
	Departments *repository.DepartmentRepo
	Divisions   *repository.DivisionRepo
}

func NewOrgHandler(de *repository.DepartmentRepo, di *repository.DivisionRepo) *OrgHandler {
	return &OrgHandler{Departments: de, Divisions: di}
}

type departmentReq struct {
	Name  string  `json:"name"`
	HODID *uint64 `json:"hod_id"`
}

type divisionReq struct {
	Name         string `json:"name"`
	DepartmentID uint64 `json:"department_id"`
}

type departmentPart struct {
	ID    uint64  `json:"id"`
	Name  string  `json:"name"`
	HODID *uint64 `json:"hod_id,omitempty"`
}

type divisionPart struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	DepartmentID uint64 `json:"department_id"`
}

func toDepartmentPart(d model.Department) departmentPart {
	return departmentPart{ID: d.ID, Name: d.Name, HODID: d.HODID}
}

func toDivisionPart(d model.Division) divisionPart {
	return divisionPart{ID: d.ID, Name: d.Name, DepartmentID: d.DepartmentID}
}

// ListDepartments handles GET /v1/departments.
func (h *OrgHandler) ListDepartments(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	deps, err := h.Departments.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	out := make([]departmentPart, 0, len(deps))
	for _, d := range deps {
		out = append(out, toDepartmentPart(d))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "departments": out})
}

// CreateDepartment handles POST /v1/departments.
func (h *OrgHandler) CreateDepartment(c echo.Context) error {
	var req departmentReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return fail(c, http.StatusBadRequest, "name is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	id, err := h.Departments.Create(ctx, strings.TrimSpace(req.Name), req.HODID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "A department with that name already exists.")
		}
		return internalError(c, err)
	}
	dep, err := h.Departments.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Department created.", "department": toDepartmentPart(dep)})
}

// GetDepartment handles GET /v1/departments/:id.
func (h *OrgHandler) GetDepartment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid department id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	dep, err := h.Departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Department not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "department": toDepartmentPart(dep)})
}

// UpdateDepartment handles PUT /v1/departments/:id.
func (h *OrgHandler) UpdateDepartment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid department id.")
	}
	var req departmentReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return fail(c, http.StatusBadRequest, "name is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Departments.Update(ctx, id, strings.TrimSpace(req.Name), req.HODID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Department not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "A department with that name already exists.")
		}
		return internalError(c, err)
	}
	dep, err := h.Departments.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Department updated.", "department": toDepartmentPart(dep)})
}

// DeleteDepartment handles DELETE /v1/departments/:id.
func (h *OrgHandler) DeleteDepartment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid department id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Departments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Department not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Department still has divisions or users.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Department deleted."})
}

// ListDivisions handles GET /v1/divisions.
func (h *OrgHandler) ListDivisions(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	divs, err := h.Divisions.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	out := make([]divisionPart, 0, len(divs))
	for _, d := range divs {
		out = append(out, toDivisionPart(d))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "divisions": out})
}

// CreateDivision handles POST /v1/divisions.
func (h *OrgHandler) CreateDivision(c echo.Context) error {
	var req divisionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" || req.DepartmentID == 0 {
		return fail(c, http.StatusBadRequest, "name and department_id are required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	id, err := h.Divisions.Create(ctx, strings.TrimSpace(req.Name), req.DepartmentID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "A division with that name already exists in the department.")
		}
		return internalError(c, err)
	}
	div, err := h.Divisions.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Division created.", "division": toDivisionPart(div)})
}

// GetDivision handles GET /v1/divisions/:id.
func (h *OrgHandler) GetDivision(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid division id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	div, err := h.Divisions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Division not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "division": toDivisionPart(div)})
}

// UpdateDivision handles PUT /v1/divisions/:id.
func (h *OrgHandler) UpdateDivision(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid division id.")
	}
	var req divisionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" || req.DepartmentID == 0 {
		return fail(c, http.StatusBadRequest, "name and department_id are required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Divisions.Update(ctx, id, strings.TrimSpace(req.Name), req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Division not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "A division with that name already exists in the department.")
		}
		return internalError(c, err)
	}
	div, err := h.Divisions.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Division updated.", "division": toDivisionPart(div)})
}

// DeleteDivision handles DELETE /v1/divisions/:id.
func (h *OrgHandler) DeleteDivision(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid division id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Divisions.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Division not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Division still has users.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Division deleted."})
}
