package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/queue"
	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/service"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// TestWorkflowHandler serves the per-test transitions: a technician
// submits results, the HOD accepts or rejects them, and the director
// gives final approval.
type TestWorkflowHandler struct {
	DB        *sql.DB
	Tests     *repository.TestRepo
	Samples   *repository.SampleRepo
	Users     *repository.UserRepo
	Results   *repository.ResultRepo
	Ingreds   *repository.IngredientRepo
	Customers *repository.CustomerRepo
}

func NewTestWorkflowHandler(db *sql.DB, te *repository.TestRepo, sa *repository.SampleRepo, us *repository.UserRepo, re *repository.ResultRepo, in *repository.IngredientRepo, cu *repository.CustomerRepo) *TestWorkflowHandler {
	return &TestWorkflowHandler{DB: db, Tests: te, Samples: sa, Users: us, Results: re, Ingreds: in, Customers: cu}
}

// rollupSample recomputes the parent sample's status from its tests'
// statuses and applies the change when one is due.
func (h *TestWorkflowHandler) rollupSample(c echo.Context, sampleID uint64) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	statuses, err := h.Tests.StatusesBySample(ctx, sampleID)
	if err != nil {
		return err
	}
	if next, change := workflow.RollupSampleStatus(statuses); change {
		return h.Samples.UpdateStatus(ctx, sampleID, next)
	}
	return nil
}

// SubmitResult handles POST /v1/tests/:id/submit-result.  Only the
// assigned technician may submit, and only while the test is In
// Progress.
func (h *TestWorkflowHandler) SubmitResult(c echo.Context) error {
	technicianID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	testID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid test id.")
	}
	var req struct {
		Results string `json:"results"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Results) == "" {
		return fail(c, http.StatusBadRequest, "results is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	test, err := h.Tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Test not found.")
		}
		return internalError(c, err)
	}

	if !workflow.CanSubmitResult(workflow.TestRef{Status: test.Status, AssignedTo: test.AssignedTo}, technicianID) {
		return fail(c, http.StatusConflict, "Test is not assigned to you or not in progress.")
	}

	if err := h.Tests.SubmitResult(ctx, testID, technicianID, strings.TrimSpace(req.Results)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Test is not assigned to you or not in progress.")
		}
		return internalError(c, err)
	}
	if err := h.rollupSample(c, test.SampleID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Results submitted for HOD review."})
}

// Accept handles POST /v1/tests/:id/accept: the HOD forwards reviewed
// results to the director.
func (h *TestWorkflowHandler) Accept(c echo.Context) error {
	hodID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	testID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid test id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	test, err := h.Tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Test not found.")
		}
		return internalError(c, err)
	}
	if err := h.requireSampleHOD(ctx, test.SampleID, hodID); err != nil {
		return fail(c, http.StatusForbidden, "Sample is not assigned to you.")
	}
	if !workflow.CanAcceptResult(workflow.TestRef{Status: test.Status, AssignedTo: test.AssignedTo}) {
		return fail(c, http.StatusConflict, "Test is not awaiting HOD review.")
	}

	if err := h.Tests.Accept(ctx, testID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Test is not awaiting HOD review.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Results accepted and forwarded for final approval."})
}

// Reject handles POST /v1/tests/:id/reject.  The rejected test returns
// to Pending with the named replacement technician recorded on it; the
// assignment endpoint later moves it back to In Progress, closing the
// rework loop through the same path as first-time assignment.
func (h *TestWorkflowHandler) Reject(c echo.Context) error {
	hodID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	testID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid test id.")
	}
	var req struct {
		TechnicianID uint64 `json:"technician_id"`
	}
	if err := c.Bind(&req); err != nil || req.TechnicianID == 0 {
		return fail(c, http.StatusBadRequest, "technician_id is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	test, err := h.Tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Test not found.")
		}
		return internalError(c, err)
	}
	if err := h.requireSampleHOD(ctx, test.SampleID, hodID); err != nil {
		return fail(c, http.StatusForbidden, "Sample is not assigned to you.")
	}
	if !workflow.CanRejectResult(workflow.TestRef{Status: test.Status, AssignedTo: test.AssignedTo}) {
		return fail(c, http.StatusConflict, "Test is not awaiting HOD review.")
	}

	tech, err := h.Users.GetByID(ctx, req.TechnicianID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusBadRequest, "Replacement technician not found.")
		}
		return internalError(c, err)
	}
	ing, err := h.Ingreds.GetByID(ctx, test.IngredientID)
	if err != nil {
		return internalError(c, err)
	}
	ref := workflow.TestRef{Status: workflow.TestPending, TestType: ing.TestType}
	if tech.Specialization == nil || !workflow.Assignable(workflow.TechnicianRef{
		ID: tech.ID, Role: tech.Role, Specialization: *tech.Specialization,
	}, ref) {
		return fail(c, http.StatusBadRequest, "Replacement technician's specialization does not match this test.")
	}

	if err := h.Tests.RejectReassign(ctx, testID, tech.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Test is not awaiting HOD review.")
		}
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Results rejected; test returned to Pending for reassignment."})
}

// Approve handles POST /v1/tests/:id/approve.  The director's approval
// writes the finalized result row, and when it was the last open test
// the sample completes and the customer is notified.
func (h *TestWorkflowHandler) Approve(c echo.Context) error {
	directorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	testID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid test id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	test, err := h.Tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Test not found.")
		}
		return internalError(c, err)
	}
	if !workflow.CanDirectorApprove(workflow.TestRef{Status: test.Status, AssignedTo: test.AssignedTo}) {
		return fail(c, http.StatusConflict, "Test is not awaiting director approval.")
	}
	if test.Results == nil {
		return fail(c, http.StatusConflict, "Test has no submitted results.")
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return internalError(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Tests.ApproveTx(ctx, tx, testID, directorID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Test is not awaiting director approval.")
		}
		return internalError(c, err)
	}
	if err := h.Results.UpsertApprovedTx(ctx, tx, test.SampleID, testID, *test.Results); err != nil {
		return internalError(c, err)
	}

	statuses, err := h.Tests.StatusesBySampleTx(ctx, tx, test.SampleID)
	if err != nil {
		return internalError(c, err)
	}
	completed := false
	if next, change := workflow.RollupSampleStatus(statuses); change {
		if err := h.Samples.UpdateStatusTx(ctx, tx, test.SampleID, next); err != nil {
			return internalError(c, err)
		}
		completed = next == workflow.SampleCompleted
	}
	if err := tx.Commit(); err != nil {
		return internalError(c, err)
	}
	committed = true

	if completed {
		h.notifyCompletion(c, test.SampleID)
	}

	msg := "Test approved."
	if completed {
		msg = "Test approved. All tests are complete and the customer has been notified."
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": msg})
}

// requireSampleHOD verifies the sample is assigned to the acting HOD.
func (h *TestWorkflowHandler) requireSampleHOD(ctx context.Context, sampleID, hodID uint64) error {
	sample, err := h.Samples.GetByID(ctx, sampleID)
	if err != nil {
		return err
	}
	if sample.AssignedToHOD == nil || *sample.AssignedToHOD != hodID {
		return repository.ErrForbidden
	}
	return nil
}

// notifyCompletion emails the customer that their results are ready.
// Failures are logged by the publisher and never fail the request.
func (h *TestWorkflowHandler) notifyCompletion(c echo.Context, sampleID uint64) {
	ctx, cancel := dbCtx(c)
	defer cancel()

	sample, err := h.Samples.GetByID(ctx, sampleID)
	if err != nil {
		c.Logger().Errorf("completion lookup sample %d: %v", sampleID, err)
		return
	}
	cust, err := h.Customers.GetByID(ctx, sample.CustomerID)
	if err != nil {
		c.Logger().Errorf("completion lookup customer %d: %v", sample.CustomerID, err)
		return
	}
	if cust.Email == nil {
		return
	}
	_ = service.PublishEmail(c.Request().Context(), queue.EmailEvent{
		To:       *cust.Email,
		Subject:  "Your sample results are ready",
		Body:     "Dear " + cust.DisplayName() + ",\n\nAll tests for sample " + sample.ControlNumber + " have been completed and approved.\nPlease contact the laboratory to collect your results.",
		Kind:     "sample_completed",
		SampleID: sampleID,
	})
}
