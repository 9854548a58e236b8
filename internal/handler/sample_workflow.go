package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// SampleWorkflowHandler serves the registrar/HOD/director transitions on
// samples: claiming, forwarding to a HOD, assigning technicians and
// dispatching completed results.
type SampleWorkflowHandler struct {
	DB      *sql.DB
	Samples *repository.SampleRepo
	Tests   *repository.TestRepo
	Users   *repository.UserRepo
	Results *repository.ResultRepo
	Ingreds *repository.IngredientRepo
}

func NewSampleWorkflowHandler(db *sql.DB, sa *repository.SampleRepo, te *repository.TestRepo, us *repository.UserRepo, re *repository.ResultRepo, in *repository.IngredientRepo) *SampleWorkflowHandler {
	return &SampleWorkflowHandler{DB: db, Samples: sa, Tests: te, Users: us, Results: re, Ingreds: in}
}

// Unclaimed handles GET /v1/samples/unclaimed: the registrar work queue,
// oldest first.
func (h *SampleWorkflowHandler) Unclaimed(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	samples, err := h.Samples.ListUnclaimed(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "samples": sampleParts(samples)})
}

// Claim handles POST /v1/samples/:id/claim.  The claim is a single
// conditional UPDATE; when two registrars race, exactly one wins and the
// other receives 409.
func (h *SampleWorkflowHandler) Claim(c echo.Context) error {
	registrarID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	sampleID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid sample id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	sample, err := h.Samples.GetByID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Sample not found.")
		}
		return internalError(c, err)
	}
	if !workflow.CanClaim(workflow.SampleRef{Status: sample.Status, RegistrarID: sample.RegistrarID}) {
		return fail(c, http.StatusConflict, "Sample has already been claimed by another registrar.")
	}

	if err := h.Samples.Claim(ctx, sampleID, registrarID); err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			return fail(c, http.StatusConflict, "Sample has already been claimed by another registrar.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Sample claimed."})
}

// SubmitToHOD handles POST /v1/samples/:id/submit-to-hod.  Only the
// claiming registrar may forward the sample.  When hod_id is omitted the
// first HOD account is used.
func (h *SampleWorkflowHandler) SubmitToHOD(c echo.Context) error {
	registrarID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	sampleID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid sample id.")
	}
	var req struct {
		HODID uint64 `json:"hod_id"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	sample, err := h.Samples.GetByID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Sample not found.")
		}
		return internalError(c, err)
	}
	if !workflow.CanSubmitToHOD(workflow.SampleRef{Status: sample.Status, RegistrarID: sample.RegistrarID}, registrarID) {
		return fail(c, http.StatusConflict, "Sample cannot be submitted: it is not claimed by you or not in the claimed state.")
	}

	var hod model.User
	if req.HODID > 0 {
		hod, err = h.Users.GetByID(ctx, req.HODID)
	} else {
		hod, err = h.Users.FirstByRole(ctx, workflow.RoleHOD)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusBadRequest, "No head of department available.")
		}
		return internalError(c, err)
	}
	if hod.Role != workflow.RoleHOD {
		return fail(c, http.StatusBadRequest, "Selected user is not a head of department.")
	}

	if err := h.Samples.SubmitToHOD(ctx, sampleID, registrarID, hod.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusConflict, "Sample cannot be submitted: it is not claimed by you or not in the claimed state.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Sample submitted to HOD."})
}

// AssignTechnicians handles POST /v1/samples/:id/assign-technicians.
// Each pending test is matched against the given technicians by
// specialization and assigned in rotation; matched tests and the sample
// move to In Progress together.
func (h *SampleWorkflowHandler) AssignTechnicians(c echo.Context) error {
	hodID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	sampleID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid sample id.")
	}
	var req struct {
		TechnicianIDs []uint64 `json:"technician_ids"`
	}
	if err := c.Bind(&req); err != nil || len(req.TechnicianIDs) == 0 {
		return fail(c, http.StatusBadRequest, "technician_ids is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	sample, err := h.Samples.GetByID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Sample not found.")
		}
		return internalError(c, err)
	}
	if sample.AssignedToHOD == nil || *sample.AssignedToHOD != hodID {
		return fail(c, http.StatusForbidden, "Sample is not assigned to you.")
	}
	if sample.Status != workflow.SampleSubmittedToHOD && sample.Status != workflow.SampleInProgress {
		return fail(c, http.StatusConflict, "Sample is not awaiting technician assignment.")
	}

	techs, err := h.Users.ListByIDs(ctx, req.TechnicianIDs)
	if err != nil {
		return internalError(c, err)
	}
	techRefs := make([]workflow.TechnicianRef, 0, len(techs))
	for _, u := range techs {
		if u.Role != workflow.RoleTechnician || u.Specialization == nil || !u.IsActive {
			continue
		}
		techRefs = append(techRefs, workflow.TechnicianRef{
			ID:             u.ID,
			Role:           u.Role,
			Specialization: *u.Specialization,
		})
	}
	if len(techRefs) == 0 {
		return fail(c, http.StatusBadRequest, "No valid technicians in technician_ids.")
	}

	tests, err := h.Tests.ListBySample(ctx, sampleID)
	if err != nil {
		return internalError(c, err)
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

	// Rotate independently per specialization so one technician does not
	// soak up every test when several share a discipline.  A pending test
	// already carrying an assignee was rejected and reassigned by the HOD;
	// that recorded technician is kept when they are in the batch.
	nextByType := map[workflow.TestType]int{}
	assigned := 0
	for _, t := range tests {
		if t.Status != workflow.TestPending {
			continue
		}
		ing, err := h.Ingreds.GetByID(ctx, t.IngredientID)
		if err != nil {
			return internalError(c, err)
		}
		ref := workflow.TestRef{Status: t.Status, AssignedTo: t.AssignedTo, TestType: ing.TestType}

		matched := make([]workflow.TechnicianRef, 0, len(techRefs))
		for _, tr := range techRefs {
			if workflow.Assignable(tr, ref) {
				matched = append(matched, tr)
			}
		}
		if len(matched) == 0 {
			continue
		}
		pick, ok := recordedAssignee(t.AssignedTo, matched)
		if !ok {
			pick = matched[nextByType[ing.TestType]%len(matched)]
			nextByType[ing.TestType]++
		}

		if err := h.Tests.AssignTx(ctx, tx, t.ID, pick.ID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue // raced with another assignment
			}
			return internalError(c, err)
		}
		assigned++
	}
	if assigned == 0 {
		return fail(c, http.StatusBadRequest, "No pending tests match the given technicians' specializations.")
	}

	if err := h.Samples.UpdateStatusTx(ctx, tx, sampleID, workflow.SampleInProgress); err != nil {
		return internalError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return internalError(c, err)
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"message":        "Technicians assigned.",
		"assigned_tests": assigned,
	})
}

// recordedAssignee returns the matched technician already recorded on the
// test, when there is one.
func recordedAssignee(assignedTo *uint64, matched []workflow.TechnicianRef) (workflow.TechnicianRef, bool) {
	if assignedTo == nil {
		return workflow.TechnicianRef{}, false
	}
	for _, m := range matched {
		if m.ID == *assignedTo {
			return m, true
		}
	}
	return workflow.TechnicianRef{}, false
}

// SendToDPF handles POST /v1/samples/:id/send-to-dpf.  A completed
// sample's results are flagged as dispatched and the sample reaches its
// terminal state.
func (h *SampleWorkflowHandler) SendToDPF(c echo.Context) error {
	sampleID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid sample id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	sample, err := h.Samples.GetByID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Sample not found.")
		}
		return internalError(c, err)
	}
	if sample.Status != workflow.SampleCompleted {
		return fail(c, http.StatusConflict, "Only completed samples can be sent to DPF.")
	}

	if err := h.Samples.UpdateStatus(ctx, sampleID, workflow.SampleSentToDPF); err != nil {
		return internalError(c, err)
	}
	if err := h.Results.MarkSentToDPF(ctx, sampleID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Sample results sent to DPF."})
}

// ----- shared JSON shapes -----

type samplePart struct {
	ID               uint64  `json:"id"`
	ControlNumber    string  `json:"control_number"`
	CustomerID       uint64  `json:"customer_id"`
	RegistrarID      *uint64 `json:"registrar_id,omitempty"`
	Status           string  `json:"status"`
	AssignedToHOD    *uint64 `json:"assigned_to_hod,omitempty"`
	SampleName       *string `json:"sample_name,omitempty"`
	SampleDetails    *string `json:"sample_details,omitempty"`
	DateReceived     string  `json:"date_received"`
	SubmittedToHODAt *string `json:"submitted_to_hod_at,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

func toSamplePart(s model.Sample) samplePart {
	p := samplePart{
		ID:            s.ID,
		ControlNumber: s.ControlNumber,
		CustomerID:    s.CustomerID,
		RegistrarID:   s.RegistrarID,
		Status:        string(s.Status),
		AssignedToHOD: s.AssignedToHOD,
		SampleName:    s.SampleName,
		SampleDetails: s.SampleDetails,
		DateReceived:  s.DateReceived.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if s.SubmittedToHODAt != nil {
		v := s.SubmittedToHODAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		p.SubmittedToHODAt = &v
	}
	if s.CompletedAt != nil {
		v := s.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		p.CompletedAt = &v
	}
	return p
}

func sampleParts(samples []model.Sample) []samplePart {
	out := make([]samplePart, 0, len(samples))
	for _, s := range samples {
		out = append(out, toSamplePart(s))
	}
	return out
}
