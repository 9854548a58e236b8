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

// LabCRUDHandler serves the administrative CRUD endpoints for samples,
// tests, payments and results.  The intake and workflow endpoints are
// the normal creation paths; these create endpoints exist for
// administrative correction and back-filling, and still generate
// control numbers the same way intake does.
type LabCRUDHandler struct {
	Samples   *repository.SampleRepo
	Tests     *repository.TestRepo
	Results   *repository.ResultRepo
	Payments  *repository.PaymentRepo
	Customers *repository.CustomerRepo
}

func NewLabCRUDHandler(sa *repository.SampleRepo, te *repository.TestRepo, re *repository.ResultRepo, pa *repository.PaymentRepo, cu *repository.CustomerRepo) *LabCRUDHandler {
	return &LabCRUDHandler{Samples: sa, Tests: te, Results: re, Payments: pa, Customers: cu}
}

type testPart struct {
	ID            uint64  `json:"id"`
	SampleID      uint64  `json:"sample_id"`
	IngredientID  uint64  `json:"ingredient_id"`
	AssignedTo    *uint64 `json:"assigned_to,omitempty"`
	Results       *string `json:"results,omitempty"`
	PriceCents    int64   `json:"price_cents"`
	Status        string  `json:"status"`
	ApprovedBy    *uint64 `json:"approved_by,omitempty"`
	ApprovedDate  *string `json:"approved_date,omitempty"`
	SubmittedDate *string `json:"submitted_date,omitempty"`
}

func toTestPart(t model.Test) testPart {
	p := testPart{
		ID:           t.ID,
		SampleID:     t.SampleID,
		IngredientID: t.IngredientID,
		AssignedTo:   t.AssignedTo,
		Results:      t.Results,
		PriceCents:   t.PriceCents,
		Status:       string(t.Status),
		ApprovedBy:   t.ApprovedBy,
	}
	if t.ApprovedDate != nil {
		v := t.ApprovedDate.UTC().Format("2006-01-02T15:04:05Z07:00")
		p.ApprovedDate = &v
	}
	if t.SubmittedDate != nil {
		v := t.SubmittedDate.UTC().Format("2006-01-02T15:04:05Z07:00")
		p.SubmittedDate = &v
	}
	return p
}

func testParts(tests []model.Test) []testPart {
	out := make([]testPart, 0, len(tests))
	for _, t := range tests {
		out = append(out, toTestPart(t))
	}
	return out
}

type resultPart struct {
	ID                  uint64  `json:"id"`
	SampleID            uint64  `json:"sample_id"`
	TestID              uint64  `json:"test_id"`
	ResultData          string  `json:"result_data"`
	ConfirmedByHOD      bool    `json:"confirmed_by_hod"`
	ConfirmedByDirector bool    `json:"confirmed_by_director"`
	FinalizedDate       *string `json:"finalized_date,omitempty"`
	SentToDPF           bool    `json:"sent_to_dpf"`
}

func toResultPart(r model.Result) resultPart {
	p := resultPart{
		ID:                  r.ID,
		SampleID:            r.SampleID,
		TestID:              r.TestID,
		ResultData:          r.ResultData,
		ConfirmedByHOD:      r.ConfirmedByHOD,
		ConfirmedByDirector: r.ConfirmedByDirector,
		SentToDPF:           r.SentToDPF,
	}
	if r.FinalizedDate != nil {
		v := r.FinalizedDate.UTC().Format("2006-01-02T15:04:05Z07:00")
		p.FinalizedDate = &v
	}
	return p
}

// ----- samples -----

type sampleCreateReq struct {
	CustomerID    uint64 `json:"customer_id"`
	SampleName    string `json:"sample_name"`
	SampleDetails string `json:"sample_details"`
	Status        string `json:"status"`
}

func (r sampleCreateReq) validate() string {
	if r.CustomerID == 0 {
		return "customer_id is required."
	}
	if r.Status != "" && !workflow.ValidSampleStatus(r.Status) {
		return "Unknown sample status."
	}
	return ""
}

// CreateSample handles POST /v1/samples: administrative creation outside
// the intake flow.  A control number is generated as on intake; status
// defaults to Registered.
func (h *LabCRUDHandler) CreateSample(c echo.Context) error {
	var req sampleCreateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if msg := req.validate(); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	status := workflow.SampleRegistered
	if req.Status != "" {
		status = workflow.SampleStatus(req.Status)
	}
	sample := model.Sample{
		CustomerID:    req.CustomerID,
		Status:        status,
		SampleName:    optStr(req.SampleName),
		SampleDetails: optStr(req.SampleDetails),
	}
	if err := h.Samples.Create(ctx, &sample); err != nil {
		if errors.Is(err, repository.ErrBadReference) {
			return fail(c, http.StatusBadRequest, "Customer not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Sample created.", "sample": toSamplePart(sample)})
}

// ListSamples handles GET /v1/samples.
func (h *LabCRUDHandler) ListSamples(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	samples, err := h.Samples.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "samples": sampleParts(samples)})
}

// GetSample handles GET /v1/samples/:id, returning the sample with its
// customer, tests and payment.
func (h *LabCRUDHandler) GetSample(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid sample id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	sample, err := h.Samples.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Sample not found.")
		}
		return internalError(c, err)
	}
	cust, err := h.Customers.GetByID(ctx, sample.CustomerID)
	if err != nil {
		return internalError(c, err)
	}
	tests, err := h.Tests.ListBySample(ctx, id)
	if err != nil {
		return internalError(c, err)
	}

	resp := echo.Map{
		"success":  true,
		"sample":   toSamplePart(sample),
		"customer": toCustomerPart(cust),
		"tests":    testParts(tests),
	}
	payment, err := h.Payments.GetBySample(ctx, id)
	if err == nil {
		resp["payment"] = toPaymentPart(payment)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateSample handles PUT /v1/samples/:id: administrative correction of
// the descriptive fields and status.
func (h *LabCRUDHandler) UpdateSample(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid sample id.")
	}
	var req struct {
		SampleName    string `json:"sample_name"`
		SampleDetails string `json:"sample_details"`
		Status        string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if !workflow.ValidSampleStatus(req.Status) {
		return fail(c, http.StatusBadRequest, "Unknown sample status.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Samples.Update(ctx, id, optStr(req.SampleName), optStr(req.SampleDetails), workflow.SampleStatus(req.Status)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Sample not found.")
		}
		return internalError(c, err)
	}
	sample, err := h.Samples.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Sample updated.", "sample": toSamplePart(sample)})
}

// DeleteSample handles DELETE /v1/samples/:id.  Tests, payment and
// results cascade with it.
func (h *LabCRUDHandler) DeleteSample(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid sample id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Samples.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Sample not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Sample deleted."})
}

// ----- tests -----

type testCreateReq struct {
	SampleID     uint64  `json:"sample_id"`
	IngredientID uint64  `json:"ingredient_id"`
	AssignedTo   *uint64 `json:"assigned_to"`
	PriceCents   int64   `json:"price_cents"`
	Status       string  `json:"status"`
}

func (r testCreateReq) validate() string {
	if r.SampleID == 0 || r.IngredientID == 0 {
		return "sample_id and ingredient_id are required."
	}
	if r.PriceCents < 0 {
		return "price_cents must not be negative."
	}
	if r.Status != "" && !workflow.ValidTestStatus(r.Status) {
		return "Unknown test status."
	}
	return ""
}

// CreateTest handles POST /v1/tests: administrative creation of a single
// test.  Status defaults to Pending.
func (h *LabCRUDHandler) CreateTest(c echo.Context) error {
	var req testCreateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if msg := req.validate(); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	status := workflow.TestPending
	if req.Status != "" {
		status = workflow.TestStatus(req.Status)
	}
	test := model.Test{
		SampleID:     req.SampleID,
		IngredientID: req.IngredientID,
		AssignedTo:   req.AssignedTo,
		PriceCents:   req.PriceCents,
		Status:       status,
	}
	if err := h.Tests.Create(ctx, &test); err != nil {
		if errors.Is(err, repository.ErrBadReference) {
			return fail(c, http.StatusBadRequest, "Sample or ingredient not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Test created.", "test": toTestPart(test)})
}

// ListTests handles GET /v1/tests.
func (h *LabCRUDHandler) ListTests(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	tests, err := h.Tests.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "tests": testParts(tests)})
}

// GetTest handles GET /v1/tests/:id.
func (h *LabCRUDHandler) GetTest(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid test id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	test, err := h.Tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Test not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "test": toTestPart(test)})
}

// UpdateTest handles PUT /v1/tests/:id: administrative correction.
// Workflow transitions should use the dedicated endpoints.
func (h *LabCRUDHandler) UpdateTest(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid test id.")
	}
	var req struct {
		AssignedTo *uint64 `json:"assigned_to"`
		Results    *string `json:"results"`
		PriceCents int64   `json:"price_cents"`
		Status     string  `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if !workflow.ValidTestStatus(req.Status) {
		return fail(c, http.StatusBadRequest, "Unknown test status.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	test := model.Test{
		ID:         id,
		AssignedTo: req.AssignedTo,
		Results:    req.Results,
		PriceCents: req.PriceCents,
		Status:     workflow.TestStatus(req.Status),
	}
	if err := h.Tests.Update(ctx, test); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Test not found.")
		}
		return internalError(c, err)
	}
	test, err := h.Tests.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Test updated.", "test": toTestPart(test)})
}

// DeleteTest handles DELETE /v1/tests/:id.
func (h *LabCRUDHandler) DeleteTest(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid test id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Tests.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Test not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Test deleted."})
}

// ----- payments -----

type paymentCreateReq struct {
	SampleID       uint64 `json:"sample_id"`
	AmountDueCents int64  `json:"amount_due_cents"`
	Status         string `json:"status"`
}

func (r paymentCreateReq) validate() string {
	if r.SampleID == 0 {
		return "sample_id is required."
	}
	if r.AmountDueCents < 0 {
		return "amount_due_cents must not be negative."
	}
	if r.Status != "" && !workflow.ValidPaymentStatus(r.Status) {
		return "Unknown payment status."
	}
	return ""
}

// CreatePayment handles POST /v1/payments.  Each sample carries at most
// one payment; status defaults to Pending.
func (h *LabCRUDHandler) CreatePayment(c echo.Context) error {
	var req paymentCreateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if msg := req.validate(); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	status := workflow.PaymentPending
	if req.Status != "" {
		status = workflow.PaymentStatus(req.Status)
	}
	payment := model.Payment{SampleID: req.SampleID, AmountDueCents: req.AmountDueCents, Status: status}
	if err := h.Payments.Create(ctx, &payment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Sample already has a payment.")
		}
		if errors.Is(err, repository.ErrBadReference) {
			return fail(c, http.StatusBadRequest, "Sample not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Payment created.", "payment": toPaymentPart(payment)})
}

// ListPayments handles GET /v1/payments.
func (h *LabCRUDHandler) ListPayments(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	payments, err := h.Payments.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "payments": paymentParts(payments)})
}

// GetPayment handles GET /v1/payments/:id.
func (h *LabCRUDHandler) GetPayment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid payment id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	payment, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Payment not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "payment": toPaymentPart(payment)})
}

// UpdatePayment handles PUT /v1/payments/:id: administrative correction
// of amount and status.  Verification goes through the verify endpoint.
func (h *LabCRUDHandler) UpdatePayment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid payment id.")
	}
	var req struct {
		AmountDueCents int64  `json:"amount_due_cents"`
		Status         string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if !workflow.ValidPaymentStatus(req.Status) {
		return fail(c, http.StatusBadRequest, "Unknown payment status.")
	}
	if req.AmountDueCents < 0 {
		return fail(c, http.StatusBadRequest, "amount_due_cents must not be negative.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	payment := model.Payment{ID: id, AmountDueCents: req.AmountDueCents, Status: workflow.PaymentStatus(req.Status)}
	if err := h.Payments.Update(ctx, payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Payment not found.")
		}
		return internalError(c, err)
	}
	payment, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Payment updated.", "payment": toPaymentPart(payment)})
}

// DeletePayment handles DELETE /v1/payments/:id.
func (h *LabCRUDHandler) DeletePayment(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid payment id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Payments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Payment not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Payment deleted."})
}

// ----- results -----

type resultCreateReq struct {
	SampleID            uint64 `json:"sample_id"`
	TestID              uint64 `json:"test_id"`
	ResultData          string `json:"result_data"`
	ConfirmedByHOD      bool   `json:"confirmed_by_hod"`
	ConfirmedByDirector bool   `json:"confirmed_by_director"`
	SentToDPF           bool   `json:"sent_to_dpf"`
}

func (r resultCreateReq) validate() string {
	if r.SampleID == 0 || r.TestID == 0 {
		return "sample_id and test_id are required."
	}
	if r.ResultData == "" {
		return "result_data is required."
	}
	return ""
}

// CreateResult handles POST /v1/results.  Director approval is the
// normal path; this exists for back-filling.  Each test carries at most
// one result.
func (h *LabCRUDHandler) CreateResult(c echo.Context) error {
	var req resultCreateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if msg := req.validate(); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	result := model.Result{
		SampleID:            req.SampleID,
		TestID:              req.TestID,
		ResultData:          req.ResultData,
		ConfirmedByHOD:      req.ConfirmedByHOD,
		ConfirmedByDirector: req.ConfirmedByDirector,
		SentToDPF:           req.SentToDPF,
	}
	if err := h.Results.Create(ctx, &result); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Test already has a result.")
		}
		if errors.Is(err, repository.ErrBadReference) {
			return fail(c, http.StatusBadRequest, "Sample or test not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Result created.", "result": toResultPart(result)})
}

// ListResults handles GET /v1/results.
func (h *LabCRUDHandler) ListResults(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	results, err := h.Results.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	out := make([]resultPart, 0, len(results))
	for _, r := range results {
		out = append(out, toResultPart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "results": out})
}

// GetResult handles GET /v1/results/:id.
func (h *LabCRUDHandler) GetResult(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid result id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	result, err := h.Results.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Result not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "result": toResultPart(result)})
}

// UpdateResult handles PUT /v1/results/:id.
func (h *LabCRUDHandler) UpdateResult(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid result id.")
	}
	var req struct {
		ResultData          string `json:"result_data"`
		ConfirmedByHOD      bool   `json:"confirmed_by_hod"`
		ConfirmedByDirector bool   `json:"confirmed_by_director"`
		SentToDPF           bool   `json:"sent_to_dpf"`
	}
	if err := c.Bind(&req); err != nil || req.ResultData == "" {
		return fail(c, http.StatusBadRequest, "result_data is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	result := model.Result{
		ID:                  id,
		ResultData:          req.ResultData,
		ConfirmedByHOD:      req.ConfirmedByHOD,
		ConfirmedByDirector: req.ConfirmedByDirector,
		SentToDPF:           req.SentToDPF,
	}
	if err := h.Results.Update(ctx, result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Result not found.")
		}
		return internalError(c, err)
	}
	result, err := h.Results.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Result updated.", "result": toResultPart(result)})
}

// DeleteResult handles DELETE /v1/results/:id.
func (h *LabCRUDHandler) DeleteResult(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid result id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Results.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Result not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Result deleted."})
}
