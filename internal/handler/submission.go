package handler

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/config"
	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/queue"
	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/service"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// SubmissionHandler serves the two sample intake endpoints: the public
// customer submission and the registrar walk-in registration.  Both run
// the whole intake (customer, samples, tests, payments) in a single
// transaction so either everything lands or nothing does.
type SubmissionHandler struct {
	Cfg         config.Config
	DB          *sql.DB
	Customers   *repository.CustomerRepo
	Ingredients *repository.IngredientRepo
	Samples     *repository.SampleRepo
	Tests       *repository.TestRepo
	Payments    *repository.PaymentRepo
}

func NewSubmissionHandler(cfg config.Config, db *sql.DB, cu *repository.CustomerRepo, ing *repository.IngredientRepo, sa *repository.SampleRepo, te *repository.TestRepo, pa *repository.PaymentRepo) *SubmissionHandler {
	return &SubmissionHandler{Cfg: cfg, DB: db, Customers: cu, Ingredients: ing, Samples: sa, Tests: te, Payments: pa}
}

type customerReq struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`

	IsOrganization   bool   `json:"is_organization"`
	OrganizationName string `json:"organization_name"`
	OrganizationID   string `json:"organization_id"`

	Country string `json:"country"`
	Region  string `json:"region"`
	Street  string `json:"street"`

	PhoneCountryCode string `json:"phone_country_code"`
	PhoneNumber      string `json:"phone_number"`
	Email            string `json:"email"`
}

type sampleReq struct {
	SampleName    string   `json:"sample_name"`
	SampleDetails string   `json:"sample_details"`
	IngredientIDs []uint64 `json:"ingredient_ids"`
}

type submissionReq struct {
	Customer customerReq `json:"customer"`
	Samples  []sampleReq `json:"samples"`
}

type sampleResp struct {
	ID             uint64 `json:"id"`
	ControlNumber  string `json:"control_number"`
	SampleName     string `json:"sample_name,omitempty"`
	Status         string `json:"status"`
	TestCount      int    `json:"test_count"`
	AmountDueCents int64  `json:"amount_due_cents"`
}

func optStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (r customerReq) toModel() model.Customer {
	email := strings.ToLower(strings.TrimSpace(r.Email))
	return model.Customer{
		FirstName:        optStr(r.FirstName),
		MiddleName:       optStr(r.MiddleName),
		LastName:         optStr(r.LastName),
		NationalID:       optStr(r.NationalID),
		IsOrganization:   r.IsOrganization,
		OrganizationName: optStr(r.OrganizationName),
		OrganizationID:   optStr(r.OrganizationID),
		Country:          optStr(r.Country),
		Region:           optStr(r.Region),
		Street:           optStr(r.Street),
		PhoneCountryCode: optStr(r.PhoneCountryCode),
		PhoneNumber:      optStr(r.PhoneNumber),
		Email:            optStr(email),
	}
}

func validateSubmission(req submissionReq) string {
	c := req.Customer
	if c.IsOrganization {
		if strings.TrimSpace(c.OrganizationName) == "" {
			return "organization_name is required for organization customers."
		}
	} else if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return "first_name and last_name are required."
	}
	if strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.PhoneNumber) == "" {
		return "At least one of email or phone_number is required."
	}
	if len(req.Samples) == 0 {
		return "At least one sample is required."
	}
	for i, s := range req.Samples {
		if len(s.IngredientIDs) == 0 {
			return fmt.Sprintf("Sample %d has no ingredients selected.", i+1)
		}
	}
	return ""
}

// Submit handles POST /v1/samples/submit, the public customer intake.
// Created samples await registrar approval.
func (h *SubmissionHandler) Submit(c echo.Context) error {
	return h.intake(c, nil)
}

// Register handles POST /v1/samples/register, the registrar walk-in
// intake.  The registrar records the customer in person, so the samples
// start out already claimed by that registrar.
func (h *SubmissionHandler) Register(c echo.Context) error {
	registrarID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	return h.intake(c, &registrarID)
}

func (h *SubmissionHandler) intake(c echo.Context, registrarID *uint64) error {
	var req submissionReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	if msg := validateSubmission(req); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

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

	cust := req.Customer.toModel()
	customerID, err := h.Customers.GetOrCreateTx(ctx, tx, cust)
	if err != nil {
		return internalError(c, err)
	}

	status := workflow.SampleAwaitingRegistrar
	if registrarID != nil {
		status = workflow.SampleClaimed
	}

	resp := make([]sampleResp, 0, len(req.Samples))
	var totalCents int64
	controlNumbers := make([]string, 0, len(req.Samples))

	for _, sr := range req.Samples {
		ingredients, err := h.Ingredients.ListByIDsTx(ctx, tx, sr.IngredientIDs)
		if err != nil {
			return internalError(c, err)
		}
		if len(ingredients) == 0 {
			return fail(c, http.StatusBadRequest, "No valid ingredients selected.")
		}

		sample := model.Sample{
			CustomerID:    customerID,
			RegistrarID:   registrarID,
			Status:        status,
			SampleName:    optStr(sr.SampleName),
			SampleDetails: optStr(sr.SampleDetails),
		}
		if err := h.Samples.CreateTx(ctx, tx, &sample); err != nil {
			return internalError(c, err)
		}

		tests, err := h.Tests.CreateTx(ctx, tx, sample.ID, ingredients)
		if err != nil {
			return internalError(c, err)
		}

		prices := make([]int64, 0, len(tests))
		for _, t := range tests {
			prices = append(prices, t.PriceCents)
		}
		amount := workflow.AmountDueCents(prices, 1, h.Cfg.MarkingFeeCents)
		payment := model.Payment{SampleID: sample.ID, AmountDueCents: amount}
		if err := h.Payments.CreateTx(ctx, tx, &payment); err != nil {
			return internalError(c, err)
		}

		totalCents += amount
		controlNumbers = append(controlNumbers, sample.ControlNumber)
		resp = append(resp, sampleResp{
			ID:             sample.ID,
			ControlNumber:  sample.ControlNumber,
			SampleName:     sr.SampleName,
			Status:         string(sample.Status),
			TestCount:      len(tests),
			AmountDueCents: amount,
		})
	}

	if err := tx.Commit(); err != nil {
		return internalError(c, err)
	}
	committed = true

	if cust.Email != nil {
		_ = service.PublishEmail(c.Request().Context(), queue.EmailEvent{
			To:      *cust.Email,
			Subject: "Sample submission received",
			Body: fmt.Sprintf("Dear %s,\n\nYour submission of %d sample(s) has been received.\nControl numbers: %s\nTotal amount due: %d cents.\n\nPlease quote a control number when paying or inquiring.",
				cust.DisplayName(), len(resp), strings.Join(controlNumbers, ", "), totalCents),
			Kind: "sample_submitted",
		})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success":           true,
		"message":           "Samples submitted successfully.",
		"customer_id":       customerID,
		"samples":           resp,
		"total_amount_cents": totalCents,
	})
}
