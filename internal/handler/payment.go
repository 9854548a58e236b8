package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/repository"
)

// PaymentHandler serves payment verification and the administrative
// payment endpoints.
type PaymentHandler struct {
	Payments *repository.PaymentRepo
}

func NewPaymentHandler(p *repository.PaymentRepo) *PaymentHandler {
	return &PaymentHandler{Payments: p}
}

type paymentPart struct {
	ID               uint64  `json:"id"`
	SampleID         uint64  `json:"sample_id"`
	AmountDueCents   int64   `json:"amount_due_cents"`
	Status           string  `json:"status"`
	VerifiedBy       *uint64 `json:"verified_by,omitempty"`
	VerificationDate *string `json:"verification_date,omitempty"`
}

func toPaymentPart(p model.Payment) paymentPart {
	out := paymentPart{
		ID:             p.ID,
		SampleID:       p.SampleID,
		AmountDueCents: p.AmountDueCents,
		Status:         string(p.Status),
		VerifiedBy:     p.VerifiedBy,
	}
	if p.VerificationDate != nil {
		v := p.VerificationDate.UTC().Format("2006-01-02T15:04:05Z07:00")
		out.VerificationDate = &v
	}
	return out
}

func paymentParts(payments []model.Payment) []paymentPart {
	out := make([]paymentPart, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentPart(p))
	}
	return out
}

// Verify handles POST /v1/payments/verify/:control_number.  The
// registrar confirms receipt of payment against the issued control
// number; an already verified or canceled payment yields 400.
func (h *PaymentHandler) Verify(c echo.Context) error {
	registrarID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}
	cn := c.Param("control_number")
	if cn == "" {
		return fail(c, http.StatusBadRequest, "Control number is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	payment, err := h.Payments.GetByControlNumber(ctx, cn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "No payment found for that control number.")
		}
		return internalError(c, err)
	}

	if err := h.Payments.Verify(ctx, payment.ID, registrarID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusBadRequest, "Payment has already been verified or canceled.")
		}
		return internalError(c, err)
	}

	payment, err = h.Payments.GetByID(ctx, payment.ID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Payment verified.",
		"payment": toPaymentPart(payment),
	})
}
