package model

import (
	"time"

	"github.com/openlabtz/lims-backend/internal/workflow"
)

// Payment is the one-to-one billing record for a sample: the sum of the
// selected ingredient prices plus the fixed marking fee.
type Payment struct {
	ID               uint64                 // payments.id
	SampleID         uint64                 // payments.sample_id (unique)
	AmountDueCents   int64                  // payments.amount_due_cents
	Status           workflow.PaymentStatus // payments.status
	VerifiedBy       *uint64                // payments.verified_by (nullable)
	VerificationDate *time.Time             // payments.verification_date (nullable)
}

// Result is the finalized record derived from a completed test, with the
// HOD and director confirmation flags.  One row per test.
type Result struct {
	ID                  uint64     // results.id
	SampleID            uint64     // results.sample_id
	TestID              uint64     // results.test_id (unique)
	ResultData          string     // results.result_data
	ConfirmedByHOD      bool       // results.confirmed_by_hod
	ConfirmedByDirector bool       // results.confirmed_by_director
	FinalizedDate       *time.Time // results.finalized_date (nullable)
	SentToDPF           bool       // results.sent_to_dpf
}
