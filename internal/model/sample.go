package model

import (
	"time"

	"github.com/openlabtz/lims-backend/internal/workflow"
)

// Sample is the central workflow entity: a physical specimen submitted by
// a customer, identified by its unique control number and moved through
// the lifecycle by registrars, HODs, technicians and directors.
//
// Fields:
//  ID               – primary key identifier.
//  ControlNumber    – unique per-day sequence number (YYYYMMDD0001).
//  CustomerID       – owning customer.
//  RegistrarID      – registrar who claimed the sample (nullable until claimed).
//  Status           – current lifecycle state.
//  AssignedToHOD    – head of department reviewing the sample (nullable).
//  SampleName       – short title, e.g. "Water Sample" (nullable).
//  SampleDetails    – free-form description (nullable).
//  DateReceived     – submission timestamp.
//  SubmittedToHODAt – when the registrar forwarded it (nullable).
//  CompletedAt      – when the final test was approved (nullable).
type Sample struct {
	ID               uint64                // samples.id
	ControlNumber    string                // samples.control_number
	CustomerID       uint64                // samples.customer_id
	RegistrarID      *uint64               // samples.registrar_id (nullable)
	Status           workflow.SampleStatus // samples.status
	AssignedToHOD    *uint64               // samples.assigned_to_hod (nullable)
	SampleName       *string               // samples.sample_name (nullable)
	SampleDetails    *string               // samples.sample_details (nullable)
	DateReceived     time.Time             // samples.date_received
	SubmittedToHODAt *time.Time            // samples.submitted_to_hod_at (nullable)
	CompletedAt      *time.Time            // samples.completed_at (nullable)
}

// Test is one requested analysis on a sample: exactly one row per
// (sample, ingredient) pair.  Its status moves independently of, but
// correlated with, the parent sample's status.  The price is copied from
// the ingredient at submission time so later catalog changes do not
// affect billed work.
type Test struct {
	ID            uint64              // tests.id
	SampleID      uint64              // tests.sample_id
	IngredientID  uint64              // tests.ingredient_id
	AssignedTo    *uint64             // tests.assigned_to (nullable)
	Results       *string             // tests.results (nullable)
	PriceCents    int64               // tests.price_cents
	Status        workflow.TestStatus // tests.status
	ApprovedBy    *uint64             // tests.approved_by (nullable)
	ApprovedDate  *time.Time          // tests.approved_date (nullable)
	SubmittedDate *time.Time          // tests.submitted_date (nullable)
}
