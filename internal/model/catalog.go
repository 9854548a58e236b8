package model

import "github.com/openlabtz/lims-backend/internal/workflow"

// Ingredient is a priced test parameter from the laboratory catalog,
// e.g. a specific chemical assay.  Prices are stored in cents.  The test
// type determines which technicians may run tests for this ingredient.
type Ingredient struct {
	ID         uint64            // ingredients.id
	Name       string            // ingredients.name (unique)
	PriceCents int64             // ingredients.price_cents
	TestType   workflow.TestType // ingredients.test_type
}
