package handler

import (
	"testing"

	"github.com/openlabtz/lims-backend/internal/workflow"
)

func TestValidateSubmission(t *testing.T) {
	valid := submissionReq{
		Customer: customerReq{
			FirstName:   "Asha",
			LastName:    "Mushi",
			PhoneNumber: "712000111",
		},
		Samples: []sampleReq{{SampleName: "Maize flour", IngredientIDs: []uint64{1, 2}}},
	}
	if msg := validateSubmission(valid); msg != "" {
		t.Fatalf("valid submission rejected: %q", msg)
	}

	cases := []struct {
		name   string
		mutate func(*submissionReq)
	}{
		{"missing person name", func(r *submissionReq) { r.Customer.FirstName = "" }},
		{"org without name", func(r *submissionReq) {
			r.Customer.IsOrganization = true
			r.Customer.OrganizationName = ""
		}},
		{"no contact", func(r *submissionReq) {
			r.Customer.Email = ""
			r.Customer.PhoneNumber = ""
		}},
		{"no samples", func(r *submissionReq) { r.Samples = nil }},
		{"sample without ingredients", func(r *submissionReq) { r.Samples[0].IngredientIDs = nil }},
	}
	for _, tc := range cases {
		req := valid
		req.Samples = []sampleReq{{SampleName: "Maize flour", IngredientIDs: []uint64{1, 2}}}
		tc.mutate(&req)
		if msg := validateSubmission(req); msg == "" {
			t.Errorf("%s: expected validation error, got none", tc.name)
		}
	}
}

func TestValidateIngredient(t *testing.T) {
	if msg := validateIngredient(ingredientReq{Name: "Aflatoxin B1", PriceCents: 2500000, TestType: "Chemistry"}); msg != "" {
		t.Fatalf("valid ingredient rejected: %q", msg)
	}
	if msg := validateIngredient(ingredientReq{Name: "", PriceCents: 100, TestType: "Chemistry"}); msg == "" {
		t.Error("empty name accepted")
	}
	if msg := validateIngredient(ingredientReq{Name: "X", PriceCents: -1, TestType: "Chemistry"}); msg == "" {
		t.Error("negative price accepted")
	}
	if msg := validateIngredient(ingredientReq{Name: "X", PriceCents: 100, TestType: "Botany"}); msg == "" {
		t.Error("unknown test type accepted")
	}
}

func TestOptStr(t *testing.T) {
	if optStr("  ") != nil {
		t.Error("whitespace should map to nil")
	}
	got := optStr(" Dar es Salaam ")
	if got == nil || *got != "Dar es Salaam" {
		t.Errorf("optStr trimmed value wrong: %v", got)
	}
}

func TestRecordedAssignee(t *testing.T) {
	chem := workflow.TechnicianRef{ID: 5, Role: workflow.RoleTechnician, Specialization: workflow.TestTypeChemistry}
	other := workflow.TechnicianRef{ID: 6, Role: workflow.RoleTechnician, Specialization: workflow.TestTypeChemistry}
	matched := []workflow.TechnicianRef{other, chem}

	id := uint64(5)
	pick, ok := recordedAssignee(&id, matched)
	if !ok || pick.ID != 5 {
		t.Fatalf("recorded technician in the batch must be kept, got ok=%v id=%d", ok, pick.ID)
	}
	missing := uint64(9)
	if _, ok := recordedAssignee(&missing, matched); ok {
		t.Fatalf("technician outside the batch must not be picked")
	}
	if _, ok := recordedAssignee(nil, matched); ok {
		t.Fatalf("unassigned test must fall back to rotation")
	}
}

func TestCreateRequestValidation(t *testing.T) {
	if msg := (sampleCreateReq{CustomerID: 1}).validate(); msg != "" {
		t.Fatalf("minimal sample create rejected: %q", msg)
	}
	if msg := (sampleCreateReq{}).validate(); msg == "" {
		t.Error("sample create without customer_id accepted")
	}
	if msg := (sampleCreateReq{CustomerID: 1, Status: "Lost"}).validate(); msg == "" {
		t.Error("sample create with unknown status accepted")
	}

	if msg := (testCreateReq{SampleID: 1, IngredientID: 2, PriceCents: 100}).validate(); msg != "" {
		t.Fatalf("minimal test create rejected: %q", msg)
	}
	if msg := (testCreateReq{SampleID: 1}).validate(); msg == "" {
		t.Error("test create without ingredient_id accepted")
	}
	if msg := (testCreateReq{SampleID: 1, IngredientID: 2, PriceCents: -1}).validate(); msg == "" {
		t.Error("test create with negative price accepted")
	}

	if msg := (paymentCreateReq{SampleID: 1, AmountDueCents: 0}).validate(); msg != "" {
		t.Fatalf("minimal payment create rejected: %q", msg)
	}
	if msg := (paymentCreateReq{SampleID: 1, Status: "Refunded"}).validate(); msg == "" {
		t.Error("payment create with unknown status accepted")
	}

	if msg := (resultCreateReq{SampleID: 1, TestID: 2, ResultData: "pH 6.8"}).validate(); msg != "" {
		t.Fatalf("minimal result create rejected: %q", msg)
	}
	if msg := (resultCreateReq{SampleID: 1, TestID: 2}).validate(); msg == "" {
		t.Error("result create without result_data accepted")
	}
}
