package workflow

import (
	"testing"
	"time"
)

func u64(v uint64) *uint64 { return &v }

func TestCanClaim(t *testing.T) {
	if !CanClaim(SampleRef{Status: SampleAwaitingRegistrar}) {
		t.Fatalf("unclaimed sample awaiting registrar approval must be claimable")
	}
	if CanClaim(SampleRef{Status: SampleAwaitingRegistrar, RegistrarID: u64(7)}) {
		t.Fatalf("sample with a registrar must not be claimable")
	}
	if CanClaim(SampleRef{Status: SampleClaimed}) {
		t.Fatalf("already claimed sample must not be claimable")
	}
	if CanClaim(SampleRef{Status: SampleInProgress}) {
		t.Fatalf("in-progress sample must not be claimable")
	}
}

func TestCanSubmitToHOD(t *testing.T) {
	s := SampleRef{Status: SampleClaimed, RegistrarID: u64(3)}
	if !CanSubmitToHOD(s, 3) {
		t.Fatalf("claiming registrar must be able to submit to HOD")
	}
	if CanSubmitToHOD(s, 4) {
		t.Fatalf("a different registrar must not be able to submit to HOD")
	}
	if CanSubmitToHOD(SampleRef{Status: SampleAwaitingRegistrar, RegistrarID: u64(3)}, 3) {
		t.Fatalf("unclaimed sample must not be submittable to HOD")
	}
}

func TestAssignableSpecializationMatch(t *testing.T) {
	chemTech := TechnicianRef{ID: 1, Role: RoleTechnician, Specialization: TestTypeChemistry}
	chemTest := TestRef{Status: TestPending, TestType: TestTypeChemistry}
	microTest := TestRef{Status: TestPending, TestType: TestTypeMicrobiology}

	if !Assignable(chemTech, chemTest) {
		t.Fatalf("chemistry technician must be assignable to a chemistry test")
	}
	if Assignable(chemTech, microTest) {
		t.Fatalf("chemistry technician must not be assignable to a microbiology test")
	}
	if Assignable(chemTech, TestRef{Status: TestInProgress, TestType: TestTypeChemistry}) {
		t.Fatalf("non-pending test must not be assignable")
	}
	hod := TechnicianRef{ID: 2, Role: RoleHOD, Specialization: TestTypeChemistry}
	if Assignable(hod, chemTest) {
		t.Fatalf("non-technician must not be assignable")
	}
}

func TestCanSubmitResult(t *testing.T) {
	tr := TestRef{Status: TestInProgress, AssignedTo: u64(9)}
	if !CanSubmitResult(tr, 9) {
		t.Fatalf("assigned technician must be able to submit results")
	}
	if CanSubmitResult(tr, 8) {
		t.Fatalf("unassigned technician must not be able to submit results")
	}
	if CanSubmitResult(TestRef{Status: TestPending, AssignedTo: u64(9)}, 9) {
		t.Fatalf("pending test must not accept results")
	}
	if CanSubmitResult(TestRef{Status: TestAwaitingHOD, AssignedTo: u64(9)}, 9) {
		t.Fatalf("test awaiting review must not accept results again")
	}
}

func TestReviewAndApprovalGuards(t *testing.T) {
	if !CanAcceptResult(TestRef{Status: TestAwaitingHOD}) {
		t.Fatalf("HOD must be able to accept a test awaiting review")
	}
	if CanAcceptResult(TestRef{Status: TestInProgress}) {
		t.Fatalf("HOD must not accept a test still in progress")
	}
	if !CanRejectResult(TestRef{Status: TestAwaitingHOD}) {
		t.Fatalf("HOD must be able to reject a test awaiting review")
	}
	if !CanDirectorApprove(TestRef{Status: TestAwaitingDG}) {
		t.Fatalf("director must be able to approve a test awaiting DG review")
	}
	if CanDirectorApprove(TestRef{Status: TestAwaitingHOD}) {
		t.Fatalf("director must not approve before HOD acceptance")
	}
}

func TestRollupSampleStatus(t *testing.T) {
	if _, ok := RollupSampleStatus(nil); ok {
		t.Fatalf("no tests must not produce a rollup")
	}
	if _, ok := RollupSampleStatus([]TestStatus{TestAwaitingHOD, TestPending}); ok {
		t.Fatalf("a pending sibling must block the rollup")
	}
	if _, ok := RollupSampleStatus([]TestStatus{TestAwaitingHOD, TestInProgress}); ok {
		t.Fatalf("an in-progress sibling must block the rollup")
	}
	st, ok := RollupSampleStatus([]TestStatus{TestAwaitingHOD, TestAwaitingHOD})
	if !ok || st != SampleAwaitingHOD {
		t.Fatalf("all tests out of pending/in-progress must move sample to awaiting HOD review, got %q ok=%v", st, ok)
	}
	st, ok = RollupSampleStatus([]TestStatus{TestAwaitingDG, TestAwaitingHOD})
	if !ok || st != SampleAwaitingHOD {
		t.Fatalf("mixed review states must still report awaiting HOD review, got %q ok=%v", st, ok)
	}
	st, ok = RollupSampleStatus([]TestStatus{TestApproved, TestApproved})
	if !ok || st != SampleCompleted {
		t.Fatalf("all approved tests must complete the sample, got %q ok=%v", st, ok)
	}
}

func TestAllowed(t *testing.T) {
	if ok, _ := Allowed(RoleRegistrar, RoleRegistrar); !ok {
		t.Fatalf("registrar must pass a registrar gate")
	}
	ok, msg := Allowed(RoleTechnician, RoleHOD)
	if ok {
		t.Fatalf("technician must not pass a HOD gate")
	}
	if msg != "Access denied. HOD role required." {
		t.Fatalf("unexpected denial message: %q", msg)
	}
	if ok, _ := Allowed(RoleAdmin, RoleHOD, RoleDirector); ok {
		t.Fatalf("admin must not pass a HOD/Director gate")
	}
}

func TestControlNumber(t *testing.T) {
	day := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	if got := ControlNumber(day, 1); got != "202503140001" {
		t.Fatalf("control number = %q", got)
	}
	if got := ControlNumber(day, 42); got != "202503140042" {
		t.Fatalf("control number = %q", got)
	}
	if got := NextControlNumber(day, ""); got != "202503140001" {
		t.Fatalf("first number of the day = %q", got)
	}
	if got := NextControlNumber(day, "202503140007"); got != "202503140008" {
		t.Fatalf("next number = %q", got)
	}
	// A number from another day restarts the sequence.
	if got := NextControlNumber(day, "202503130099"); got != "202503140001" {
		t.Fatalf("cross-day number = %q", got)
	}
}

func TestAmountDueCents(t *testing.T) {
	// One sample with one ingredient priced TZS 5,000.00 plus the
	// TZS 10,000.00 marking fee comes to TZS 15,000.00.
	got := AmountDueCents([]int64{500000}, 1, DefaultMarkingFeeCents)
	if got != 1500000 {
		t.Fatalf("amount due = %d, want 1500000", got)
	}
	// The marking fee is charged once per sample.
	got = AmountDueCents([]int64{500000, 250000}, 2, DefaultMarkingFeeCents)
	if got != 2750000 {
		t.Fatalf("amount due = %d, want 2750000", got)
	}
	if got := AmountDueCents(nil, 0, DefaultMarkingFeeCents); got != 0 {
		t.Fatalf("empty submission amount = %d, want 0", got)
	}
}

func TestStatusValidators(t *testing.T) {
	for _, s := range SampleStatuses {
		if !ValidSampleStatus(string(s)) {
			t.Fatalf("sample status %q must validate", s)
		}
	}
	if ValidSampleStatus("Archived") {
		t.Fatalf("unknown sample status must not validate")
	}
	for _, s := range TestStatuses {
		if !ValidTestStatus(string(s)) {
			t.Fatalf("test status %q must validate", s)
		}
	}
	if ValidTestStatus("Rejected") {
		t.Fatalf("unknown test status must not validate")
	}
	if !ValidRole("HOD") || ValidRole("HODv") {
		t.Fatalf("role validation mismatch")
	}
	if !ValidPaymentStatus("Verified") || ValidPaymentStatus("Refunded") {
		t.Fatalf("payment status validation mismatch")
	}
	if !ValidTestType("Microbiology") || ValidTestType("Physics") {
		t.Fatalf("test type validation mismatch")
	}
}

func TestRejectedTestReworkPath(t *testing.T) {
	// After a HOD rejection the test sits in Pending with the replacement
	// technician recorded on it.
	rejected := TestRef{Status: TestPending, AssignedTo: u64(5), TestType: TestTypeChemistry}

	if CanSubmitResult(rejected, 5) {
		t.Fatalf("replacement must not submit results before HOD assignment moves the test to In Progress")
	}
	replacement := TechnicianRef{ID: 5, Role: RoleTechnician, Specialization: TestTypeChemistry}
	if !Assignable(replacement, rejected) {
		t.Fatalf("pending test carrying an assignee must still be assignable")
	}
	if !CanSubmitResult(TestRef{Status: TestInProgress, AssignedTo: u64(5)}, 5) {
		t.Fatalf("replacement must be able to submit once assignment moves the test to In Progress")
	}
}
