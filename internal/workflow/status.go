// Package workflow holds the sample lifecycle rules: the closed role and
// status enumerations and the guard functions that decide whether a given
// actor may move a sample or test from one state to the next.  The package
// is pure; persistence and HTTP concerns live in repository and handler.
package workflow

// Role enumerates the user roles recognised by the system.  Authorization
// is a typed comparison against this set rather than ad-hoc string checks.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleRegistrar  Role = "Registrar"
	RoleHOD        Role = "HOD"
	RoleTechnician Role = "Technician"
	RoleDirector   Role = "Director"
	RoleCustomer   Role = "Customer"
)

// Roles lists every valid role, in the order they are presented to admins.
var Roles = []Role{RoleAdmin, RoleRegistrar, RoleHOD, RoleTechnician, RoleDirector, RoleCustomer}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	for _, r := range Roles {
		if string(r) == s {
			return true
		}
	}
	return false
}

// Allowed reports whether role is one of the permitted roles.  When it is
// not, the second return value carries a human-readable denial message of
// the form the API returns to clients.
func Allowed(role Role, permitted ...Role) (bool, string) {
	for _, p := range permitted {
		if role == p {
			return true, ""
		}
	}
	if len(permitted) == 1 {
		return false, "Access denied. " + string(permitted[0]) + " role required."
	}
	return false, "Access denied."
}

// TestType enumerates the laboratory disciplines an ingredient belongs to.
// A technician's specialization must equal the ingredient's test type for
// the technician to be assignable to that test.
type TestType string

const (
	TestTypeChemistry    TestType = "Chemistry"
	TestTypeMicrobiology TestType = "Microbiology"
)

// ValidTestType reports whether s names a known test type.
func ValidTestType(s string) bool {
	return s == string(TestTypeChemistry) || s == string(TestTypeMicrobiology)
}

// SampleStatus enumerates the states of the sample lifecycle.  Transitions
// are one-directional; only a test (not the sample) can be sent back to
// Pending through HOD rejection.
type SampleStatus string

const (
	SampleRegistered        SampleStatus = "Registered"
	SampleAwaitingRegistrar SampleStatus = "Awaiting Registrar Approval"
	SampleClaimed           SampleStatus = "Registrar Claimed"
	SampleSubmittedToHOD    SampleStatus = "Submitted to HOD"
	SampleInProgress        SampleStatus = "In Progress"
	SampleAwaitingHOD       SampleStatus = "Awaiting HOD Review"
	SampleCompleted         SampleStatus = "Completed"
	SampleSentToDPF         SampleStatus = "Sent to DPF"
)

// SampleStatuses lists every valid sample status.
var SampleStatuses = []SampleStatus{
	SampleRegistered,
	SampleAwaitingRegistrar,
	SampleClaimed,
	SampleSubmittedToHOD,
	SampleInProgress,
	SampleAwaitingHOD,
	SampleCompleted,
	SampleSentToDPF,
}

// ValidSampleStatus reports whether s names a known sample status.
func ValidSampleStatus(s string) bool {
	for _, st := range SampleStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// TestStatus enumerates the states of an individual test.
type TestStatus string

const (
	TestPending     TestStatus = "Pending"
	TestInProgress  TestStatus = "In Progress"
	TestAwaitingHOD TestStatus = "Awaiting HOD Review"
	TestAwaitingDG  TestStatus = "Awaiting DG Review"
	TestApproved    TestStatus = "Approved"
)

// TestStatuses lists every valid test status.
var TestStatuses = []TestStatus{TestPending, TestInProgress, TestAwaitingHOD, TestAwaitingDG, TestApproved}

// ValidTestStatus reports whether s names a known test status.
func ValidTestStatus(s string) bool {
	for _, st := range TestStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// PaymentStatus enumerates the states of a payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentVerified PaymentStatus = "Verified"
	PaymentCanceled PaymentStatus = "Canceled"
)

// ValidPaymentStatus reports whether s names a known payment status.
func ValidPaymentStatus(s string) bool {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentVerified, PaymentCanceled:
		return true
	}
	return false
}
