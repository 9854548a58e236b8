package workflow

// SampleRef carries the fields of a sample that transition guards inspect.
type SampleRef struct {
	Status      SampleStatus
	RegistrarID *uint64
	HODID       *uint64
}

// TestRef carries the fields of a test that transition guards inspect.
type TestRef struct {
	Status     TestStatus
	AssignedTo *uint64
	TestType   TestType
}

// TechnicianRef carries the fields of a user that assignment checks inspect.
type TechnicianRef struct {
	ID             uint64
	Role           Role
	Specialization TestType
}

// CanClaim reports whether a registrar may claim the sample.  A sample is
// claimable only while it awaits registrar approval and no registrar has
// taken it yet.  The actual claim must still be a conditional UPDATE so
// that two concurrent claims cannot both win.
func CanClaim(s SampleRef) bool {
	return s.Status == SampleAwaitingRegistrar && s.RegistrarID == nil
}

// CanSubmitToHOD reports whether the given registrar may forward the
// sample to a head of department.  Only the claiming registrar may do so,
// and only from the claimed state.
func CanSubmitToHOD(s SampleRef, registrarID uint64) bool {
	return s.Status == SampleClaimed && s.RegistrarID != nil && *s.RegistrarID == registrarID
}

// Assignable reports whether the technician may be assigned to the test.
// The test must still be pending and the technician's specialization must
// equal the ingredient's test type.  A mismatch is not an error: callers
// skip the test silently.
func Assignable(tech TechnicianRef, t TestRef) bool {
	if tech.Role != RoleTechnician {
		return false
	}
	if t.Status != TestPending {
		return false
	}
	return tech.Specialization == t.TestType
}

// CanSubmitResult reports whether the technician may record results on the
// test: it must be assigned to them and in progress.
func CanSubmitResult(t TestRef, technicianID uint64) bool {
	return t.Status == TestInProgress && t.AssignedTo != nil && *t.AssignedTo == technicianID
}

// CanAcceptResult reports whether a HOD may accept the test's results and
// pass them on for director review.
func CanAcceptResult(t TestRef) bool {
	return t.Status == TestAwaitingHOD
}

// CanRejectResult reports whether a HOD may reject the test's results.
// Rejection additionally requires a replacement technician; validate the
// replacement with Assignable against a pending TestRef, since rejection
// resets the test before reassigning.
func CanRejectResult(t TestRef) bool {
	return t.Status == TestAwaitingHOD
}

// CanDirectorApprove reports whether a director may give final approval.
func CanDirectorApprove(t TestRef) bool {
	return t.Status == TestAwaitingDG
}

// RollupSampleStatus derives the parent sample's status from its tests
// after a test transition.  The sample moves to Awaiting HOD Review only
// once no sibling test remains Pending or In Progress, and to Completed
// only once every test is Approved.  It returns ok=false when the tests do
// not yet justify a sample-level change.
func RollupSampleStatus(tests []TestStatus) (SampleStatus, bool) {
	if len(tests) == 0 {
		return "", false
	}
	allApproved := true
	anyOpen := false
	for _, st := range tests {
		if st != TestApproved {
			allApproved = false
		}
		if st == TestPending || st == TestInProgress {
			anyOpen = true
		}
	}
	if allApproved {
		return SampleCompleted, true
	}
	if !anyOpen {
		return SampleAwaitingHOD, true
	}
	return "", false
}
