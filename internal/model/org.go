package model

// Department represents a laboratory department, e.g. Chemistry.  Each
// department may designate one user as its head (HOD).
type Department struct {
	ID    uint64  // departments.id
	Name  string  // departments.name
	HODID *uint64 // departments.hod_id (nullable)
}

// Division represents a subdivision of a department.  Team statistics on
// the HOD dashboard are computed per division.
type Division struct {
	ID           uint64 // divisions.id
	Name         string // divisions.name
	DepartmentID uint64 // divisions.department_id
}
