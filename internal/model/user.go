package model

import (
	"time"

	"github.com/openlabtz/lims-backend/internal/workflow"
)

// User represents an application user record as stored in the `users`
// table.  Staff accounts carry a role from the closed workflow.Role set;
// technicians additionally carry a specialization restricting which
// ingredient test types they may be assigned.  Department and division
// are optional and mainly meaningful for HOD and technician accounts.
//
// Fields:
//  ID             – primary key identifier of the user.
//  Username       – unique login/display name.
//  Email          – unique email address.
//  PasswordHash   – bcrypt hashed password.
//  Role           – role name (Admin, Registrar, HOD, Technician, Director, Customer).
//  Specialization – technician discipline (nullable for other roles).
//  DepartmentID   – owning department (nullable).
//  DivisionID     – owning division (nullable).
//  IsVerified     – whether the email address has been verified.
//  IsActive       – whether the account may log in.
type User struct {
	ID             uint64             // users.id
	Username       string             // users.username
	Email          string             // users.email
	PasswordHash   string             // users.password_hash
	Role           workflow.Role      // users.role
	Specialization *workflow.TestType // users.specialization (nullable)
	DepartmentID   *uint64            // users.department_id (nullable)
	DivisionID     *uint64            // users.division_id (nullable)
	IsVerified     bool               // users.is_verified
	IsActive       bool               // users.is_active
	CreatedAt      time.Time          // users.created_at
	UpdatedAt      time.Time          // users.updated_at
}
