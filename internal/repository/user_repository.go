package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/utils"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

const userColumns = "id, username, email, password_hash, role, specialization, department_id, division_id, is_verified, is_active, created_at, updated_at"

// UserRepo provides data access to the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUserParams carries the fields needed to create a user account.
type NewUserParams struct {
	Username       string
	Email          string
	Password       string
	Role           workflow.Role
	Specialization *workflow.TestType
	DepartmentID   *uint64
	DivisionID     *uint64
}

// Create inserts a user with a bcrypt-hashed password and returns its ID.
// Duplicate email or username maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, p NewUserParams, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	hash, err := utils.HashPassword(p.Password, cost)
	if err != nil {
		return 0, err
	}
	var spec *string
	if p.Specialization != nil {
		s := string(*p.Specialization)
		spec = &s
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, specialization, department_id, division_id)
		 VALUES (?,?,?,?,?,?,?)`,
		strings.TrimSpace(p.Username), email, hash, string(p.Role), spec, p.DepartmentID, p.DivisionID)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanUser(row interface{ Scan(...interface{}) error }) (model.User, error) {
	var (
		u       model.User
		role    string
		spec    sql.NullString
		deptID  sql.NullInt64
		divID   sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &spec, &deptID, &divID,
		&u.IsVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = workflow.Role(role)
	if spec.Valid {
		tt := workflow.TestType(spec.String)
		u.Specialization = &tt
	}
	if deptID.Valid {
		v := uint64(deptID.Int64)
		u.DepartmentID = &v
	}
	if divID.Valid {
		v := uint64(divID.Int64)
		u.DivisionID = &v
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", strings.TrimSpace(username)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns all users ordered by username.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListByIDs returns the users with the given IDs.  Missing IDs are
// silently absent from the result.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []uint64) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + userColumns + " FROM users WHERE id IN (?" + strings.Repeat(",?", len(ids)-1) + ")"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FirstByRole returns any active user with the given role, or
// sql.ErrNoRows when none exists.
func (r *UserRepo) FirstByRole(ctx context.Context, role workflow.Role) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role=? AND is_active=1 ORDER BY id LIMIT 1", string(role)))
}

// UpdateProfile updates the mutable account fields.  Role is immutable
// post-creation; it is deliberately absent here.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, username, email string, spec *workflow.TestType, deptID, divID *uint64, active bool) error {
	var s *string
	if spec != nil {
		v := string(*spec)
		s = &v
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username=?, email=?, specialization=?, department_id=?, division_id=?, is_active=? WHERE id=?`,
		strings.TrimSpace(username), strings.ToLower(strings.TrimSpace(email)), s, deptID, divID, active, id)
	if isDuplicateKey(err) {
		return ErrEmailExists
	}
	return err
}

// SetPassword replaces the user's password hash.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

// MarkVerified flags the user's email address as verified.
func (r *UserRepo) MarkVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET is_verified=1 WHERE id=?", id)
	return err
}

// Delete removes a user.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// CountByDivision returns how many users belong to the division.
func (r *UserRepo) CountByDivision(ctx context.Context, divisionID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE division_id=?", divisionID).Scan(&n)
	return n, err
}

// Profile is a user joined with its department and division names.
type Profile struct {
	model.User
	DepartmentName *string
	DivisionName   *string
}

// ProfileByID fetches a user together with department and division names.
func (r *UserRepo) ProfileByID(ctx context.Context, id uint64) (Profile, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.role, u.specialization,
		       u.department_id, u.division_id, u.is_verified, u.is_active,
		       u.created_at, u.updated_at, d.name, v.name
		FROM users u
		LEFT JOIN departments d ON d.id = u.department_id
		LEFT JOIN divisions v ON v.id = u.division_id
		WHERE u.id=? LIMIT 1`, id)

	var (
		p        Profile
		role     string
		spec     sql.NullString
		deptID   sql.NullInt64
		divID    sql.NullInt64
		deptName sql.NullString
		divName  sql.NullString
	)
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &role, &spec, &deptID, &divID,
		&p.IsVerified, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &deptName, &divName)
	if err != nil {
		return Profile{}, err
	}
	p.Role = workflow.Role(role)
	if spec.Valid {
		tt := workflow.TestType(spec.String)
		p.Specialization = &tt
	}
	if deptID.Valid {
		v := uint64(deptID.Int64)
		p.DepartmentID = &v
	}
	if divID.Valid {
		v := uint64(divID.Int64)
		p.DivisionID = &v
	}
	if deptName.Valid {
		p.DepartmentName = &deptName.String
	}
	if divName.Valid {
		p.DivisionName = &divName.String
	}
	return p, nil
}
