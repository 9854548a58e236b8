package repository

import (
	"context"
	"database/sql"

	"github.com/openlabtz/lims-backend/internal/model"
)

// DepartmentRepo provides CRUD over the departments table.
type DepartmentRepo struct{ DB *sql.DB }

func NewDepartmentRepo(db *sql.DB) *DepartmentRepo { return &DepartmentRepo{DB: db} }

func scanDepartment(row interface{ Scan(...interface{}) error }) (model.Department, error) {
	var (
		d   model.Department
		hod sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.Name, &hod); err != nil {
		return model.Department{}, err
	}
	if hod.Valid {
		v := uint64(hod.Int64)
		d.HODID = &v
	}
	return d, nil
}

// Create inserts a department and returns its ID.
func (r *DepartmentRepo) Create(ctx context.Context, name string, hodID *uint64) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO departments (name, hod_id) VALUES (?,?)", name, hodID)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetByID fetches a department by id.
func (r *DepartmentRepo) GetByID(ctx context.Context, id uint64) (model.Department, error) {
	return scanDepartment(r.DB.QueryRowContext(ctx,
		"SELECT id, name, hod_id FROM departments WHERE id=? LIMIT 1", id))
}

// List returns all departments ordered by name.
func (r *DepartmentRepo) List(ctx context.Context) ([]model.Department, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name, hod_id FROM departments ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update replaces the department's name and HOD.
func (r *DepartmentRepo) Update(ctx context.Context, id uint64, name string, hodID *uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE departments SET name=?, hod_id=? WHERE id=?", name, hodID, id)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a department; divisions under it cascade.
func (r *DepartmentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM departments WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the number of departments.
func (r *DepartmentRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM departments").Scan(&n)
	return n, err
}
