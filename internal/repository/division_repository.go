package repository

import (
	"context"
	"database/sql"

	"github.com/openlabtz/lims-backend/internal/model"
)

// DivisionRepo provides CRUD over the divisions table.
type DivisionRepo struct{ DB *sql.DB }

func NewDivisionRepo(db *sql.DB) *DivisionRepo { return &DivisionRepo{DB: db} }

// Create inserts a division and returns its ID.
func (r *DivisionRepo) Create(ctx context.Context, name string, departmentID uint64) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO divisions (name, department_id) VALUES (?,?)", name, departmentID)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetByID fetches a division by id.
func (r *DivisionRepo) GetByID(ctx context.Context, id uint64) (model.Division, error) {
	var d model.Division
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, department_id FROM divisions WHERE id=? LIMIT 1", id).
		Scan(&d.ID, &d.Name, &d.DepartmentID)
	return d, err
}

// List returns all divisions ordered by name.
func (r *DivisionRepo) List(ctx context.Context) ([]model.Division, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, name, department_id FROM divisions ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Division
	for rows.Next() {
		var d model.Division
		if err := rows.Scan(&d.ID, &d.Name, &d.DepartmentID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update replaces the division's name and parent department.
func (r *DivisionRepo) Update(ctx context.Context, id uint64, name string, departmentID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE divisions SET name=?, department_id=? WHERE id=?", name, departmentID, id)
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

// Delete removes a division.
func (r *DivisionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM divisions WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of divisions.
func (r *DivisionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM divisions").Scan(&n)
	return n, err
}
