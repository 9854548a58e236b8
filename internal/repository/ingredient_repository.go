package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// IngredientRepo provides data access to the ingredient catalog.
type IngredientRepo struct{ DB *sql.DB }

func NewIngredientRepo(db *sql.DB) *IngredientRepo { return &IngredientRepo{DB: db} }

func scanIngredient(row interface{ Scan(...interface{}) error }) (model.Ingredient, error) {
	var (
		ing model.Ingredient
		tt  string
	)
	if err := row.Scan(&ing.ID, &ing.Name, &ing.PriceCents, &tt); err != nil {
		return model.Ingredient{}, err
	}
	ing.TestType = workflow.TestType(tt)
	return ing, nil
}

// Create inserts a catalog entry and returns its ID.  Names are unique.
func (r *IngredientRepo) Create(ctx context.Context, name string, priceCents int64, testType workflow.TestType) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO ingredients (name, price_cents, test_type) VALUES (?,?,?)",
		strings.TrimSpace(name), priceCents, string(testType))
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetByID fetches a catalog entry by id.
func (r *IngredientRepo) GetByID(ctx context.Context, id uint64) (model.Ingredient, error) {
	return scanIngredient(r.DB.QueryRowContext(ctx,
		"SELECT id, name, price_cents, test_type FROM ingredients WHERE id=? LIMIT 1", id))
}

// List returns the catalog ordered by name.
func (r *IngredientRepo) List(ctx context.Context) ([]model.Ingredient, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, name, price_cents, test_type FROM ingredients ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ingredient
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// ListByIDsTx returns the catalog entries with the given IDs inside a
// transaction, preserving input order and skipping unknown IDs (the
// original system ignores them rather than failing the submission).
func (r *IngredientRepo) ListByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]model.Ingredient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT id, name, price_cents, test_type FROM ingredients WHERE id IN (?" +
		strings.Repeat(",?", len(ids)-1) + ")"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[uint64]model.Ingredient, len(ids))
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		byID[ing.ID] = ing
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Ingredient, 0, len(ids))
	for _, id := range ids {
		if ing, ok := byID[id]; ok {
			out = append(out, ing)
		}
	}
	return out, nil
}

// Update replaces a catalog entry.
func (r *IngredientRepo) Update(ctx context.Context, id uint64, name string, priceCents int64, testType workflow.TestType) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE ingredients SET name=?, price_cents=?, test_type=? WHERE id=?",
		strings.TrimSpace(name), priceCents, string(testType), id)
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

// Delete removes a catalog entry.  Entries referenced by tests are
// protected by the foreign key and surface as ErrConflict.
func (r *IngredientRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM ingredients WHERE id=?", id)
	if err != nil {
		if strings.Contains(err.Error(), "1451") { // row is referenced
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of catalog ingredients.
func (r *IngredientRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingredients").Scan(&n)
	return n, err
}
