package repository

import (
	"context"
	"database/sql"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

const testColumns = `id, sample_id, ingredient_id, assigned_to, results, price_cents,
	status, approved_by, approved_date, submitted_date`

// TestRepo provides data access to the tests table.  Every status
// transition is a conditional UPDATE whose WHERE clause carries the full
// precondition, so concurrent actors cannot double-apply a step.
type TestRepo struct{ DB *sql.DB }

func NewTestRepo(db *sql.DB) *TestRepo { return &TestRepo{DB: db} }

// TestWithSample is a test joined with enough of its parent sample for
// a technician or director work list.
type TestWithSample struct {
	Test           model.Test
	ControlNumber  string
	SampleName     *string
	IngredientName string
}

func scanTest(row interface{ Scan(...interface{}) error }) (model.Test, error) {
	var (
		t          model.Test
		assigned   sql.NullInt64
		results    sql.NullString
		status     string
		approved   sql.NullInt64
		approvedAt sql.NullTime
		submitted  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.SampleID, &t.IngredientID, &assigned, &results,
		&t.PriceCents, &status, &approved, &approvedAt, &submitted)
	if err != nil {
		return model.Test{}, err
	}
	t.Status = workflow.TestStatus(status)
	if assigned.Valid {
		v := uint64(assigned.Int64)
		t.AssignedTo = &v
	}
	t.Results = strPtr(results)
	if approved.Valid {
		v := uint64(approved.Int64)
		t.ApprovedBy = &v
	}
	if approvedAt.Valid {
		ts := approvedAt.Time
		t.ApprovedDate = &ts
	}
	if submitted.Valid {
		ts := submitted.Time
		t.SubmittedDate = &ts
	}
	return t, nil
}

// CreateTx inserts one pending test per ingredient within the submission
// transaction, snapshotting each ingredient's current price.
func (r *TestRepo) CreateTx(ctx context.Context, tx *sql.Tx, sampleID uint64, ingredients []model.Ingredient) ([]model.Test, error) {
	out := make([]model.Test, 0, len(ingredients))
	for _, ing := range ingredients {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO tests (sample_id, ingredient_id, price_cents, status) VALUES (?,?,?,?)",
			sampleID, ing.ID, ing.PriceCents, string(workflow.TestPending))
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		out = append(out, model.Test{
			ID:           uint64(id),
			SampleID:     sampleID,
			IngredientID: ing.ID,
			PriceCents:   ing.PriceCents,
			Status:       workflow.TestPending,
		})
	}
	return out, nil
}

// Create inserts a single test through the generic CRUD endpoint.  The
// intake flow creates tests in batch via CreateTx instead.
func (r *TestRepo) Create(ctx context.Context, t *model.Test) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO tests (sample_id, ingredient_id, assigned_to, results, price_cents, status)
		 VALUES (?,?,?,?,?,?)`,
		t.SampleID, t.IngredientID, nullUint(t.AssignedTo), nullStr(t.Results),
		t.PriceCents, string(t.Status))
	if err != nil {
		if isFKViolation(err) {
			return ErrBadReference
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID fetches a test by id.
func (r *TestRepo) GetByID(ctx context.Context, id uint64) (model.Test, error) {
	return scanTest(r.DB.QueryRowContext(ctx,
		"SELECT "+testColumns+" FROM tests WHERE id=? LIMIT 1", id))
}

func (r *TestRepo) queryList(ctx context.Context, query string, args ...interface{}) ([]model.Test, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// List returns all tests.
func (r *TestRepo) List(ctx context.Context) ([]model.Test, error) {
	return r.queryList(ctx, "SELECT "+testColumns+" FROM tests ORDER BY id")
}

// ListBySample returns the tests of one sample.
func (r *TestRepo) ListBySample(ctx context.Context, sampleID uint64) ([]model.Test, error) {
	return r.queryList(ctx,
		"SELECT "+testColumns+" FROM tests WHERE sample_id=? ORDER BY id", sampleID)
}

// AssignTx assigns a pending test to a technician and moves it to In
// Progress within the assignment transaction.  A pending test that
// already carries an assignee (set by a rejection) is picked up too.
func (r *TestRepo) AssignTx(ctx context.Context, tx *sql.Tx, testID, technicianID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE tests SET assigned_to=?, status=? WHERE id=? AND status=?",
		technicianID, string(workflow.TestInProgress),
		testID, string(workflow.TestPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// SubmitResult records the technician's findings and forwards the test
// to HOD review.  Only the assigned technician may submit, and only
// while the test is In Progress.
func (r *TestRepo) SubmitResult(ctx context.Context, testID, technicianID uint64, results string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tests SET results=?, status=?, submitted_date=NOW()
		 WHERE id=? AND assigned_to=? AND status=?`,
		results, string(workflow.TestAwaitingHOD),
		testID, technicianID, string(workflow.TestInProgress))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// Accept forwards a test from HOD review to director review.
func (r *TestRepo) Accept(ctx context.Context, testID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tests SET status=? WHERE id=? AND status=?",
		string(workflow.TestAwaitingDG), testID, string(workflow.TestAwaitingHOD))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// RejectReassign sends a test back for rework: results are cleared, the
// test returns to Pending and the replacement technician is recorded on
// it.  The test stays Pending until the HOD assignment endpoint moves it
// to In Progress, so the replacement cannot submit results early.
func (r *TestRepo) RejectReassign(ctx context.Context, testID, technicianID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tests SET status=?, assigned_to=?, results=NULL, submitted_date=NULL
		 WHERE id=? AND status=?`,
		string(workflow.TestPending), technicianID,
		testID, string(workflow.TestAwaitingHOD))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ApproveTx records the director's approval within the approval
// transaction.
func (r *TestRepo) ApproveTx(ctx context.Context, tx *sql.Tx, testID, directorID uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tests SET status=?, approved_by=?, approved_date=NOW()
		 WHERE id=? AND status=?`,
		string(workflow.TestApproved), directorID,
		testID, string(workflow.TestAwaitingDG))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// StatusesBySample returns the statuses of every test on the sample,
// used to roll the parent sample's status forward.
func (r *TestRepo) StatusesBySample(ctx context.Context, sampleID uint64) ([]workflow.TestStatus, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT status FROM tests WHERE sample_id=?", sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workflow.TestStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, workflow.TestStatus(s))
	}
	return out, rows.Err()
}

// StatusesBySampleTx is StatusesBySample within an existing transaction.
func (r *TestRepo) StatusesBySampleTx(ctx context.Context, tx *sql.Tx, sampleID uint64) ([]workflow.TestStatus, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT status FROM tests WHERE sample_id=?", sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workflow.TestStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, workflow.TestStatus(s))
	}
	return out, rows.Err()
}

func (r *TestRepo) queryJoined(ctx context.Context, query string, args ...interface{}) ([]TestWithSample, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TestWithSample
	for rows.Next() {
		var (
			tw         TestWithSample
			assigned   sql.NullInt64
			results    sql.NullString
			status     string
			approved   sql.NullInt64
			approvedAt sql.NullTime
			submitted  sql.NullTime
			name       sql.NullString
		)
		err := rows.Scan(&tw.Test.ID, &tw.Test.SampleID, &tw.Test.IngredientID, &assigned,
			&results, &tw.Test.PriceCents, &status, &approved, &approvedAt, &submitted,
			&tw.ControlNumber, &name, &tw.IngredientName)
		if err != nil {
			return nil, err
		}
		tw.Test.Status = workflow.TestStatus(status)
		if assigned.Valid {
			v := uint64(assigned.Int64)
			tw.Test.AssignedTo = &v
		}
		tw.Test.Results = strPtr(results)
		if approved.Valid {
			v := uint64(approved.Int64)
			tw.Test.ApprovedBy = &v
		}
		if approvedAt.Valid {
			ts := approvedAt.Time
			tw.Test.ApprovedDate = &ts
		}
		if submitted.Valid {
			ts := submitted.Time
			tw.Test.SubmittedDate = &ts
		}
		tw.SampleName = strPtr(name)
		out = append(out, tw)
	}
	return out, rows.Err()
}

const testJoinColumns = `t.id, t.sample_id, t.ingredient_id, t.assigned_to, t.results,
	t.price_cents, t.status, t.approved_by, t.approved_date, t.submitted_date,
	s.control_number, s.sample_name, i.name`

// ListByTechnician returns the technician's tests in the given statuses,
// joined with the parent sample for display.
func (r *TestRepo) ListByTechnician(ctx context.Context, technicianID uint64, statuses ...workflow.TestStatus) ([]TestWithSample, error) {
	query := `SELECT ` + testJoinColumns + `
		FROM tests t
		JOIN samples s ON s.id = t.sample_id
		JOIN ingredients i ON i.id = t.ingredient_id
		WHERE t.assigned_to=? AND t.status IN (`
	args := []interface{}{technicianID}
	for i, st := range statuses {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, string(st))
	}
	query += ") ORDER BY t.id"
	return r.queryJoined(ctx, query, args...)
}

// ListAwaitingDirector returns every test waiting for director approval.
func (r *TestRepo) ListAwaitingDirector(ctx context.Context) ([]TestWithSample, error) {
	return r.queryJoined(ctx, `SELECT `+testJoinColumns+`
		FROM tests t
		JOIN samples s ON s.id = t.sample_id
		JOIN ingredients i ON i.id = t.ingredient_id
		WHERE t.status=? ORDER BY t.submitted_date`,
		string(workflow.TestAwaitingDG))
}

// Update replaces a test's mutable fields through the generic CRUD
// endpoint.  Workflow endpoints should be preferred; this exists for
// administrative correction.
func (r *TestRepo) Update(ctx context.Context, t model.Test) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tests SET assigned_to=?, results=?, price_cents=?, status=? WHERE id=?",
		nullUint(t.AssignedTo), nullStr(t.Results), t.PriceCents, string(t.Status), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a test; its result row cascades.
func (r *TestRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tests WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of tests in the given status.
func (r *TestRepo) CountByStatus(ctx context.Context, status workflow.TestStatus) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tests WHERE status=?", string(status)).Scan(&n)
	return n, err
}

func nullUint(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// Count returns the total number of tests.
func (r *TestRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM tests").Scan(&n)
	return n, err
}

// CountPendingBySampleHOD returns the number of open tests on samples
// assigned to the given HOD.
func (r *TestRepo) CountPendingBySampleHOD(ctx context.Context, hodID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tests t JOIN samples s ON s.id = t.sample_id
		 WHERE s.assigned_to_hod=? AND t.status IN (?,?)`,
		hodID, string(workflow.TestPending), string(workflow.TestInProgress)).Scan(&n)
	return n, err
}
