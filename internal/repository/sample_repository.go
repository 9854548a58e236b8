package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

const sampleColumns = `id, control_number, customer_id, registrar_id, status, assigned_to_hod,
	sample_name, sample_details, date_received, submitted_to_hod_at, completed_at`

// SampleRepo provides data access to the samples table, including the
// race-safe control-number generation and the conditional status
// transitions of the workflow.
type SampleRepo struct{ DB *sql.DB }

func NewSampleRepo(db *sql.DB) *SampleRepo { return &SampleRepo{DB: db} }

// controlNumberAttempts bounds the duplicate-key retry loop during
// creation.  Each retry re-reads the day's maximum, so contention to
// exhaust this would need that many submissions between read and insert.
const controlNumberAttempts = 5

func scanSample(row interface{ Scan(...interface{}) error }) (model.Sample, error) {
	var (
		s         model.Sample
		status    string
		registrar sql.NullInt64
		hod       sql.NullInt64
		name      sql.NullString
		details   sql.NullString
		submitted sql.NullTime
		completed sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ControlNumber, &s.CustomerID, &registrar, &status, &hod,
		&name, &details, &s.DateReceived, &submitted, &completed)
	if err != nil {
		return model.Sample{}, err
	}
	s.Status = workflow.SampleStatus(status)
	if registrar.Valid {
		v := uint64(registrar.Int64)
		s.RegistrarID = &v
	}
	if hod.Valid {
		v := uint64(hod.Int64)
		s.AssignedToHOD = &v
	}
	s.SampleName = strPtr(name)
	s.SampleDetails = strPtr(details)
	if submitted.Valid {
		t := submitted.Time
		s.SubmittedToHODAt = &t
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	return s, nil
}

// CreateTx inserts a sample within the submission transaction, generating
// its control number.  The day's current maximum is read and incremented,
// and the unique index on control_number arbitrates between concurrent
// submissions: on a duplicate key the read and insert are retried with
// the next number instead of trusting the stale read.  The read locks the
// matching index records (FOR UPDATE) so each retry sees the latest
// committed maximum rather than the transaction's REPEATABLE READ
// snapshot, which would hand back the same losing number every attempt.
func (r *SampleRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Sample) error {
	now := time.Now().UTC()
	for attempt := 0; attempt < controlNumberAttempts; attempt++ {
		var current sql.NullString
		err := tx.QueryRowContext(ctx,
			"SELECT MAX(control_number) FROM samples WHERE control_number LIKE CONCAT(?, '%') FOR UPDATE",
			workflow.ControlNumberPrefix(now)).Scan(&current)
		if err != nil {
			return err
		}
		s.ControlNumber = workflow.NextControlNumber(now, current.String)

		res, err := tx.ExecContext(ctx,
			`INSERT INTO samples (control_number, customer_id, registrar_id, status, sample_name, sample_details)
			 VALUES (?,?,?,?,?,?)`,
			s.ControlNumber, s.CustomerID, s.RegistrarID, string(s.Status),
			nullStr(s.SampleName), nullStr(s.SampleDetails))
		if err != nil {
			if isDuplicateKey(err) {
				continue // lost the number to a concurrent insert; re-read and retry
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		s.ID = uint64(id)
		return tx.QueryRowContext(ctx,
			"SELECT date_received FROM samples WHERE id=?", s.ID).Scan(&s.DateReceived)
	}
	return errors.New("control number contention: retries exhausted")
}

// Create inserts a sample outside the intake flow, generating its
// control number in a transaction of its own.
func (r *SampleRepo) Create(ctx context.Context, s *model.Sample) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.CreateTx(ctx, tx, s); err != nil {
		_ = tx.Rollback()
		if isFKViolation(err) {
			return ErrBadReference
		}
		return err
	}
	return tx.Commit()
}

// GetByID fetches a sample by id.
func (r *SampleRepo) GetByID(ctx context.Context, id uint64) (model.Sample, error) {
	return scanSample(r.DB.QueryRowContext(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE id=? LIMIT 1", id))
}

// GetByControlNumber fetches a sample by its control number.
func (r *SampleRepo) GetByControlNumber(ctx context.Context, cn string) (model.Sample, error) {
	return scanSample(r.DB.QueryRowContext(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE control_number=? LIMIT 1", cn))
}

func (r *SampleRepo) queryList(ctx context.Context, query string, args ...interface{}) ([]model.Sample, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List returns all samples, newest first.
func (r *SampleRepo) List(ctx context.Context) ([]model.Sample, error) {
	return r.queryList(ctx, "SELECT "+sampleColumns+" FROM samples ORDER BY date_received DESC")
}

// ListUnclaimed returns the samples awaiting registrar approval that no
// registrar has claimed yet, oldest first so the backlog drains in order.
func (r *SampleRepo) ListUnclaimed(ctx context.Context) ([]model.Sample, error) {
	return r.queryList(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE status=? AND registrar_id IS NULL ORDER BY date_received",
		string(workflow.SampleAwaitingRegistrar))
}

// ListByRegistrar returns the registrar's most recent samples.
func (r *SampleRepo) ListByRegistrar(ctx context.Context, registrarID uint64, limit int) ([]model.Sample, error) {
	return r.queryList(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE registrar_id=? ORDER BY date_received DESC LIMIT ?",
		registrarID, limit)
}

// ListForHOD returns samples assigned to the HOD in any of the given
// statuses, oldest first.
func (r *SampleRepo) ListForHOD(ctx context.Context, hodID uint64, statuses ...workflow.SampleStatus) ([]model.Sample, error) {
	query := "SELECT " + sampleColumns + " FROM samples WHERE assigned_to_hod=? AND status IN ("
	args := []interface{}{hodID}
	for i, st := range statuses {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, string(st))
	}
	query += ") ORDER BY date_received"
	return r.queryList(ctx, query, args...)
}

// Claim atomically assigns the sample to the registrar.  The WHERE clause
// carries the full precondition so that of two concurrent claims exactly
// one wins; the loser sees ErrAlreadyClaimed.
func (r *SampleRepo) Claim(ctx context.Context, sampleID, registrarID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE samples SET registrar_id=?, status=? WHERE id=? AND status=? AND registrar_id IS NULL",
		registrarID, string(workflow.SampleClaimed),
		sampleID, string(workflow.SampleAwaitingRegistrar))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// SubmitToHOD forwards a claimed sample to the given HOD.  Only the
// claiming registrar may do so; the guard is again in the WHERE clause.
func (r *SampleRepo) SubmitToHOD(ctx context.Context, sampleID, registrarID, hodID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE samples SET status=?, assigned_to_hod=?, submitted_to_hod_at=NOW()
		 WHERE id=? AND status=? AND registrar_id=?`,
		string(workflow.SampleSubmittedToHOD), hodID,
		sampleID, string(workflow.SampleClaimed), registrarID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus sets the sample's status unconditionally (used by the
// generic CRUD endpoint and by transitions whose precondition was already
// enforced by a conditional test update in the same transaction).
func (r *SampleRepo) UpdateStatus(ctx context.Context, sampleID uint64, status workflow.SampleStatus) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE samples SET status=? WHERE id=?", string(status), sampleID)
	return err
}

// UpdateStatusTx is UpdateStatus within an existing transaction.  When
// the new status is Completed the completion timestamp is recorded.
func (r *SampleRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, sampleID uint64, status workflow.SampleStatus) error {
	if status == workflow.SampleCompleted {
		_, err := tx.ExecContext(ctx,
			"UPDATE samples SET status=?, completed_at=NOW() WHERE id=?", string(status), sampleID)
		return err
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE samples SET status=? WHERE id=?", string(status), sampleID)
	return err
}

// Update replaces the sample's editable descriptive fields.
func (r *SampleRepo) Update(ctx context.Context, id uint64, name, details *string, status workflow.SampleStatus) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE samples SET sample_name=?, sample_details=?, status=? WHERE id=?",
		nullStr(name), nullStr(details), string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a sample; tests and payment cascade.
func (r *SampleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM samples WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of samples.
func (r *SampleRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM samples").Scan(&n)
	return n, err
}

// CountByHOD returns the number of samples assigned to the given HOD.
func (r *SampleRepo) CountByHOD(ctx context.Context, hodID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM samples WHERE assigned_to_hod=?", hodID).Scan(&n)
	return n, err
}
