package repository

import (
	"context"
	"database/sql"

	"github.com/openlabtz/lims-backend/internal/model"
)

const resultColumns = `id, sample_id, test_id, result_data, confirmed_by_hod,
	confirmed_by_director, finalized_date, sent_to_dpf`

// ResultRepo provides data access to the results table: the finalized
// record the director's approval produces from each test.
type ResultRepo struct{ DB *sql.DB }

func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{DB: db} }

func scanResult(row interface{ Scan(...interface{}) error }) (model.Result, error) {
	var (
		res       model.Result
		finalized sql.NullTime
	)
	err := row.Scan(&res.ID, &res.SampleID, &res.TestID, &res.ResultData,
		&res.ConfirmedByHOD, &res.ConfirmedByDirector, &finalized, &res.SentToDPF)
	if err != nil {
		return model.Result{}, err
	}
	if finalized.Valid {
		t := finalized.Time
		res.FinalizedDate = &t
	}
	return res, nil
}

// UpsertApprovedTx writes the finalized result for a test within the
// director-approval transaction.  The unique key on test_id makes a
// repeated approval an update rather than a second row.
func (r *ResultRepo) UpsertApprovedTx(ctx context.Context, tx *sql.Tx, sampleID, testID uint64, data string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO results (sample_id, test_id, result_data, confirmed_by_hod, confirmed_by_director, finalized_date)
		 VALUES (?,?,?,1,1,NOW())
		 ON DUPLICATE KEY UPDATE result_data=VALUES(result_data),
			confirmed_by_hod=1, confirmed_by_director=1, finalized_date=NOW()`,
		sampleID, testID, data)
	return err
}

// Create inserts a result through the generic CRUD endpoint.  A second
// result for the same test maps to ErrConflict, a missing sample or test
// to ErrBadReference.
func (r *ResultRepo) Create(ctx context.Context, res *model.Result) error {
	out, err := r.DB.ExecContext(ctx,
		`INSERT INTO results (sample_id, test_id, result_data, confirmed_by_hod, confirmed_by_director, sent_to_dpf)
		 VALUES (?,?,?,?,?,?)`,
		res.SampleID, res.TestID, res.ResultData,
		res.ConfirmedByHOD, res.ConfirmedByDirector, res.SentToDPF)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		if isFKViolation(err) {
			return ErrBadReference
		}
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// MarkSentToDPF flags every result of the sample as dispatched.
func (r *ResultRepo) MarkSentToDPF(ctx context.Context, sampleID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE results SET sent_to_dpf=1 WHERE sample_id=?", sampleID)
	return err
}

// GetByID fetches a result by id.
func (r *ResultRepo) GetByID(ctx context.Context, id uint64) (model.Result, error) {
	return scanResult(r.DB.QueryRowContext(ctx,
		"SELECT "+resultColumns+" FROM results WHERE id=? LIMIT 1", id))
}

func (r *ResultRepo) queryList(ctx context.Context, query string, args ...interface{}) ([]model.Result, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// List returns all results.
func (r *ResultRepo) List(ctx context.Context) ([]model.Result, error) {
	return r.queryList(ctx, "SELECT "+resultColumns+" FROM results ORDER BY id")
}

// ListBySample returns the results of one sample.
func (r *ResultRepo) ListBySample(ctx context.Context, sampleID uint64) ([]model.Result, error) {
	return r.queryList(ctx,
		"SELECT "+resultColumns+" FROM results WHERE sample_id=? ORDER BY id", sampleID)
}

// Update replaces a result's data and confirmation flags through the
// generic CRUD endpoint.
func (r *ResultRepo) Update(ctx context.Context, res model.Result) error {
	out, err := r.DB.ExecContext(ctx,
		`UPDATE results SET result_data=?, confirmed_by_hod=?, confirmed_by_director=?, sent_to_dpf=?
		 WHERE id=?`,
		res.ResultData, res.ConfirmedByHOD, res.ConfirmedByDirector, res.SentToDPF, res.ID)
	if err != nil {
		return err
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a result.
func (r *ResultRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM results WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
