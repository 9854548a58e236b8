package repository

import (
	"context"
	"database/sql"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

const paymentColumns = "id, sample_id, amount_due_cents, status, verified_by, verification_date"

// PaymentRepo provides data access to the payments table.
type PaymentRepo struct{ DB *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{DB: db} }

func scanPayment(row interface{ Scan(...interface{}) error }) (model.Payment, error) {
	var (
		p        model.Payment
		status   string
		verifier sql.NullInt64
		when     sql.NullTime
	)
	err := row.Scan(&p.ID, &p.SampleID, &p.AmountDueCents, &status, &verifier, &when)
	if err != nil {
		return model.Payment{}, err
	}
	p.Status = workflow.PaymentStatus(status)
	if verifier.Valid {
		v := uint64(verifier.Int64)
		p.VerifiedBy = &v
	}
	if when.Valid {
		t := when.Time
		p.VerificationDate = &t
	}
	return p, nil
}

// CreateTx inserts the pending payment for a sample within the
// submission transaction.  The unique key on sample_id keeps the
// relationship one-to-one.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO payments (sample_id, amount_due_cents, status) VALUES (?,?,?)",
		p.SampleID, p.AmountDueCents, string(workflow.PaymentPending))
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Status = workflow.PaymentPending
	return nil
}

// Create inserts a payment through the generic CRUD endpoint.  A second
// payment for the same sample maps to ErrConflict, a missing sample to
// ErrBadReference.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO payments (sample_id, amount_due_cents, status) VALUES (?,?,?)",
		p.SampleID, p.AmountDueCents, string(p.Status))
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		if isFKViolation(err) {
			return ErrBadReference
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID fetches a payment by id.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	return scanPayment(r.DB.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id=? LIMIT 1", id))
}

// GetBySample fetches a sample's payment.
func (r *PaymentRepo) GetBySample(ctx context.Context, sampleID uint64) (model.Payment, error) {
	return scanPayment(r.DB.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE sample_id=? LIMIT 1", sampleID))
}

// GetByControlNumber fetches the payment of the sample carrying the
// given control number.
func (r *PaymentRepo) GetByControlNumber(ctx context.Context, cn string) (model.Payment, error) {
	return scanPayment(r.DB.QueryRowContext(ctx,
		`SELECT p.id, p.sample_id, p.amount_due_cents, p.status, p.verified_by, p.verification_date
		 FROM payments p JOIN samples s ON s.id = p.sample_id
		 WHERE s.control_number=? LIMIT 1`, cn))
}

// Verify marks a pending payment as verified by the given registrar.
// A payment already verified or canceled yields ErrConflict.
func (r *PaymentRepo) Verify(ctx context.Context, paymentID, registrarID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE payments SET status=?, verified_by=?, verification_date=NOW()
		 WHERE id=? AND status=?`,
		string(workflow.PaymentVerified), registrarID,
		paymentID, string(workflow.PaymentPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *PaymentRepo) queryList(ctx context.Context, query string, args ...interface{}) ([]model.Payment, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns all payments.
func (r *PaymentRepo) List(ctx context.Context) ([]model.Payment, error) {
	return r.queryList(ctx, "SELECT "+paymentColumns+" FROM payments ORDER BY id")
}

// ListPendingByRegistrar returns the pending payments of the samples the
// registrar has claimed, for the registrar dashboard.
func (r *PaymentRepo) ListPendingByRegistrar(ctx context.Context, registrarID uint64) ([]model.Payment, error) {
	return r.queryList(ctx,
		`SELECT p.id, p.sample_id, p.amount_due_cents, p.status, p.verified_by, p.verification_date
		 FROM payments p JOIN samples s ON s.id = p.sample_id
		 WHERE p.status=? AND s.registrar_id=? ORDER BY p.id`,
		string(workflow.PaymentPending), registrarID)
}

// Update replaces a payment's amount and status through the generic CRUD
// endpoint.
func (r *PaymentRepo) Update(ctx context.Context, p model.Payment) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE payments SET amount_due_cents=?, status=? WHERE id=?",
		p.AmountDueCents, string(p.Status), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a payment.
func (r *PaymentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM payments WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of payments in the given status.
func (r *PaymentRepo) CountByStatus(ctx context.Context, status workflow.PaymentStatus) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE status=?", string(status)).Scan(&n)
	return n, err
}

// Count returns the total number of payments.
func (r *PaymentRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments").Scan(&n)
	return n, err
}
