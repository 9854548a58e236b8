package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openlabtz/lims-backend/internal/model"
)

const customerColumns = `id, first_name, middle_name, last_name, national_id,
	is_organization, organization_name, organization_id,
	country, region, street, phone_country_code, phone_number, email`

// CustomerRepo provides data access to the customers table.  Customers
// are deduplicated by email first and phone number second: a submission
// for a known contact reuses the existing record.
type CustomerRepo struct{ DB *sql.DB }

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{DB: db} }

func nullStr(p *string) interface{} {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return strings.TrimSpace(*p)
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func scanCustomer(row interface{ Scan(...interface{}) error }) (model.Customer, error) {
	var (
		c                                  model.Customer
		first, middle, last, natID         sql.NullString
		orgName, orgID                     sql.NullString
		country, region, street            sql.NullString
		phoneCC, phone, email              sql.NullString
	)
	err := row.Scan(&c.ID, &first, &middle, &last, &natID,
		&c.IsOrganization, &orgName, &orgID,
		&country, &region, &street, &phoneCC, &phone, &email)
	if err != nil {
		return model.Customer{}, err
	}
	c.FirstName = strPtr(first)
	c.MiddleName = strPtr(middle)
	c.LastName = strPtr(last)
	c.NationalID = strPtr(natID)
	c.OrganizationName = strPtr(orgName)
	c.OrganizationID = strPtr(orgID)
	c.Country = strPtr(country)
	c.Region = strPtr(region)
	c.Street = strPtr(street)
	c.PhoneCountryCode = strPtr(phoneCC)
	c.PhoneNumber = strPtr(phone)
	c.Email = strPtr(email)
	return c, nil
}

func customerArgs(c model.Customer) []interface{} {
	var email interface{}
	if c.Email != nil && strings.TrimSpace(*c.Email) != "" {
		email = strings.ToLower(strings.TrimSpace(*c.Email))
	}
	return []interface{}{
		nullStr(c.FirstName), nullStr(c.MiddleName), nullStr(c.LastName), nullStr(c.NationalID),
		c.IsOrganization, nullStr(c.OrganizationName), nullStr(c.OrganizationID),
		nullStr(c.Country), nullStr(c.Region), nullStr(c.Street),
		nullStr(c.PhoneCountryCode), nullStr(c.PhoneNumber), email,
	}
}

const customerInsert = `INSERT INTO customers
	(first_name, middle_name, last_name, national_id,
	 is_organization, organization_name, organization_id,
	 country, region, street, phone_country_code, phone_number, email)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`

// Create inserts a customer and returns its ID.
func (r *CustomerRepo) Create(ctx context.Context, c model.Customer) (uint64, error) {
	res, err := r.DB.ExecContext(ctx, customerInsert, customerArgs(c)...)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetOrCreateTx finds a customer by email (preferred) or phone number
// inside the submission transaction, creating one when no match exists.
func (r *CustomerRepo) GetOrCreateTx(ctx context.Context, tx *sql.Tx, c model.Customer) (uint64, error) {
	if c.Email != nil && strings.TrimSpace(*c.Email) != "" {
		var id uint64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM customers WHERE email=? LIMIT 1",
			strings.ToLower(strings.TrimSpace(*c.Email))).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
	}
	if c.PhoneNumber != nil && strings.TrimSpace(*c.PhoneNumber) != "" {
		var id uint64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM customers WHERE phone_number=? LIMIT 1",
			strings.TrimSpace(*c.PhoneNumber)).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, customerInsert, customerArgs(c)...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetByID fetches a customer by id.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (model.Customer, error) {
	return scanCustomer(r.DB.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id=? LIMIT 1", id))
}

// List returns all customers.
func (r *CustomerRepo) List(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+customerColumns+" FROM customers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update replaces all mutable customer fields.
func (r *CustomerRepo) Update(ctx context.Context, c model.Customer) error {
	args := append(customerArgs(c), c.ID)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE customers SET first_name=?, middle_name=?, last_name=?, national_id=?,
		 is_organization=?, organization_name=?, organization_id=?,
		 country=?, region=?, street=?, phone_country_code=?, phone_number=?, email=?
		 WHERE id=?`, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a customer and, through cascades, their samples.
func (r *CustomerRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM customers WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of customers.
func (r *CustomerRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&n)
	return n, err
}
