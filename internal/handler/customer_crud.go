package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/repository"
)

// CustomerCRUDHandler serves customer record management for staff.
type CustomerCRUDHandler struct {
	Customers *repository.CustomerRepo
}

func NewCustomerCRUDHandler(cu *repository.CustomerRepo) *CustomerCRUDHandler {
	return &CustomerCRUDHandler{Customers: cu}
}

type customerPart struct {
	ID         uint64  `json:"id"`
	FirstName  *string `json:"first_name,omitempty"`
	MiddleName *string `json:"middle_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	NationalID *string `json:"national_id,omitempty"`

	IsOrganization   bool    `json:"is_organization"`
	OrganizationName *string `json:"organization_name,omitempty"`
	OrganizationID   *string `json:"organization_id,omitempty"`

	Country *string `json:"country,omitempty"`
	Region  *string `json:"region,omitempty"`
	Street  *string `json:"street,omitempty"`

	PhoneCountryCode *string `json:"phone_country_code,omitempty"`
	PhoneNumber      *string `json:"phone_number,omitempty"`
	Email            *string `json:"email,omitempty"`

	DisplayName string `json:"display_name"`
}

func toCustomerPart(c model.Customer) customerPart {
	return customerPart{
		ID:               c.ID,
		FirstName:        c.FirstName,
		MiddleName:       c.MiddleName,
		LastName:         c.LastName,
		NationalID:       c.NationalID,
		IsOrganization:   c.IsOrganization,
		OrganizationName: c.OrganizationName,
		OrganizationID:   c.OrganizationID,
		Country:          c.Country,
		Region:           c.Region,
		Street:           c.Street,
		PhoneCountryCode: c.PhoneCountryCode,
		PhoneNumber:      c.PhoneNumber,
		Email:            c.Email,
		DisplayName:      c.DisplayName(),
	}
}

// List handles GET /v1/customers.
func (h *CustomerCRUDHandler) List(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	customers, err := h.Customers.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	out := make([]customerPart, 0, len(customers))
	for _, cu := range customers {
		out = append(out, toCustomerPart(cu))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "customers": out})
}

// Create handles POST /v1/customers.
func (h *CustomerCRUDHandler) Create(c echo.Context) error {
	var req customerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	cust := req.toModel()
	if cust.Email == nil && cust.PhoneNumber == nil {
		return fail(c, http.StatusBadRequest, "At least one of email or phone_number is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	id, err := h.Customers.Create(ctx, cust)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "A customer with that email already exists.")
		}
		return internalError(c, err)
	}
	cust, err = h.Customers.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Customer created.", "customer": toCustomerPart(cust)})
}

// Get handles GET /v1/customers/:id.
func (h *CustomerCRUDHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid customer id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	cust, err := h.Customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Customer not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "customer": toCustomerPart(cust)})
}

// Update handles PUT /v1/customers/:id.
func (h *CustomerCRUDHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid customer id.")
	}
	var req customerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	cust := req.toModel()
	cust.ID = id

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Customers.Update(ctx, cust); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Customer not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "A customer with that email already exists.")
		}
		return internalError(c, err)
	}
	cust, err := h.Customers.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Customer updated.", "customer": toCustomerPart(cust)})
}

// Delete handles DELETE /v1/customers/:id.
func (h *CustomerCRUDHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid customer id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Customers.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "Customer not found.")
		}
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Customer still has samples on record.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Customer deleted."})
}
