package model

// Customer is the person or organization that submits samples.  A
// customer is identified by email or phone and is distinct from User: a
// customer record may exist with no linked login account.  The structured
// schema (split name, organization support, address and phone parts) is
// the canonical one.
type Customer struct {
	ID         uint64  // customers.id
	FirstName  *string // customers.first_name (nullable)
	MiddleName *string // customers.middle_name (nullable)
	LastName   *string // customers.last_name (nullable)
	NationalID *string // customers.national_id (nullable)

	IsOrganization   bool    // customers.is_organization
	OrganizationName *string // customers.organization_name (nullable)
	OrganizationID   *string // customers.organization_id (nullable)

	Country *string // customers.country (nullable)
	Region  *string // customers.region (nullable)
	Street  *string // customers.street (nullable)

	PhoneCountryCode *string // customers.phone_country_code (nullable)
	PhoneNumber      *string // customers.phone_number (nullable)

	Email *string // customers.email (nullable, unique when set)
}

// DisplayName returns the customer's organization name or full personal
// name, whichever applies.
func (c Customer) DisplayName() string {
	if c.IsOrganization {
		if c.OrganizationName != nil {
			return *c.OrganizationName
		}
		return ""
	}
	name := ""
	for _, part := range []*string{c.FirstName, c.MiddleName, c.LastName} {
		if part == nil || *part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += *part
	}
	return name
}
