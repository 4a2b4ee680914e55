package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// Companies returns every company ordered by name.
func (s *Store) Companies(ctx context.Context, cred auth.Credential) ([]compliance.Company, error) {
	if err := s.verify(cred); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, requestError("list companies", err)
	}
	defer rows.Close()

	companies := make([]compliance.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, requestError("scan company", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, requestError("list companies", err)
	}
	return companies, nil
}

const companyColumns = `id::text, name, COALESCE(tax_id, ''), country, created_at`

// CreateCompany stores a company. Names are unique.
func (s *Store) CreateCompany(ctx context.Context, cred auth.Credential, in compliance.CompanyInput) (compliance.Company, error) {
	if err := s.verify(cred); err != nil {
		return compliance.Company{}, err
	}
	in = normalizeCompany(in)
	row := s.db.QueryRow(ctx,
		`INSERT INTO companies (name, tax_id, country) VALUES ($1, $2, $3) RETURNING `+companyColumns,
		in.Name, nullable(in.TaxID), in.Country,
	)
	c, err := scanCompany(row)
	if err != nil {
		return compliance.Company{}, companyError("create company", in.Name, err)
	}
	return c, nil
}

// UpdateCompany replaces the editable fields of company id.
func (s *Store) UpdateCompany(ctx context.Context, cred auth.Credential, id string, in compliance.CompanyInput) (compliance.Company, error) {
	if err := s.verify(cred); err != nil {
		return compliance.Company{}, err
	}
	in = normalizeCompany(in)
	row := s.db.QueryRow(ctx,
		`UPDATE companies SET name = $2, tax_id = $3, country = $4 WHERE id::text = $1 RETURNING `+companyColumns,
		id, in.Name, nullable(in.TaxID), in.Country,
	)
	c, err := scanCompany(row)
	if err != nil {
		return compliance.Company{}, companyError("update company", in.Name, err)
	}
	return c, nil
}

// DeleteCompany removes company id. Its requests go with it.
func (s *Store) DeleteCompany(ctx context.Context, cred auth.Credential, id string) error {
	if err := s.verify(cred); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM companies WHERE id::text = $1`, id)
	if err != nil {
		return requestError("delete company", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: delete company %s: %w", id, compliance.ErrNotFound)
	}
	return nil
}

func scanCompany(row pgx.Row) (compliance.Company, error) {
	var c compliance.Company
	err := row.Scan(&c.ID, &c.Name, &c.TaxID, &c.Country, &c.CreatedAt)
	return c, err
}

func normalizeCompany(in compliance.CompanyInput) compliance.CompanyInput {
	in.Name = strings.TrimSpace(in.Name)
	in.TaxID = strings.TrimSpace(in.TaxID)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Country == "" {
		in.Country = "CL"
	}
	return in
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// companyError turns a name clash into a readable detail.
func companyError(op, name string, err error) error {
	err = classify(op, err)
	if errors.Is(err, ErrDuplicate) {
		return &compliance.RequestError{
			Op:     "store: " + op,
			Status: 400,
			Detail: fmt.Sprintf("a company named %q already exists", name),
			Err:    ErrDuplicate,
		}
	}
	return err
}
