package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

const defaultPageSize = 10

// listFilter is the parsed form of a request listing query.
type listFilter struct {
	Search   string
	Status   compliance.Status
	RiskMin  *int
	RiskMax  *int
	Page     int
	PageSize int
}

// parseListFilter reads the listing query keys. Unknown keys are ignored.
func parseListFilter(q url.Values) (listFilter, error) {
	f := listFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Status:   compliance.Status(strings.TrimSpace(q.Get("status"))),
		Page:     1,
		PageSize: defaultPageSize,
	}
	if f.Status != "" && !f.Status.Valid() {
		return listFilter{}, fmt.Errorf("store: unknown status %q", f.Status)
	}
	var err error
	if f.RiskMin, err = optionalInt(q, "risk_min"); err != nil {
		return listFilter{}, err
	}
	if f.RiskMax, err = optionalInt(q, "risk_max"); err != nil {
		return listFilter{}, err
	}
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil || f.Page < 1 {
			return listFilter{}, fmt.Errorf("store: invalid page %q", v)
		}
	}
	if v := q.Get("page_size"); v != "" {
		if f.PageSize, err = strconv.Atoi(v); err != nil || f.PageSize < 1 || f.PageSize > 100 {
			return listFilter{}, fmt.Errorf("store: invalid page_size %q", v)
		}
	}
	return f, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("store: invalid %s %q", key, v)
	}
	return &n, nil
}

// where renders the filter as a WHERE clause with positional args.
func (f listFilter) where() (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.name ILIKE $%d", argPos))
		args = append(args, "%"+escapeLike(f.Search)+"%")
		argPos++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", argPos))
		args = append(args, string(f.Status))
		argPos++
	}
	if f.RiskMin != nil {
		conditions = append(conditions, fmt.Sprintf("r.risk_score >= $%d", argPos))
		args = append(args, *f.RiskMin)
		argPos++
	}
	if f.RiskMax != nil {
		conditions = append(conditions, fmt.Sprintf("r.risk_score <= $%d", argPos))
		args = append(args, *f.RiskMax)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

const requestColumns = `r.id::text, r.status, r.risk_score, r.risk_inputs, r.created_at,
		       c.id::text, c.name, COALESCE(c.tax_id, ''), c.country, c.created_at`

// buildListQueries returns the count and page statements for f.
func buildListQueries(f listFilter) (countSQL, pageSQL string, args []interface{}) {
	whereClause, args := f.where()
	countSQL = fmt.Sprintf("SELECT COUNT(*) FROM requests r JOIN companies c ON c.id = r.company_id %s", whereClause)
	limitPos := len(args) + 1
	pageSQL = fmt.Sprintf(`
		SELECT %s
		FROM requests r
		JOIN companies c ON c.id = r.company_id
		%s
		ORDER BY r.created_at DESC, r.id
		LIMIT $%d OFFSET $%d
	`, requestColumns, whereClause, limitPos, limitPos+1)
	return countSQL, pageSQL, args
}

// FetchList returns one filtered page, newest first.
func (s *Store) FetchList(ctx context.Context, cred auth.Credential, q url.Values) (compliance.ResultPage, error) {
	if err := s.verify(cred); err != nil {
		return compliance.ResultPage{}, err
	}
	f, err := parseListFilter(q)
	if err != nil {
		return compliance.ResultPage{}, &compliance.RequestError{Op: "store: list", Status: 422, Detail: err.Error()}
	}
	countSQL, pageSQL, args := buildListQueries(f)

	var total int
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return compliance.ResultPage{}, requestError("count requests", err)
	}
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	items, err := s.queryRequests(ctx, pageSQL, args...)
	if err != nil {
		return compliance.ResultPage{}, err
	}
	return compliance.ResultPage{Items: items, Total: total}, nil
}

// AllRequests returns every request, newest first.
func (s *Store) AllRequests(ctx context.Context, cred auth.Credential) ([]compliance.RequestRecord, error) {
	if err := s.verify(cred); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM requests r JOIN companies c ON c.id = r.company_id ORDER BY r.created_at DESC, r.id`, requestColumns)
	return s.queryRequests(ctx, query)
}

// UpdateStatus moves a request to status and returns the updated record.
func (s *Store) UpdateStatus(ctx context.Context, cred auth.Credential, id string, status compliance.Status) (compliance.RequestRecord, error) {
	if err := s.verify(cred); err != nil {
		return compliance.RequestRecord{}, err
	}
	if !status.Valid() {
		return compliance.RequestRecord{}, &compliance.RequestError{Op: "store: update status", Status: 422, Detail: fmt.Sprintf("unknown status %q", status)}
	}
	query := fmt.Sprintf(`
		WITH r AS (
			UPDATE requests SET status = $1 WHERE id::text = $2
			RETURNING id, company_id, status, risk_score, risk_inputs, created_at
		)
		SELECT %s FROM r JOIN companies c ON c.id = r.company_id
	`, requestColumns)
	items, err := s.queryRequests(ctx, query, string(status), id)
	if err != nil {
		return compliance.RequestRecord{}, err
	}
	if len(items) == 0 {
		return compliance.RequestRecord{}, fmt.Errorf("store: update status %s: %w", id, compliance.ErrNotFound)
	}
	return items[0], nil
}

// CreateRequest files a new pending request, scoring its risk inputs. An
// unknown company is reported as not found.
func (s *Store) CreateRequest(ctx context.Context, cred auth.Credential, in compliance.RequestInput) (compliance.RequestRecord, error) {
	if err := s.verify(cred); err != nil {
		return compliance.RequestRecord{}, err
	}
	if in.RiskInputs.LatePayments < 0 {
		return compliance.RequestRecord{}, &compliance.RequestError{Op: "store: create request", Status: 422, Detail: "late payments must not be negative"}
	}
	raw, err := json.Marshal(in.RiskInputs)
	if err != nil {
		return compliance.RequestRecord{}, err
	}
	query := fmt.Sprintf(`
		WITH r AS (
			INSERT INTO requests (company_id, risk_inputs, risk_score)
			SELECT id, $2::jsonb, $3::integer FROM companies WHERE id::text = $1
			RETURNING id, company_id, status, risk_score, risk_inputs, created_at
		)
		SELECT %s FROM r JOIN companies c ON c.id = r.company_id
	`, requestColumns)
	items, err := s.queryRequests(ctx, query, in.CompanyID, raw, compliance.RiskScore(in.RiskInputs))
	if err != nil {
		return compliance.RequestRecord{}, err
	}
	if len(items) == 0 {
		return compliance.RequestRecord{}, &compliance.RequestError{
			Op:     "store: create request",
			Status: 404,
			Detail: "the selected company does not exist",
			Err:    compliance.ErrNotFound,
		}
	}
	return items[0], nil
}

// DeleteRequest removes request id.
func (s *Store) DeleteRequest(ctx context.Context, cred auth.Credential, id string) error {
	if err := s.verify(cred); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM requests WHERE id::text = $1`, id)
	if err != nil {
		return requestError("delete request", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: delete request %s: %w", id, compliance.ErrNotFound)
	}
	return nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...interface{}) ([]compliance.RequestRecord, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, requestError("query requests", err)
	}
	defer rows.Close()

	records := make([]compliance.RequestRecord, 0)
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			return nil, requestError("scan request", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, requestError("query requests", err)
	}
	return records, nil
}

func scanRequest(row pgx.Row) (compliance.RequestRecord, error) {
	var (
		rec       compliance.RequestRecord
		status    string
		inputs    []byte
		createdAt time.Time
	)
	err := row.Scan(
		&rec.ID, &status, &rec.RiskScore, &inputs, &createdAt,
		&rec.Company.ID, &rec.Company.Name, &rec.Company.TaxID, &rec.Company.Country, &rec.Company.CreatedAt,
	)
	if err != nil {
		return compliance.RequestRecord{}, err
	}
	rec.Status = compliance.Status(status)
	rec.CreatedAt = createdAt
	if len(inputs) > 0 {
		if err := json.Unmarshal(inputs, &rec.RiskInputs); err != nil {
			return compliance.RequestRecord{}, err
		}
	}
	return rec, nil
}
