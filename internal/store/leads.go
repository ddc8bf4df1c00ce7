package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/johnwards/leadtrack/internal/domain"
)

// LeadStore defines the interface for lead persistence.
type LeadStore interface {
	Create(ctx context.Context, input domain.LeadInput) (*domain.Lead, error)
	Get(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context, opts ListOpts) (*LeadPage, error)
	ListAll(ctx context.Context, opts ListOpts) ([]domain.Lead, error)
	Update(ctx context.Context, id string, body domain.UpdateBody) (*domain.Lead, error)
	Delete(ctx context.Context, id string) (*domain.Lead, error)
	Count(ctx context.Context) (int, error)
}

// ErrNotFound is returned when a requested lead does not exist.
var ErrNotFound = fmt.Errorf("lead not found")

// ErrDuplicateEmail is returned when a create or update would collide with
// another lead's email address. The comparison is case-insensitive.
var ErrDuplicateEmail = fmt.Errorf("duplicate email")

// ListOpts controls pagination, sorting and search for lead listings.
type ListOpts struct {
	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
	Search   string
}

// LeadPage is one page of leads plus the pagination envelope fields.
type LeadPage struct {
	Items      []domain.Lead
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// sortColumns whitelists the sortable fields. Anything else falls back to
// creation order.
var sortColumns = map[string]string{
	"name":           "name",
	"email":          "email",
	"company":        "company",
	"current_stage":  "current_stage",
	"last_contacted": "last_contacted",
	"created_at":     "created_at",
	"updated_at":     "updated_at",
}

// SQLiteLeadStore implements LeadStore backed by SQLite.
type SQLiteLeadStore struct {
	db *sql.DB
}

// NewSQLiteLeadStore creates a new SQLiteLeadStore.
func NewSQLiteLeadStore(db *sql.DB) *SQLiteLeadStore {
	return &SQLiteLeadStore{db: db}
}

// Create validates the input and inserts a new lead with its creation ledger
// entry.
func (s *SQLiteLeadStore) Create(ctx context.Context, input domain.LeadInput) (*domain.Lead, error) {
	ts := time.Now().UTC().Truncate(time.Millisecond)

	lead, err := domain.NewLead(input, ts)
	if err != nil {
		return nil, err
	}
	lead.CreatedAt = ts
	lead.UpdatedAt = ts

	historyJSON, err := json.Marshal(lead.StageHistory)
	if err != nil {
		return nil, fmt.Errorf("encode stage history: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (name, email, company, engaged, current_stage, stage_updated_at, stage_history, last_contacted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.Name, lead.Email, lead.Company, lead.Engaged, string(lead.CurrentStage),
		formatTime(lead.StageUpdatedAt), string(historyJSON), formatNullableTime(lead.LastContacted),
		formatTime(lead.CreatedAt), formatTime(lead.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %q: %w", lead.Email, ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("insert lead: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	lead.ID = strconv.FormatInt(id, 10)

	return &lead, nil
}

// Get retrieves a single lead by ID.
func (s *SQLiteLeadStore) Get(ctx context.Context, id string) (*domain.Lead, error) {
	row := s.db.QueryRowContext(ctx, selectLead+` WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return lead, nil
}

// List returns one page of leads matching opts, with the total count taken
// over the same filter.
func (s *SQLiteLeadStore) List(ctx context.Context, opts ListOpts) (*LeadPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 10
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	where, args := searchClause(opts.Search)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count leads: %w", err)
	}

	query := selectLead + where + orderClause(opts) + ` LIMIT ? OFFSET ?`
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	items, err := s.queryLeads(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + opts.PageSize - 1) / opts.PageSize
	}

	return &LeadPage{
		Items:      items,
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ListAll returns every lead matching opts without pagination. Used by the
// CSV export, which always covers the full filtered set.
func (s *SQLiteLeadStore) ListAll(ctx context.Context, opts ListOpts) ([]domain.Lead, error) {
	where, args := searchClause(opts.Search)
	return s.queryLeads(ctx, selectLead+where+orderClause(opts), args...)
}

// Update applies an update body to a lead. Field edits, stage changes and
// history revisions all arrive through here; the body's shape decides which
// transition applies. The returned lead reflects the stored state.
func (s *SQLiteLeadStore) Update(ctx context.Context, id string, body domain.UpdateBody) (*domain.Lead, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC().Truncate(time.Millisecond)

	lead, err := domain.ApplyFieldPatch(*current, domain.FieldPatch{
		Name:          body.Name,
		Email:         body.Email,
		Company:       body.Company,
		Engaged:       body.Engaged,
		LastContacted: body.LastContacted,
	}, ts)
	if err != nil {
		return nil, err
	}

	switch {
	case body.CurrentStage != nil && *body.CurrentStage != lead.CurrentStage && len(body.StageHistory) > 0:
		// Client-computed stage change: adopt the appended ledger as-is.
		lead, err = domain.AdoptStageChange(lead, *body.CurrentStage, body.StageHistory, ts)
	case body.CurrentStage != nil && *body.CurrentStage != lead.CurrentStage:
		// Bare stage value: append the ledger entry server-side.
		lead, err = domain.ChangeStage(lead, *body.CurrentStage, ts)
	case len(body.StageHistory) > 0:
		// History revision with no stage movement.
		lead, err = domain.ReplaceHistory(lead, body.StageHistory, ts)
	}
	if err != nil {
		return nil, err
	}

	historyJSON, err := json.Marshal(lead.StageHistory)
	if err != nil {
		return nil, fmt.Errorf("encode stage history: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET name = ?, email = ?, company = ?, engaged = ?, current_stage = ?,
		 stage_updated_at = ?, stage_history = ?, last_contacted = ?, updated_at = ?
		 WHERE id = ?`,
		lead.Name, lead.Email, lead.Company, lead.Engaged, string(lead.CurrentStage),
		formatTime(lead.StageUpdatedAt), string(historyJSON), formatNullableTime(lead.LastContacted),
		formatTime(lead.UpdatedAt), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %q: %w", lead.Email, ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("update lead %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}

	return &lead, nil
}

// Delete removes a lead and returns the deleted record so callers can
// broadcast it.
func (s *SQLiteLeadStore) Delete(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete lead %s: %w", id, err)
	}

	return lead, nil
}

// Count returns the total number of leads.
func (s *SQLiteLeadStore) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return total, nil
}

const selectLead = `SELECT id, name, email, company, engaged, current_stage, stage_updated_at, stage_history, last_contacted, created_at, updated_at FROM leads`

func searchClause(search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" {
		return "", nil
	}
	like := "%" + search + "%"
	return ` WHERE (name LIKE ? OR email LIKE ? OR company LIKE ?)`, []any{like, like, like}
}

func orderClause(opts ListOpts) string {
	col, ok := sortColumns[opts.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if opts.SortDesc {
		dir = "DESC"
	}
	// Secondary sort on id keeps pages stable when the primary key ties.
	return fmt.Sprintf(` ORDER BY %s %s, id %s`, col, dir, dir)
}

func (s *SQLiteLeadStore) queryLeads(ctx context.Context, query string, args ...any) ([]domain.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	leads := []domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan leads: %w", err)
	}
	return leads, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*domain.Lead, error) {
	var (
		id             int64
		lead           domain.Lead
		stage          string
		stageUpdatedAt string
		historyJSON    string
		lastContacted  sql.NullString
		createdAt      string
		updatedAt      string
	)
	err := row.Scan(&id, &lead.Name, &lead.Email, &lead.Company, &lead.Engaged,
		&stage, &stageUpdatedAt, &historyJSON, &lastContacted, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}

	lead.ID = strconv.FormatInt(id, 10)
	lead.CurrentStage = domain.Stage(stage)

	if lead.StageUpdatedAt, err = parseTime(stageUpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(historyJSON), &lead.StageHistory); err != nil {
		return nil, fmt.Errorf("decode stage history: %w", err)
	}
	if lead.LastContacted, err = parseNullableTime(lastContacted); err != nil {
		return nil, err
	}
	if lead.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if lead.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &lead, nil
}

// isUniqueViolation reports whether err is the unique email index firing.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
