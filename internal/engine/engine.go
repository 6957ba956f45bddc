package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"riverwatch/internal/audit"
	"riverwatch/internal/config"
	"riverwatch/internal/domain"
	"riverwatch/internal/metrics"
	"riverwatch/internal/repo"
)

// Engine owns the report lifecycle. Every mutation runs in a single
// transaction together with the audit entries it produces.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Logs    audit.Writer
	Metrics *metrics.Metrics
	Config  *config.Config
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Logs:    audit.Writer{DB: db},
		Metrics: metrics.Nop(),
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) adminUser() string {
	if e.Config != nil && e.Config.Admin.User != "" {
		return e.Config.Admin.User
	}
	return "admin"
}

// ReportCreateOptions are parameters for submitting a report.
type ReportCreateOptions struct {
	Title       string
	Description string
	Latitude    *float64
	Longitude   *float64
	Address     string
	ReportType  string
	Severity    string
	UserName    string
	UserEmail   string
	UserPhone   string
	IsAnonymous *bool
	ImageURLs   []string
}

func (e Engine) CreateReport(ctx context.Context, opts ReportCreateOptions) (domain.Report, error) {
	if e.Config == nil {
		return domain.Report{}, errors.New("config not loaded")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Report{}, errors.New("title is required")
	}
	if strings.TrimSpace(opts.Description) == "" {
		return domain.Report{}, errors.New("description is required")
	}
	if !domain.ValidReportType(opts.ReportType) {
		return domain.Report{}, fmt.Errorf("invalid report_type %q", opts.ReportType)
	}
	if !domain.ValidSeverity(opts.Severity) {
		return domain.Report{}, fmt.Errorf("invalid severity %q", opts.Severity)
	}
	if (opts.Latitude == nil) != (opts.Longitude == nil) {
		return domain.Report{}, errors.New("latitude and longitude are required together")
	}
	if opts.Latitude != nil {
		if *opts.Latitude < -90 || *opts.Latitude > 90 {
			return domain.Report{}, fmt.Errorf("invalid latitude %v", *opts.Latitude)
		}
		if *opts.Longitude < -180 || *opts.Longitude > 180 {
			return domain.Report{}, fmt.Errorf("invalid longitude %v", *opts.Longitude)
		}
	}
	if len(opts.ImageURLs) > domain.MaxReportImages {
		return domain.Report{}, fmt.Errorf("at most %d images allowed", domain.MaxReportImages)
	}
	anonymous := true
	if opts.IsAnonymous != nil {
		anonymous = *opts.IsAnonymous
	}
	r := domain.Report{
		ID:                 uuid.New().String(),
		Title:              strings.TrimSpace(opts.Title),
		Description:        strings.TrimSpace(opts.Description),
		Latitude:           opts.Latitude,
		Longitude:          opts.Longitude,
		Address:            opts.Address,
		ReportType:         opts.ReportType,
		Severity:           opts.Severity,
		Status:             domain.StatusPending,
		ConfirmationsCount: 0,
		UserName:           optionalString(opts.UserName),
		UserEmail:          optionalString(opts.UserEmail),
		UserPhone:          optionalString(opts.UserPhone),
		IsAnonymous:        anonymous,
		ImageURLs:          opts.ImageURLs,
		CreatedAt:          e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertReport(ctx, tx, r); err != nil {
		return domain.Report{}, fmt.Errorf("insert report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}
	e.Metrics.ReportsCreated.Inc()
	return r, nil
}

// ConfirmReport records one endorsement of a report and bumps its
// counter in the same transaction. A user may confirm the same report
// more than once; every insert counts.
func (e Engine) ConfirmReport(ctx context.Context, reportID, userIdentifier string) (domain.Confirmation, error) {
	if reportID == "" {
		return domain.Confirmation{}, errors.New("report_id is required")
	}
	if strings.TrimSpace(userIdentifier) == "" {
		return domain.Confirmation{}, errors.New("user_identifier is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Confirmation{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetReportTx(ctx, tx, reportID); err != nil {
		return domain.Confirmation{}, err
	}
	c := domain.Confirmation{
		ID:             uuid.New().String(),
		ReportID:       reportID,
		UserIdentifier: userIdentifier,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertConfirmation(ctx, tx, c); err != nil {
		return domain.Confirmation{}, fmt.Errorf("insert confirmation: %w", err)
	}
	if err := e.Repo.IncrementConfirmations(ctx, tx, reportID); err != nil {
		return domain.Confirmation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Confirmation{}, err
	}
	e.Metrics.Confirmations.Inc()
	return c, nil
}

// ReportUpdateOptions encapsulates admin-mutable fields. Nil pointers
// leave the field untouched.
type ReportUpdateOptions struct {
	ID         string
	Status     *string
	AdminNotes *string
}

// UpdateReport applies an admin update and writes the matching audit
// entries. The row update and its admin_logs rows commit atomically; a
// status change and a note change on the same call produce one entry
// each.
func (e Engine) UpdateReport(ctx context.Context, opts ReportUpdateOptions) (domain.Report, error) {
	if opts.ID == "" {
		return domain.Report{}, errors.New("report_id is required")
	}
	if opts.Status == nil && opts.AdminNotes == nil {
		return domain.Report{}, errors.New("no updates given")
	}
	if opts.Status != nil && !domain.ValidStatus(*opts.Status) {
		return domain.Report{}, fmt.Errorf("invalid status %q", *opts.Status)
	}
	adminUser := e.adminUser()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()

	r, err := e.Repo.GetReportTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Report{}, err
	}
	u := repo.ReportUpdate{LastUpdatedBy: &adminUser}
	statusChanged := opts.Status != nil && *opts.Status != r.Status
	notesChanged := opts.AdminNotes != nil && (r.AdminNotes == nil || *r.AdminNotes != *opts.AdminNotes)
	if opts.Status != nil {
		u.Status = opts.Status
	}
	if opts.AdminNotes != nil {
		u.AdminNotes = opts.AdminNotes
	}
	if err := e.Repo.UpdateReport(ctx, tx, r.ID, u); err != nil {
		return domain.Report{}, err
	}
	if statusChanged {
		if _, err := e.Logs.Append(ctx, tx, r.ID, domain.ActionStatusUpdate, adminUser, audit.Details{
			"from": r.Status,
			"to":   *opts.Status,
		}); err != nil {
			return domain.Report{}, err
		}
		e.Metrics.AdminActions.WithLabelValues(domain.ActionStatusUpdate).Inc()
		r.Status = *opts.Status
	}
	if notesChanged {
		if _, err := e.Logs.Append(ctx, tx, r.ID, domain.ActionNoteAdded, adminUser, audit.Details{
			"note": *opts.AdminNotes,
		}); err != nil {
			return domain.Report{}, err
		}
		e.Metrics.AdminActions.WithLabelValues(domain.ActionNoteAdded).Inc()
	}
	if opts.AdminNotes != nil {
		r.AdminNotes = opts.AdminNotes
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}
	r.LastUpdatedBy = &adminUser
	return r, nil
}

// DeleteReport removes a report. Under the "retain" retention policy
// its confirmations and audit entries stay and a report_deleted entry
// is appended; under "cascade" everything referencing the report goes
// with it.
func (e Engine) DeleteReport(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("report_id is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteReport(ctx, tx, id); err != nil {
		return err
	}
	if e.Config != nil && e.Config.Retention.OnReportDelete == config.CascadeLogs {
		if err := e.Repo.DeleteConfirmationsForReport(ctx, tx, id); err != nil {
			return err
		}
		if err := e.Repo.DeleteAdminLogsForReport(ctx, tx, id); err != nil {
			return err
		}
	} else {
		if _, err := e.Logs.Append(ctx, tx, id, domain.ActionReportDeleted, e.adminUser(), audit.Details{
			"reason": "admin_delete",
		}); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Metrics.AdminActions.WithLabelValues(domain.ActionReportDeleted).Inc()
	return nil
}

func (e Engine) GetReport(ctx context.Context, id string) (domain.Report, error) {
	return e.Repo.GetReport(ctx, id)
}

// ListReports validates filter enums, clamps the limit to the
// configured page sizes and delegates to the repo.
func (e Engine) ListReports(ctx context.Context, f repo.ReportFilters) ([]domain.Report, error) {
	if f.Status != "" && !domain.ValidStatus(f.Status) {
		return nil, fmt.Errorf("invalid status %q", f.Status)
	}
	if f.ReportType != "" && !domain.ValidReportType(f.ReportType) {
		return nil, fmt.Errorf("invalid report_type %q", f.ReportType)
	}
	if f.Severity != "" && !domain.ValidSeverity(f.Severity) {
		return nil, fmt.Errorf("invalid severity %q", f.Severity)
	}
	f.Limit = e.clampLimit(f.Limit)
	return e.Repo.ListReports(ctx, f)
}

func (e Engine) clampLimit(limit int) int {
	def, max := 50, 200
	if e.Config != nil {
		def = e.Config.Pagination.DefaultLimit
		max = e.Config.Pagination.MaxLimit
	}
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// AppendLog writes a standalone audit entry. The referenced report
// must exist at append time; the entry survives its later deletion
// under the "retain" policy.
func (e Engine) AppendLog(ctx context.Context, reportID, action string, details audit.Details) (domain.AdminLog, error) {
	if reportID == "" {
		return domain.AdminLog{}, errors.New("report_id is required")
	}
	if strings.TrimSpace(action) == "" {
		return domain.AdminLog{}, errors.New("action is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AdminLog{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetReportTx(ctx, tx, reportID); err != nil {
		return domain.AdminLog{}, err
	}
	entry, err := e.Logs.Append(ctx, tx, reportID, action, e.adminUser(), details)
	if err != nil {
		return domain.AdminLog{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AdminLog{}, err
	}
	e.Metrics.AdminActions.WithLabelValues(action).Inc()
	return entry, nil
}

func (e Engine) ListLogs(ctx context.Context, f repo.AdminLogFilters) ([]domain.AdminLog, error) {
	f.Limit = e.clampLimit(f.Limit)
	return e.Repo.ListAdminLogs(ctx, f)
}

func (e Engine) Stats(ctx context.Context) (repo.Stats, error) {
	return e.Repo.ReportStats(ctx)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
