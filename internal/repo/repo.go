package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"riverwatch/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const reportColumns = `id,title,description,latitude,longitude,address,report_type,severity,status,confirmations_count,user_name,user_email,user_phone,is_anonymous,image_urls_json,admin_notes,last_updated_by,created_at`

func scanReport(scan func(dest ...any) error) (domain.Report, error) {
	var r domain.Report
	var lat, lng sql.NullFloat64
	var address, userName, userEmail, userPhone, images, notes, updatedBy sql.NullString
	var anonymous int
	err := scan(&r.ID, &r.Title, &r.Description, &lat, &lng, &address, &r.ReportType, &r.Severity, &r.Status,
		&r.ConfirmationsCount, &userName, &userEmail, &userPhone, &anonymous, &images, &notes, &updatedBy, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lng.Valid {
		r.Longitude = &lng.Float64
	}
	if address.Valid {
		r.Address = address.String
	}
	if userName.Valid {
		r.UserName = &userName.String
	}
	if userEmail.Valid {
		r.UserEmail = &userEmail.String
	}
	if userPhone.Valid {
		r.UserPhone = &userPhone.String
	}
	r.IsAnonymous = anonymous != 0
	if images.Valid && images.String != "" {
		_ = json.Unmarshal([]byte(images.String), &r.ImageURLs)
	}
	if notes.Valid {
		r.AdminNotes = &notes.String
	}
	if updatedBy.Valid {
		r.LastUpdatedBy = &updatedBy.String
	}
	return r, nil
}

func (r Repo) InsertReport(ctx context.Context, tx *sql.Tx, rep domain.Report) error {
	images, err := marshalImages(rep.ImageURLs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO reports(`+reportColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.Title, rep.Description, nullableFloatPtr(rep.Latitude), nullableFloatPtr(rep.Longitude),
		nullable(rep.Address), rep.ReportType, rep.Severity, rep.Status, rep.ConfirmationsCount,
		nullableStringPtr(rep.UserName), nullableStringPtr(rep.UserEmail), nullableStringPtr(rep.UserPhone),
		boolToInt(rep.IsAnonymous), images, nullableStringPtr(rep.AdminNotes), nullableStringPtr(rep.LastUpdatedBy), rep.CreatedAt)
	return err
}

func (r Repo) GetReport(ctx context.Context, id string) (domain.Report, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id)
	return scanReport(row.Scan)
}

func (r Repo) GetReportTx(ctx context.Context, tx *sql.Tx, id string) (domain.Report, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id)
	return scanReport(row.Scan)
}

// ReportUpdate is a partial update of admin-mutable report fields. Nil
// pointers leave the column untouched.
type ReportUpdate struct {
	Status        *string
	AdminNotes    *string
	LastUpdatedBy *string
}

func (r Repo) UpdateReport(ctx context.Context, tx *sql.Tx, id string, u ReportUpdate) error {
	var (
		fields []string
		args   []any
	)
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if u.AdminNotes != nil {
		fields = append(fields, "admin_notes=?")
		args = append(args, nullable(*u.AdminNotes))
	}
	if u.LastUpdatedBy != nil {
		fields = append(fields, "last_updated_by=?")
		args = append(args, *u.LastUpdatedBy)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE reports SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteReport(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementConfirmations bumps the counter server-side so concurrent
// confirmations never lose updates.
func (r Repo) IncrementConfirmations(ctx context.Context, tx *sql.Tx, reportID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE reports SET confirmations_count = confirmations_count + 1 WHERE id=?`, reportID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReportFilters narrows ListReports. Cursor fields page through results
// ordered by created_at DESC, id DESC.
type ReportFilters struct {
	Status          string
	ReportType      string
	Severity        string
	CreatedAfter    string
	CreatedBefore   string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListReports(ctx context.Context, f ReportFilters) ([]domain.Report, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ReportType != "" {
		clauses = append(clauses, "report_type=?")
		args = append(args, f.ReportType)
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, f.Severity)
	}
	if f.CreatedAfter != "" {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.CreatedAfter)
	}
	if f.CreatedBefore != "" {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.CreatedBefore)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + reportColumns + ` FROM reports ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Report
	for rows.Next() {
		rep, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}

func marshalImages(urls []string) (any, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
