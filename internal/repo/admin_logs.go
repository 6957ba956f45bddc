package repo

import (
	"context"
	"database/sql"
	"strings"

	"riverwatch/internal/domain"
)

// AdminLogFilters narrows ListAdminLogs.
type AdminLogFilters struct {
	ReportID string
	Action   string
	Limit    int
}

func (r Repo) ListAdminLogs(ctx context.Context, f AdminLogFilters) ([]domain.AdminLog, error) {
	var clauses []string
	var args []any
	if f.ReportID != "" {
		clauses = append(clauses, "report_id=?")
		args = append(args, f.ReportID)
	}
	if f.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, f.Action)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,report_id,action,admin_user,details_json,created_at FROM admin_logs ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAdminLogs(rows)
}

// AdminLogsByReport loads log entries for a set of report ids in one query,
// keyed by report id. Used by the admin listing to join logs onto reports.
func (r Repo) AdminLogsByReport(ctx context.Context, reportIDs []string) (map[string][]domain.AdminLog, error) {
	res := map[string][]domain.AdminLog{}
	if len(reportIDs) == 0 {
		return res, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(reportIDs)), ",")
	args := make([]any, len(reportIDs))
	for i, id := range reportIDs {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,report_id,action,admin_user,details_json,created_at FROM admin_logs WHERE report_id IN (`+placeholders+`) ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs, err := collectAdminLogs(rows)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		res[l.ReportID] = append(res[l.ReportID], l)
	}
	return res, nil
}

func (r Repo) DeleteAdminLogsForReport(ctx context.Context, tx *sql.Tx, reportID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM admin_logs WHERE report_id=?`, reportID)
	return err
}

func collectAdminLogs(rows *sql.Rows) ([]domain.AdminLog, error) {
	var res []domain.AdminLog
	for rows.Next() {
		var l domain.AdminLog
		var details sql.NullString
		if err := rows.Scan(&l.ID, &l.ReportID, &l.Action, &l.AdminUser, &details, &l.CreatedAt); err != nil {
			return nil, err
		}
		if details.Valid {
			l.DetailsJSON = details.String
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
