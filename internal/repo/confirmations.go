package repo

import (
	"context"
	"database/sql"

	"riverwatch/internal/domain"
)

func (r Repo) InsertConfirmation(ctx context.Context, tx *sql.Tx, c domain.Confirmation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO confirmations(id,report_id,user_identifier,created_at) VALUES (?,?,?,?)`,
		c.ID, c.ReportID, c.UserIdentifier, c.CreatedAt)
	return err
}

func (r Repo) ListConfirmations(ctx context.Context, reportID string) ([]domain.Confirmation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,report_id,user_identifier,created_at FROM confirmations WHERE report_id=? ORDER BY created_at DESC, id DESC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Confirmation
	for rows.Next() {
		var c domain.Confirmation
		if err := rows.Scan(&c.ID, &c.ReportID, &c.UserIdentifier, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) DeleteConfirmationsForReport(ctx context.Context, tx *sql.Tx, reportID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM confirmations WHERE report_id=?`, reportID)
	return err
}
