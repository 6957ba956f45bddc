package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"riverwatch/internal/domain"
)

// Writer appends admin_log rows. Appends run inside the caller's
// transaction so a mutation and its audit entry commit or roll back
// together.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Details map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, reportID, action, adminUser string, details Details) (domain.AdminLog, error) {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if details == nil {
		details = Details{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return domain.AdminLog{}, fmt.Errorf("marshal log details: %w", err)
	}
	entry := domain.AdminLog{
		ID:          uuid.New().String(),
		ReportID:    reportID,
		Action:      action,
		AdminUser:   adminUser,
		DetailsJSON: string(data),
		CreatedAt:   now().UTC().Format(time.RFC3339),
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO admin_logs(id,report_id,action,admin_user,details_json,created_at) VALUES (?,?,?,?,?,?)`,
		entry.ID, entry.ReportID, entry.Action, entry.AdminUser, entry.DetailsJSON, entry.CreatedAt)
	return entry, err
}
