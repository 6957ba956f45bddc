package repo

import "context"

// Stats summarizes the report table for the dashboard.
type Stats struct {
	TotalReports       int            `json:"total_reports"`
	TotalConfirmations int            `json:"total_confirmations"`
	ByStatus           map[string]int `json:"by_status"`
	BySeverity         map[string]int `json:"by_severity"`
	ByType             map[string]int `json:"by_type"`
}

func (r Repo) ReportStats(ctx context.Context) (Stats, error) {
	s := Stats{
		ByStatus:   map[string]int{},
		BySeverity: map[string]int{},
		ByType:     map[string]int{},
	}
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*), COALESCE(sum(confirmations_count),0) FROM reports`).
		Scan(&s.TotalReports, &s.TotalConfirmations); err != nil {
		return s, err
	}
	for col, dest := range map[string]map[string]int{
		"status":      s.ByStatus,
		"severity":    s.BySeverity,
		"report_type": s.ByType,
	} {
		rows, err := r.DB.QueryContext(ctx, `SELECT `+col+`, count(*) FROM reports GROUP BY `+col)
		if err != nil {
			return s, err
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return s, err
			}
			dest[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return s, err
		}
		rows.Close()
	}
	return s, nil
}
