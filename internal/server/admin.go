package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"riverwatch/internal/audit"
	"riverwatch/internal/domain"
	"riverwatch/internal/engine"
	"riverwatch/internal/repo"
)

func registerAdminReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-reports",
		Method:      http.MethodGet,
		Path:        "/admin/reports",
		Summary:     "List reports with audit trail",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		ReportType string `query:"type"`
		Severity   string `query:"severity"`
		StartDate  string `query:"start_date"`
		EndDate    string `query:"end_date"`
		Limit      int    `query:"limit"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedAdminReports `json:"body"`
	}, error) {
		if input.Status != "" && !domain.ValidStatus(input.Status) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid status", map[string]any{"status": input.Status})
		}
		if input.ReportType != "" && !domain.ValidReportType(input.ReportType) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid type", map[string]any{"type": input.ReportType})
		}
		if input.Severity != "" && !domain.ValidSeverity(input.Severity) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid severity", map[string]any{"severity": input.Severity})
		}
		def, max := pageLimits(e)
		limit := normalizeLimit(input.Limit, def, max)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		reports, err := e.Repo.ListReports(ctx, repo.ReportFilters{
			Status:          input.Status,
			ReportType:      input.ReportType,
			Severity:        input.Severity,
			CreatedAfter:    input.StartDate,
			CreatedBefore:   input.EndDate,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedAdminReports{Items: []AdminReportResponse{}}
		if len(reports) > limit {
			reports = reports[:limit]
			last := reports[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		ids := make([]string, 0, len(reports))
		for _, r := range reports {
			ids = append(ids, r.ID)
		}
		logsByReport, err := e.Repo.AdminLogsByReport(ctx, ids)
		if err != nil {
			return nil, handleError(err)
		}
		for _, r := range reports {
			resp.Items = append(resp.Items, AdminReportResponse{
				ReportResponse: adminView(r),
				Logs:           mapLogs(logsByReport[r.ID]),
			})
		}
		return &struct {
			Body paginatedAdminReports `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-update-report",
		Method:      http.MethodPatch,
		Path:        "/admin/reports",
		Summary:     "Update report status or notes",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body AdminUpdateRequest `json:"body"`
	}) (*struct {
		Body AdminReportResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ReportID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "reportId is required", nil)
		}
		r, err := e.UpdateReport(ctx, engine.ReportUpdateOptions{
			ID:         input.Body.ReportID,
			Status:     input.Body.Updates.Status,
			AdminNotes: input.Body.Updates.AdminNotes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		logs, err := e.Repo.ListAdminLogs(ctx, repo.AdminLogFilters{ReportID: r.ID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdminReportResponse `json:"body"`
		}{Body: AdminReportResponse{
			ReportResponse: adminView(r),
			Logs:           mapLogs(logs),
		}}, nil
	})
}

func registerAdminLogs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-logs",
		Method:      http.MethodGet,
		Path:        "/admin/logs",
		Summary:     "List audit entries",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ReportID string `query:"report_id"`
		Action   string `query:"action"`
		Limit    int    `query:"limit"`
	}) (*struct {
		Body paginatedLogs `json:"body"`
	}, error) {
		def, max := pageLimits(e)
		logs, err := e.Repo.ListAdminLogs(ctx, repo.AdminLogFilters{
			ReportID: input.ReportID,
			Action:   input.Action,
			Limit:    normalizeLimit(input.Limit, def, max),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body paginatedLogs `json:"body"`
		}{Body: paginatedLogs{Items: mapLogs(logs)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "admin-append-log",
		Method:        http.MethodPost,
		Path:          "/admin/logs",
		Summary:       "Append an audit entry",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body AppendLogRequest `json:"body"`
	}) (*struct {
		Body AdminLogResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		entry, err := e.AppendLog(ctx, input.Body.ReportID, input.Body.Action, audit.Details(input.Body.Details))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdminLogResponse `json:"body"`
		}{Body: adminLogResponse(entry)}, nil
	})
}
