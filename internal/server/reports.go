package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"riverwatch/internal/domain"
	"riverwatch/internal/engine"
	"riverwatch/internal/repo"
)

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-report",
		Method:        http.MethodPost,
		Path:          "/reports",
		Summary:       "Submit a pollution report",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateReportRequest `json:"body"`
	}) (*struct {
		Body ReportResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.ReportCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Latitude:    input.Body.Latitude,
			Longitude:   input.Body.Longitude,
			Address:     stringOrEmpty(input.Body.Address),
			ReportType:  input.Body.ReportType,
			Severity:    input.Body.Severity,
			UserName:    stringOrEmpty(input.Body.UserName),
			UserEmail:   stringOrEmpty(input.Body.UserEmail),
			UserPhone:   stringOrEmpty(input.Body.UserPhone),
			IsAnonymous: input.Body.IsAnonymous,
			ImageURLs:   input.Body.ImageURLs,
		}
		r, err := e.CreateReport(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportResponse `json:"body"`
		}{Body: reportResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "List reports",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		ReportType string `query:"type"`
		Severity   string `query:"severity"`
		StartDate  string `query:"start_date"`
		EndDate    string `query:"end_date"`
		Limit      int    `query:"limit"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedReports `json:"body"`
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
		resp := paginatedReports{Items: []ReportResponse{}}
		if len(reports) > limit {
			reports = reports[:limit]
			last := reports[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = mapReports(reports)
		return &struct {
			Body paginatedReports `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/reports/{id}",
		Summary:     "Get report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ReportResponse `json:"body"`
	}, error) {
		r, err := e.GetReport(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportResponse `json:"body"`
		}{Body: reportResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-report",
		Method:      http.MethodDelete,
		Path:        "/reports/{id}",
		Summary:     "Delete report",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DeleteResponse `json:"body"`
	}, error) {
		if err := e.DeleteReport(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteResponse `json:"body"`
		}{Body: DeleteResponse{Deleted: true}}, nil
	})
}

func registerConfirmations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "confirm-report",
		Method:        http.MethodPost,
		Path:          "/confirmations",
		Summary:       "Confirm a report",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body ConfirmationRequest `json:"body"`
	}) (*struct {
		Body ConfirmationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.ConfirmReport(ctx, input.Body.ReportID, input.Body.UserIdentifier)
		if err != nil {
			return nil, handleError(err)
		}
		r, err := e.GetReport(ctx, c.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConfirmationResponse `json:"body"`
		}{Body: ConfirmationResponse{
			ID:                 c.ID,
			ReportID:           c.ReportID,
			UserIdentifier:     c.UserIdentifier,
			ConfirmationsCount: r.ConfirmationsCount,
			CreatedAt:          c.CreatedAt,
		}}, nil
	})
}
