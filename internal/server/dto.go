package server

import (
	"encoding/json"

	"riverwatch/internal/domain"
	"riverwatch/internal/repo"
)

// Request payloads

type CreateReportRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Address     *string  `json:"address,omitempty"`
	ReportType  string   `json:"report_type" enum:"plastic,waste,hazardous,other"`
	Severity    string   `json:"severity" enum:"low,medium,high"`
	UserName    *string  `json:"user_name,omitempty"`
	UserEmail   *string  `json:"user_email,omitempty"`
	UserPhone   *string  `json:"user_phone,omitempty"`
	IsAnonymous *bool    `json:"is_anonymous,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

type ConfirmationRequest struct {
	ReportID       string `json:"report_id"`
	UserIdentifier string `json:"user_identifier"`
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type AdminUpdates struct {
	Status     *string `json:"status,omitempty" enum:"pending,in_progress,completed"`
	AdminNotes *string `json:"admin_notes,omitempty"`
}

type AdminUpdateRequest struct {
	ReportID string       `json:"reportId"`
	Updates  AdminUpdates `json:"updates"`
}

type AppendLogRequest struct {
	ReportID string         `json:"report_id"`
	Action   string         `json:"action"`
	Details  map[string]any `json:"details,omitempty"`
}

// Response payloads

type ReportResponse struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	Address            string   `json:"address,omitempty"`
	ReportType         string   `json:"report_type" enum:"plastic,waste,hazardous,other"`
	Severity           string   `json:"severity" enum:"low,medium,high"`
	Status             string   `json:"status" enum:"pending,in_progress,completed"`
	ConfirmationsCount int      `json:"confirmations_count"`
	UserName           *string  `json:"user_name,omitempty"`
	UserEmail          *string  `json:"user_email,omitempty"`
	UserPhone          *string  `json:"user_phone,omitempty"`
	IsAnonymous        bool     `json:"is_anonymous"`
	ImageURLs          []string `json:"image_urls,omitempty"`
	AdminNotes         *string  `json:"admin_notes,omitempty"`
	LastUpdatedBy      *string  `json:"last_updated_by,omitempty"`
	CreatedAt          string   `json:"created_at" format:"date-time"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

type ConfirmationResponse struct {
	ID                 string `json:"id"`
	ReportID           string `json:"report_id"`
	UserIdentifier     string `json:"user_identifier"`
	ConfirmationsCount int    `json:"confirmations_count"`
	CreatedAt          string `json:"created_at" format:"date-time"`
}

type AdminLogResponse struct {
	ID        string         `json:"id"`
	ReportID  string         `json:"report_id"`
	Action    string         `json:"action"`
	AdminUser string         `json:"admin_user"`
	Details   map[string]any `json:"details"`
	CreatedAt string         `json:"created_at" format:"date-time"`
}

// AdminReportResponse is the admin view: contact fields are always
// present and the report's audit entries come joined in.
type AdminReportResponse struct {
	ReportResponse
	Logs []AdminLogResponse `json:"logs"`
}

type StatsResponse struct {
	TotalReports       int            `json:"total_reports"`
	TotalConfirmations int            `json:"total_confirmations"`
	ByStatus           map[string]int `json:"by_status"`
	BySeverity         map[string]int `json:"by_severity"`
	ByType             map[string]int `json:"by_type"`
}

type paginatedReports struct {
	Items      []ReportResponse `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type paginatedAdminReports struct {
	Items      []AdminReportResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type paginatedLogs struct {
	Items      []AdminLogResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// Conversion helpers

// reportResponse is the public view: contact details are blanked when
// the reporter chose to stay anonymous.
func reportResponse(r domain.Report) ReportResponse {
	res := adminView(r)
	if r.IsAnonymous {
		res.UserName = nil
		res.UserEmail = nil
		res.UserPhone = nil
	}
	return res
}

func adminView(r domain.Report) ReportResponse {
	return ReportResponse{
		ID:                 r.ID,
		Title:              r.Title,
		Description:        r.Description,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		Address:            r.Address,
		ReportType:         r.ReportType,
		Severity:           r.Severity,
		Status:             r.Status,
		ConfirmationsCount: r.ConfirmationsCount,
		UserName:           r.UserName,
		UserEmail:          r.UserEmail,
		UserPhone:          r.UserPhone,
		IsAnonymous:        r.IsAnonymous,
		ImageURLs:          r.ImageURLs,
		AdminNotes:         r.AdminNotes,
		LastUpdatedBy:      r.LastUpdatedBy,
		CreatedAt:          r.CreatedAt,
	}
}

func adminLogResponse(l domain.AdminLog) AdminLogResponse {
	return AdminLogResponse{
		ID:        l.ID,
		ReportID:  l.ReportID,
		Action:    l.Action,
		AdminUser: l.AdminUser,
		Details:   decodeJSONMap(l.DetailsJSON),
		CreatedAt: l.CreatedAt,
	}
}

func mapReports(items []domain.Report) []ReportResponse {
	res := make([]ReportResponse, 0, len(items))
	for _, r := range items {
		res = append(res, reportResponse(r))
	}
	return res
}

func mapLogs(items []domain.AdminLog) []AdminLogResponse {
	res := make([]AdminLogResponse, 0, len(items))
	for _, l := range items {
		res = append(res, adminLogResponse(l))
	}
	return res
}

func statsResponse(s repo.Stats) StatsResponse {
	return StatsResponse{
		TotalReports:       s.TotalReports,
		TotalConfirmations: s.TotalConfirmations,
		ByStatus:           s.ByStatus,
		BySeverity:         s.BySeverity,
		ByType:             s.ByType,
	}
}

// JSON helpers

// decodeJSONMap decodes a stored details column. A value that is not a
// readable JSON object comes back as an empty object rather than being
// dropped; only a NULL column yields nil.
func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return map[string]any{}
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
