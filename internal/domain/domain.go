package domain

// Report is a citizen-submitted record of observed river pollution.
type Report struct {
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

// Confirmation links a user identifier to a report it endorses.
// Rows are append-only; each insert bumps the report's confirmations_count.
type Confirmation struct {
	ID             string `json:"id"`
	ReportID       string `json:"report_id"`
	UserIdentifier string `json:"user_identifier"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

// AdminLog is one append-only audit entry for an admin action on a report.
// Entries may outlive the report they reference.
type AdminLog struct {
	ID          string `json:"id"`
	ReportID    string `json:"report_id"`
	Action      string `json:"action"`
	AdminUser   string `json:"admin_user"`
	DetailsJSON string `json:"details_json,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// Report status values. Transitions between them are not restricted; any
// admin may set any recognized value at any time.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// AdminLog actions emitted by the lifecycle engine.
const (
	ActionStatusUpdate  = "status_update"
	ActionNoteAdded     = "note_added"
	ActionReportDeleted = "report_deleted"
)

// MaxReportImages caps the image list on a report.
const MaxReportImages = 3

var reportTypes = map[string]bool{
	"plastic":   true,
	"waste":     true,
	"hazardous": true,
	"other":     true,
}

var severities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

var statuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

func ValidReportType(v string) bool { return reportTypes[v] }

func ValidSeverity(v string) bool { return severities[v] }

func ValidStatus(v string) bool { return statuses[v] }
