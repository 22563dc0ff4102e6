package domain

import "time"

// Status is an application's overall lifecycle state
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusDenied    Status = "DENIED"
	StatusCompleted Status = "COMPLETED"
)

// InterviewStatus is the sub-state an accepted application walks through
type InterviewStatus string

const (
	InterviewNone      InterviewStatus = ""
	InterviewAwaiting  InterviewStatus = "AWAITING_INTERVIEW"
	InterviewFailed    InterviewStatus = "INTERVIEW_FAILED"
	InterviewCompleted InterviewStatus = "INTERVIEW_COMPLETED"
)

// ApplicationTemplate is a department's application form. Only active
// templates accept new submissions.
type ApplicationTemplate struct {
	ID         int64
	Department Department
	Title      string
	Active     bool
	CreatedAt  time.Time
}

// Application is a user's application against a template
type Application struct {
	ID                   int64
	UserID               int64
	TemplateID           int64
	Department           Department
	Status               Status
	InterviewStatus      InterviewStatus
	Responses            map[string]string
	DenialCount          int
	ReviewerID           *int64 // Set on first review action
	LastDeniedAt         *time.Time
	CooldownUntil        *time.Time
	InterviewFailedAt    *time.Time
	InterviewCompletedAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ApplicationNote is an immutable note attached to an application,
// attributed to the reviewer who wrote it
type ApplicationNote struct {
	ID            int64
	ApplicationID int64
	AuthorID      int64
	Body          string
	CreatedAt     time.Time
}

// ApplicationRepository defines data access for applications.
//
// Create must reject a second PENDING application for the same
// (user, department) pair with ErrPendingExists, atomically with the insert.
// Update is guarded on the previously observed status pair and reports
// ErrStaleApplication when another writer got there first; together these
// keep the lifecycle counters correct under concurrent submissions and
// reviews without holding locks across calls.
type ApplicationRepository interface {
	Create(app *Application) error
	GetByID(id int64) (*Application, error)
	// FindPending returns nil without error when no pending application exists
	FindPending(userID int64, department Department) (*Application, error)
	// LatestDenied returns nil without error when the user has no denied
	// application for the department
	LatestDenied(userID int64, department Department) (*Application, error)
	ListByUser(userID int64) ([]*Application, error)
	ListPendingByDepartment(department Department) ([]*Application, error)
	Update(app *Application, prevStatus Status, prevInterview InterviewStatus) error
	AppendNote(note *ApplicationNote) error
	ListNotes(applicationID int64) ([]*ApplicationNote, error)
}

// TemplateRepository defines data access for application templates
type TemplateRepository interface {
	Create(template *ApplicationTemplate) error
	GetByID(id int64) (*ApplicationTemplate, error)
	ListActiveByDepartment(department Department) ([]*ApplicationTemplate, error)
}
