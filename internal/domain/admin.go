package domain

import "time"

type ToDo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Notes       string    `json:"notes,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	Priority    string    `json:"priority"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StaffMember struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email,omitempty"`
	AnnualAllowance float64   `json:"annual_allowance"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s StaffMember) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}

const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)

type LeaveRequest struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	HalfDay   bool      `json:"half_day"`
	Days      float64   `json:"days"`
	Reason    string    `json:"reason,omitempty"`
	Status    string    `json:"status"`
	DecidedBy string    `json:"decided_by,omitempty"`
	DecidedAt time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredFile is the metadata row kept for every object uploaded to a bucket.
type StoredFile struct {
	ID         string    `json:"id"`
	Bucket     string    `json:"bucket"`
	Name       string    `json:"name"`
	Title      string    `json:"title,omitempty"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ToolboxTalk struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Topic     string    `json:"topic,omitempty"`
	Presenter string    `json:"presenter,omitempty"`
	TalkDate  string    `json:"talk_date,omitempty"`
	Attendees []string  `json:"attendees,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
