package models

import (
	"fmt"
	"time"
)

// Approval statuses shared by profiles and observations
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Report lifecycle statuses
const (
	ReportStatusDraft     = "draft"
	ReportStatusSubmitted = "submitted"
)

// Observation year statuses
const (
	YearStatusOpen      = "open"
	YearStatusClosed    = "closed"
	YearStatusSubmitted = "submitted"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Notification types
const (
	NotificationObservationRequest  = "observation_request"
	NotificationObservationApproved = "observation_approved"
	NotificationObservationRejected = "observation_rejected"
)

// EvaluationPoints is the fixed list of evaluation criteria on a judge
// meeting report, in protocol order.
var EvaluationPoints = []string{
	"Takt i skritt",
	"Takt i trav",
	"Takt i galopp",
	"Løsgjorthet",
	"Kontakt",
	"Schwung",
	"Retthet",
	"Samling",
	"Teknisk feil i øvelsene",
	"Allment inntrykk og harmoni",
}

// User represents an account in the system
type User struct {
	ID           uint      `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Profile represents a judge profile attached to a user account
type Profile struct {
	UserID          uint       `json:"user_id" db:"user_id"`
	FullName        string     `json:"full_name" db:"full_name"`
	Birthday        *time.Time `json:"birthday,omitempty" db:"birthday"`
	JudgeLevel      *string    `json:"judge_level,omitempty" db:"judge_level"`
	JudgeStart      *int       `json:"judge_start,omitempty" db:"judge_start"`
	RiderDistrict   *string    `json:"rider_district,omitempty" db:"rider_district"`
	ApprovalStatus  string     `json:"approval_status" db:"approval_status"`
	Role            string     `json:"role" db:"role"`
	RequestedAt     time.Time  `json:"requested_at" db:"requested_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy      *uint      `json:"reviewed_by,omitempty" db:"reviewed_by"`
	RejectionReason *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the profile grants admin access.
// Admin rights require an approved admin profile, not just the role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin && p.ApprovalStatus == StatusApproved
}

// Session represents a server-side login session keyed by token JTI
type Session struct {
	JTI       string    `json:"jti" db:"jti"`
	UserID    uint      `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
}

// ObservationYear groups an observer's observations per calendar year
type ObservationYear struct {
	ID         string    `json:"id" db:"id"`
	ObserverID uint      `json:"observer_id" db:"observer_id"`
	Year       int       `json:"year" db:"year"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Observation represents a single bisitting entry awaiting host approval
type Observation struct {
	ID               string    `json:"id" db:"id"`
	YearID           string    `json:"year_id" db:"year_id"`
	ObserverID       uint      `json:"observer_id" db:"observer_id"`
	ObservationDate  time.Time `json:"observation_date" db:"observation_date"`
	Location         string    `json:"location" db:"location"`
	ClassLevel       *string   `json:"class_level,omitempty" db:"class_level"`
	NumberOfHorses   *int      `json:"number_of_horses,omitempty" db:"number_of_horses"`
	ResultListURL    *string   `json:"result_list_url,omitempty" db:"result_list_url"`
	HostUserID       *uint     `json:"host_user_id,omitempty" db:"host_user_id"`
	HostName         string    `json:"host_name" db:"host_name"`
	Status           string    `json:"status" db:"status"`
	RejectionComment *string   `json:"rejection_comment,omitempty" db:"rejection_comment"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Notification represents an in-app notification row
type Notification struct {
	ID            string    `json:"id" db:"id"`
	UserID        uint      `json:"user_id" db:"user_id"`
	ObservationID *string   `json:"observation_id,omitempty" db:"observation_id"`
	Type          string    `json:"type" db:"type"`
	Title         string    `json:"title" db:"title"`
	Message       string    `json:"message" db:"message"`
	Link          *string   `json:"link,omitempty" db:"link"`
	IsRead        bool      `json:"is_read" db:"is_read"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ReportPayload holds the wizard content of a judge meeting report.
// Field names mirror the stored JSON document.
type ReportPayload struct {
	ClassLevel        string             `json:"classLevel,omitempty"`
	RiderName         string             `json:"riderName,omitempty"`
	HorseName         string             `json:"horseName,omitempty"`
	TotalPercent      *float64           `json:"totalPercent,omitempty"`
	HighestPercent    *float64           `json:"highestPercent,omitempty"`
	LowestPercent     *float64           `json:"lowestPercent,omitempty"`
	Deviation         string             `json:"deviation,omitempty"`
	Scores            map[string]float64 `json:"scores,omitempty"`
	Comments          map[string]string  `json:"comments,omitempty"`
	SpecialConditions string             `json:"specialConditions,omitempty"`
	SpecialComment    string             `json:"specialComment,omitempty"`
	OtherCause        string             `json:"otherCause,omitempty"`
	Reflection        string             `json:"reflection,omitempty"`
	ImagePaths        []string           `json:"imagePaths,omitempty"`
	// Draft is the legacy lifecycle marker kept for rows written before
	// the explicit status column existed.
	Draft *bool `json:"draft,omitempty"`
}

// JudgeMeetingReport represents a judge meeting report aggregate
type JudgeMeetingReport struct {
	ID          string        `json:"id" db:"id"`
	UserID      uint          `json:"user_id" db:"user_id"`
	ShowDate    time.Time     `json:"show_date" db:"show_date"`
	Location    string        `json:"location" db:"location"`
	Judge1      *string       `json:"judge_1,omitempty" db:"judge_1"`
	Judge2      *string       `json:"judge_2,omitempty" db:"judge_2"`
	Judge3      *string       `json:"judge_3,omitempty" db:"judge_3"`
	Judge1ID    *uint         `json:"judge_1_id,omitempty" db:"judge_1_id"`
	Judge2ID    *uint         `json:"judge_2_id,omitempty" db:"judge_2_id"`
	Judge3ID    *uint         `json:"judge_3_id,omitempty" db:"judge_3_id"`
	Status      *string       `json:"status,omitempty" db:"status"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty" db:"submitted_at"`
	Payload     ReportPayload `json:"payload" db:"payload"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// EffectiveStatus returns the lifecycle status of the report. Legacy rows
// carry no status column; those count as drafts unless the payload marks
// them explicitly as not-draft.
func (r *JudgeMeetingReport) EffectiveStatus() string {
	if r.Status != nil {
		return *r.Status
	}
	if r.Payload.Draft != nil && !*r.Payload.Draft {
		return ReportStatusSubmitted
	}
	return ReportStatusDraft
}

// IsSubmitted reports whether the report has reached its terminal state
func (r *JudgeMeetingReport) IsSubmitted() bool {
	return r.EffectiveStatus() == ReportStatusSubmitted
}

// JudgeNames returns the non-empty judge names in column order
func (r *JudgeMeetingReport) JudgeNames() []string {
	var names []string
	for _, j := range []*string{r.Judge1, r.Judge2, r.Judge3} {
		if j != nil && *j != "" {
			names = append(names, *j)
		}
	}
	return names
}

// ComputeDeviation formats the spread between the highest and lowest judge
// percentage with two decimals. Either bound missing yields an empty string.
func ComputeDeviation(highest, lowest *float64) string {
	if highest == nil || lowest == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *highest-*lowest)
}

// OutboxEntry represents a queued report dispatch awaiting retry
type OutboxEntry struct {
	ID        uint       `json:"id" db:"id"`
	ReportID  string     `json:"report_id" db:"report_id"`
	Recipient string     `json:"recipient" db:"recipient"`
	Attempts  int        `json:"attempts" db:"attempts"`
	LastError *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}
