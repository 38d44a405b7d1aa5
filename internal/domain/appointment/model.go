package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeGeneral      Type = "general"
	TypeFollowUp     Type = "follow-up"
	TypeConsultation Type = "consultation"
	TypeEmergency    Type = "emergency"
	TypeSurgery      Type = "surgery"
)

var validTypes = map[Type]bool{
	TypeGeneral:      true,
	TypeFollowUp:     true,
	TypeConsultation: true,
	TypeEmergency:    true,
	TypeSurgery:      true,
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusUrgent    Status = "urgent"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true,
	StatusConfirmed: true,
	StatusUrgent:    true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

const (
	DefaultDuration = 30
	MaxDuration     = 480
)

// Option is a select-list entry published through /config.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var TypeOptions = []Option{
	{string(TypeGeneral), "General"},
	{string(TypeFollowUp), "Follow-up"},
	{string(TypeConsultation), "Consultation"},
	{string(TypeEmergency), "Emergency"},
	{string(TypeSurgery), "Surgery"},
}

var StatusOptions = []Option{
	{string(StatusScheduled), "Scheduled"},
	{string(StatusConfirmed), "Confirmed"},
	{string(StatusUrgent), "Urgent"},
	{string(StatusCompleted), "Completed"},
	{string(StatusCancelled), "Cancelled"},
	{string(StatusNoShow), "No-show"},
}

// Appointment maps to the appointments table. Date is YYYY-MM-DD and Time is
// HH:MM in clinic local time.
type Appointment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ReferralID  *uuid.UUID `db:"referral_id" json:"referral_id,omitempty"`
	PatientName string     `db:"patient_name" json:"patient_name"`
	Date        string     `db:"date" json:"date"`
	Time        string     `db:"time" json:"time"`
	Type        Type       `db:"type" json:"type"`
	Notes       string     `db:"notes" json:"notes,omitempty"`
	Status      Status     `db:"status" json:"status"`
	Duration    int        `db:"duration" json:"duration"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Start combines Date and Time in loc.
func (a *Appointment) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
}
