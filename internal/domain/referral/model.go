package referral

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
)

type Status string

const (
	StatusNew         Status = "new"
	StatusUnderReview Status = "under_review"
	StatusScheduled   Status = "scheduled"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRejected    Status = "rejected"
)

// statusAliases maps legacy wire values onto the canonical status.
var statusAliases = map[string]Status{
	"received": StatusNew,
}

var validStatuses = map[Status]bool{
	StatusNew:         true,
	StatusUnderReview: true,
	StatusScheduled:   true,
	StatusInProgress:  true,
	StatusCompleted:   true,
	StatusCancelled:   true,
	StatusRejected:    true,
}

// NormalizeStatus lower-cases s and resolves aliases. It does not validate.
func NormalizeStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := statusAliases[s]; ok {
		return alias
	}
	return Status(s)
}

func (s Status) Valid() bool { return validStatuses[s] }

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

var validUrgencies = map[Urgency]bool{
	UrgencyRoutine:   true,
	UrgencyUrgent:    true,
	UrgencyEmergency: true,
}

type Condition string

const (
	ConditionCataract            Condition = "cataract"
	ConditionAMD                 Condition = "amd"
	ConditionOculoplastics       Condition = "oculoplastics"
	ConditionVitreoretinal       Condition = "vitreoretinal"
	ConditionGlaucoma            Condition = "glaucoma"
	ConditionDiabeticRetinopathy Condition = "diabetic_retinopathy"
	ConditionOther               Condition = "other"
)

var validConditions = map[Condition]bool{
	ConditionCataract:            true,
	ConditionAMD:                 true,
	ConditionOculoplastics:       true,
	ConditionVitreoretinal:       true,
	ConditionGlaucoma:            true,
	ConditionDiabeticRetinopathy: true,
	ConditionOther:               true,
}

// DefaultSource is stored when the submitter names none.
const DefaultSource = "Patient Management System"

// Option is a select-list entry published through /config.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var StatusOptions = []Option{
	{string(StatusNew), "New"},
	{string(StatusUnderReview), "Under Review"},
	{string(StatusScheduled), "Scheduled"},
	{string(StatusInProgress), "In Progress"},
	{string(StatusCompleted), "Completed"},
	{string(StatusCancelled), "Cancelled"},
	{string(StatusRejected), "Rejected"},
}

var UrgencyOptions = []Option{
	{string(UrgencyRoutine), "Routine"},
	{string(UrgencyUrgent), "Urgent"},
	{string(UrgencyEmergency), "Emergency"},
}

var ConditionOptions = []Option{
	{string(ConditionCataract), "Cataract"},
	{string(ConditionAMD), "Age-related Macular Degeneration (AMD)"},
	{string(ConditionOculoplastics), "Oculoplastics"},
	{string(ConditionVitreoretinal), "Vitreoretinal"},
	{string(ConditionGlaucoma), "Glaucoma"},
	{string(ConditionDiabeticRetinopathy), "Diabetic Retinopathy"},
	{string(ConditionOther), "Other"},
}

// Referral maps to the referrals table.
type Referral struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ReferralNumber string    `db:"referral_number" json:"referral_number"`

	// PatientName is accepted on input when first and last name are not
	// given separately, and always filled on output.
	PatientName      string `db:"-" json:"patient_name"`
	FirstName        string `db:"first_name" json:"first_name"`
	LastName         string `db:"last_name" json:"last_name"`
	Email            string `db:"email" json:"email,omitempty"`
	Phone            string `db:"phone" json:"phone,omitempty"`
	DateOfBirth      string `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address          string `db:"address" json:"address,omitempty"`
	Postcode         string `db:"postcode" json:"postcode,omitempty"`
	NHSNumber        string `db:"nhs_number" json:"nhs_number,omitempty"`
	EmergencyContact string `db:"emergency_contact" json:"emergency_contact,omitempty"`
	MedicalHistory   string `db:"medical_history" json:"medical_history,omitempty"`
	Allergies        string `db:"allergies" json:"allergies,omitempty"`
	Medications      string `db:"medications" json:"medications,omitempty"`

	Condition     Condition  `db:"condition" json:"condition"`
	ClinicalNotes string     `db:"clinical_notes" json:"clinical_notes"`
	OpticianID    *uuid.UUID `db:"optician_id" json:"optician_id,omitempty"`
	Status        Status     `db:"status" json:"status"`
	Urgency       Urgency    `db:"urgency" json:"urgency"`
	Source        string     `db:"source" json:"source"`
	Consent       bool       `db:"consent" json:"consent"`
	GDPRConsent   bool       `db:"gdpr" json:"gdpr"`

	SalesforceID *string    `db:"salesforce_id" json:"salesforce_id,omitempty"`
	SyncMode     *string    `db:"sync_mode" json:"sync_mode,omitempty"`
	SyncError    *string    `db:"sync_error" json:"sync_error,omitempty"`
	SyncedAt     *time.Time `db:"synced_at" json:"synced_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (r *Referral) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// splitPatientName fills first/last name from PatientName when both are empty.
// The last word becomes the last name.
func (r *Referral) splitPatientName() {
	if r.FirstName != "" || r.LastName != "" {
		return
	}
	name := strings.Join(strings.Fields(r.PatientName), " ")
	if i := strings.LastIndex(name, " "); i > 0 {
		r.FirstName, r.LastName = name[:i], name[i+1:]
		return
	}
	r.FirstName = name
}

// Synced reports whether a remote id has been recorded.
func (r *Referral) Synced() bool {
	return r.SalesforceID != nil && *r.SalesforceID != ""
}

// SimulatedSync reports whether the recorded id came from simulation mode.
func (r *Referral) SimulatedSync() bool {
	return r.Synced() && salesforce.IsSimulatedID(*r.SalesforceID)
}

// CRMRecord is the subset of the referral mirrored to Referral__c.
func (r *Referral) CRMRecord() salesforce.Referral {
	return salesforce.Referral{
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Email:            r.Email,
		Phone:            r.Phone,
		DateOfBirth:      r.DateOfBirth,
		Address:          r.Address,
		EmergencyContact: r.EmergencyContact,
		MedicalHistory:   r.MedicalHistory,
		Allergies:        r.Allergies,
		Medications:      r.Medications,
	}
}

// Stats counts referrals by status.
type Stats struct {
	Total        int `json:"total"`
	New          int `json:"new_referrals"`
	UnderReview  int `json:"under_review"`
	Scheduled    int `json:"scheduled"`
	InProgress   int `json:"in_progress"`
	Completed    int `json:"completed"`
	Cancelled    int `json:"cancelled"`
	Rejected     int `json:"rejected"`
	Synced       int `json:"synced"`
	Unsynced     int `json:"unsynced"`
	SimulatedIDs int `json:"simulated"`
}

// Add records n referrals with status s.
func (st *Stats) Add(s Status, n int) {
	st.Total += n
	switch s {
	case StatusNew:
		st.New += n
	case StatusUnderReview:
		st.UnderReview += n
	case StatusScheduled:
		st.Scheduled += n
	case StatusInProgress:
		st.InProgress += n
	case StatusCompleted:
		st.Completed += n
	case StatusCancelled:
		st.Cancelled += n
	case StatusRejected:
		st.Rejected += n
	}
}

// SyncOutcome is the per-referral result of a CRM sync.
type SyncOutcome struct {
	ReferralID     uuid.UUID       `json:"referral_id"`
	ReferralNumber string          `json:"referral_number"`
	Success        bool            `json:"success"`
	Skipped        bool            `json:"skipped,omitempty"`
	SalesforceID   string          `json:"salesforce_id,omitempty"`
	Mode           salesforce.Mode `json:"mode,omitempty"`
	Message        string          `json:"message,omitempty"`
	Error          string          `json:"error,omitempty"`

	syncErr error
}

// BulkSyncResult summarizes a sync of many referrals.
type BulkSyncResult struct {
	Total   int            `json:"total"`
	Synced  int            `json:"synced"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	Results []*SyncOutcome `json:"results"`
}

// CreateResult is returned by POST /referrals.
type CreateResult struct {
	Referral   *Referral    `json:"referral"`
	Salesforce *SyncOutcome `json:"salesforce"`
}

// ReferralNumber formats REF-YYYYMM-NNNN.
func ReferralNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("REF-%s-%04d", at.Format("200601"), seq)
}
