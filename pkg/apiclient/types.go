package apiclient

import "time"

// Envelope is the server's success body.
type Envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// List is a paginated list body.
type List[T any] struct {
	Status  string `json:"status"`
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	Page    int    `json:"page"`
	HasMore bool   `json:"has_more"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type LoginResult struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	User      *User  `json:"user"`
}

type TokenInfo struct {
	Valid     bool     `json:"valid"`
	UserID    string   `json:"user_id"`
	Roles     []string `json:"roles"`
	ExpiresAt int64    `json:"expires_at,omitempty"`
}

type Referral struct {
	ID               string    `json:"id,omitempty"`
	ReferralNumber   string    `json:"referral_number,omitempty"`
	PatientName      string    `json:"patient_name,omitempty"`
	FirstName        string    `json:"first_name,omitempty"`
	LastName         string    `json:"last_name,omitempty"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	DateOfBirth      string    `json:"date_of_birth,omitempty"`
	Address          string    `json:"address,omitempty"`
	Postcode         string    `json:"postcode,omitempty"`
	NHSNumber        string    `json:"nhs_number,omitempty"`
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	MedicalHistory   string    `json:"medical_history,omitempty"`
	Allergies        string    `json:"allergies,omitempty"`
	Medications      string    `json:"medications,omitempty"`
	Condition        string    `json:"condition,omitempty"`
	ClinicalNotes    string    `json:"clinical_notes,omitempty"`
	OpticianID       string    `json:"optician_id,omitempty"`
	Status           string    `json:"status,omitempty"`
	Urgency          string    `json:"urgency,omitempty"`
	Source           string    `json:"source,omitempty"`
	Consent          bool      `json:"consent"`
	GDPRConsent      bool      `json:"gdpr"`
	SalesforceID     string    `json:"salesforce_id,omitempty"`
	SyncMode         string    `json:"sync_mode,omitempty"`
	SyncError        string    `json:"sync_error,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

type ReferralStats struct {
	Total       int `json:"total"`
	New         int `json:"new_referrals"`
	UnderReview int `json:"under_review"`
	Scheduled   int `json:"scheduled"`
	InProgress  int `json:"in_progress"`
	Completed   int `json:"completed"`
	Cancelled   int `json:"cancelled"`
	Rejected    int `json:"rejected"`
	Synced      int `json:"synced"`
	Unsynced    int `json:"unsynced"`
	Simulated   int `json:"simulated"`
}

type SyncOutcome struct {
	ReferralID     string `json:"referral_id"`
	ReferralNumber string `json:"referral_number"`
	Success        bool   `json:"success"`
	Skipped        bool   `json:"skipped,omitempty"`
	SalesforceID   string `json:"salesforce_id,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

type CreateResult struct {
	Referral   *Referral    `json:"referral"`
	Salesforce *SyncOutcome `json:"salesforce"`
}

type BulkSyncResult struct {
	Total   int            `json:"total"`
	Synced  int            `json:"synced"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	Results []*SyncOutcome `json:"results"`
}

type SalesforceSettings struct {
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	SecurityToken string `json:"security_token,omitempty"`
	LoginURL      string `json:"login_url,omitempty"`
}

type SalesforceStatus struct {
	Connected bool   `json:"connected"`
	Mode      string `json:"mode"`
	Source    string `json:"source,omitempty"`
	TestQuery string `json:"test_query,omitempty"`
	Error     string `json:"error,omitempty"`
	UserInfo  *struct {
		UserID         string `json:"id"`
		OrganizationID string `json:"organizationId"`
		FullName       string `json:"userFullName,omitempty"`
	} `json:"user_info,omitempty"`
}

type Optician struct {
	ID            string `json:"id,omitempty"`
	PracticeName  string `json:"practice_name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	Postcode      string `json:"postcode,omitempty"`
	Active        *bool  `json:"active,omitempty"`
}

type Appointment struct {
	ID          string `json:"id,omitempty"`
	ReferralID  string `json:"referral_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Type        string `json:"type,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Status      string `json:"status,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}

type TodayAppointments struct {
	Date         string         `json:"date"`
	Appointments []*Appointment `json:"appointments"`
	Count        int            `json:"count"`
}

type AnalyticsDashboard struct {
	Total       int            `json:"total"`
	ThisMonth   int            `json:"this_month"`
	ByStatus    map[string]int `json:"by_status"`
	ByUrgency   map[string]int `json:"by_urgency"`
	ByCondition map[string]int `json:"by_condition"`
	Sync        struct {
		Synced    int `json:"synced"`
		Unsynced  int `json:"unsynced"`
		Live      int `json:"live"`
		Simulated int `json:"simulated"`
		Failed    int `json:"failed"`
	} `json:"sync"`
}

type TrendPoint struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type Forecast struct {
	Method      string       `json:"method"`
	Periods     int          `json:"periods"`
	Slope       float64      `json:"slope"`
	Intercept   float64      `json:"intercept"`
	History     []TrendPoint `json:"history"`
	Predictions []struct {
		Month string  `json:"month"`
		Value float64 `json:"value"`
	} `json:"predictions"`
}

type Health struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	Database  map[string]interface{} `json:"database"`
}

type ServerStatus struct {
	App         string            `json:"app"`
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Salesforce  *SalesforceStatus `json:"salesforce"`
}

// ListOptions are the common list query parameters. Filters holds
// endpoint-specific ones such as status or q.
type ListOptions struct {
	Limit   int
	Offset  int
	Filters map[string]string
}
