package salesforce

import (
	"strings"
	"time"
)

// ReferralObject is the Salesforce custom object referrals are written to.
const ReferralObject = "Referral__c"

const (
	defaultStatus = "New"
	defaultSource = "Patient Management System"
)

// recentReferralsQuery lists the newest referrals in the org.
const recentReferralsQuery = "SELECT Id, Name, First_Name__c, Last_Name__c, Email__c, Phone__c, " +
	"Date_of_Birth__c, Address__c, Emergency_Contact__c, Medical_History__c, Allergies__c, " +
	"Current_Medications__c, Status__c, Source__c, Referral_Date__c, CreatedDate " +
	"FROM Referral__c ORDER BY CreatedDate DESC LIMIT 10"

const connectionTestQuery = "SELECT Id, Name FROM Account LIMIT 1"

// Referral is the patient referral as handed to the adapter.
type Referral struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Address          string `json:"address,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	MedicalHistory   string `json:"medical_history,omitempty"`
	Allergies        string `json:"allergies,omitempty"`
	Medications      string `json:"medications,omitempty"`
}

// Name is "First Last", trimmed when either part is missing.
func (r Referral) Name() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Fields maps the referral onto Referral__c field names for a live create.
func (r Referral) Fields(now time.Time) map[string]any {
	return map[string]any{
		"Name":                   r.Name(),
		"First_Name__c":          r.FirstName,
		"Last_Name__c":           r.LastName,
		"Email__c":               r.Email,
		"Phone__c":               r.Phone,
		"Date_of_Birth__c":       nullable(r.DateOfBirth),
		"Address__c":             r.Address,
		"Emergency_Contact__c":   r.EmergencyContact,
		"Medical_History__c":     r.MedicalHistory,
		"Allergies__c":           r.Allergies,
		"Current_Medications__c": r.Medications,
		"Status__c":              defaultStatus,
		"Source__c":              defaultSource,
		"Referral_Date__c":       now.Format("2006-01-02"),
	}
}

// simulatedFields is the smaller record echoed back in simulation mode.
func (r Referral) simulatedFields() map[string]any {
	return map[string]any{
		"Name":          r.Name(),
		"First_Name__c": r.FirstName,
		"Last_Name__c":  r.LastName,
		"Email__c":      r.Email,
		"Phone__c":      r.Phone,
		"Status__c":     defaultStatus,
		"Source__c":     defaultSource,
	}
}

// Salesforce rejects "" for date fields.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
