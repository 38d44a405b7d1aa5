package client

import (
	"strings"
	"unicode/utf8"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

// ValidateReferral checks a referral form before submission and returns
// field -> message, empty when the form is valid. It applies every rule the
// server enforces plus two the form adds: an optician must be selected, and
// split names need a surname. A form that passes here is accepted by the API;
// the API also takes referrals without either.
func ValidateReferral(r *apiclient.Referral) map[string]string {
	var v validation.Errors

	if strings.TrimSpace(r.PatientName) == "" {
		v.Required("first_name", r.FirstName)
		v.Required("last_name", r.LastName)
	}
	v.MaxLength("patient_name", r.PatientName, validation.MaxNameLength)
	v.MaxLength("first_name", r.FirstName, validation.MaxNameLength)
	v.MaxLength("last_name", r.LastName, validation.MaxNameLength)

	v.Required("condition", r.Condition)
	v.Required("optician_id", r.OpticianID)

	if v.Required("clinical_notes", r.ClinicalNotes) {
		if n := utf8.RuneCountInString(strings.TrimSpace(r.ClinicalNotes)); n < validation.MinClinicalNotesLength {
			v.Add("clinical_notes", "must be at least %d characters", validation.MinClinicalNotesLength)
		}
		v.MaxLength("clinical_notes", r.ClinicalNotes, validation.MaxClinicalNotesLength)
	}

	v.Match("email", strings.TrimSpace(r.Email), validation.EmailPattern, "email address")
	v.Match("phone", validation.NormalizePhone(r.Phone), validation.PhonePattern, "phone number")
	v.Match("nhs_number", validation.NormalizeNHSNumber(r.NHSNumber), validation.NHSNumberPattern, "10 digit NHS number")

	if !r.Consent {
		v.Add("consent", "patient consent is required")
	}
	if !r.GDPRConsent {
		v.Add("gdpr", "GDPR consent is required")
	}
	return validation.Fields(v.Err())
}
