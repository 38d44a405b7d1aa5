// Package salesforce mirrors referrals into the Referral__c custom object of a
// Salesforce org. When no live session can be established the adapter falls
// back to a simulation mode that fabricates plausible create results, so the
// referral workflow can be demonstrated without CRM credentials.
package salesforce

import (
	"github.com/rs/zerolog"
)

// Source records where a CredentialSet came from.
type Source string

const (
	SourceUserSettings Source = "user-settings"
	SourceEnvironment  Source = "environment"
	SourceDefaultDemo  Source = "default-demo"
)

// DefaultLoginURL is used when neither the user nor the environment names one.
const DefaultLoginURL = "https://login.salesforce.com"

// Demo sandbox org credentials, used when nothing else is configured.
const (
	DemoUsername      = "demo@eyedocs-ktp.sandbox"
	DemoPassword      = "DemoPass2024!"
	DemoSecurityToken = "demoTokenXYZ123456789"
	DemoLoginURL      = "https://test.salesforce.com"
)

// Settings are credentials supplied by a user (settings page) or read from the
// SALESFORCE_* environment variables.
type Settings struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	SecurityToken string `json:"security_token"`
	LoginURL      string `json:"login_url"`
}

// CredentialSet is the single set of credentials used for one connection
// attempt. It is never persisted.
type CredentialSet struct {
	Username      string `json:"username"`
	Password      string `json:"-"`
	SecurityToken string `json:"-"`
	LoginURL      string `json:"login_url"`
	Source        Source `json:"source"`
}

// LoginPassword is the value sent as the SOAP login password: Salesforce
// expects the security token appended to the password.
func (c CredentialSet) LoginPassword() string {
	return c.Password + c.SecurityToken
}

// ResolveCredentials picks exactly one CredentialSet. First match wins:
// user settings with a non-empty username, then environment settings with
// both username and password, then the demo org constants. Credentials are not
// checked here; a bad set fails at login.
func ResolveCredentials(user *Settings, env Settings) CredentialSet {
	if user != nil && user.Username != "" {
		return CredentialSet{
			Username:      user.Username,
			Password:      user.Password,
			SecurityToken: user.SecurityToken,
			LoginURL:      orDefault(user.LoginURL, DefaultLoginURL),
			Source:        SourceUserSettings,
		}
	}

	if env.Username != "" && env.Password != "" {
		return CredentialSet{
			Username:      env.Username,
			Password:      env.Password,
			SecurityToken: env.SecurityToken,
			LoginURL:      orDefault(env.LoginURL, DefaultLoginURL),
			Source:        SourceEnvironment,
		}
	}

	return CredentialSet{
		Username:      DemoUsername,
		Password:      DemoPassword,
		SecurityToken: DemoSecurityToken,
		LoginURL:      DemoLoginURL,
		Source:        SourceDefaultDemo,
	}
}

// Resolver wraps ResolveCredentials with the environment settings captured at
// startup and logs which source was chosen.
type Resolver struct {
	env    Settings
	logger zerolog.Logger
}

func NewResolver(env Settings, logger zerolog.Logger) *Resolver {
	return &Resolver{env: env, logger: logger}
}

func (r *Resolver) Resolve(user *Settings) CredentialSet {
	creds := ResolveCredentials(user, r.env)
	r.logger.Info().
		Str("source", string(creds.Source)).
		Str("login_url", creds.LoginURL).
		Msg("resolved salesforce credentials")
	return creds
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
