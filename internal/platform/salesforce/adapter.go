package salesforce

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the connection state of an Adapter.
type State string

const (
	Disconnected State = "disconnected"
	Connected    State = "connected"
)

// Mode tells the caller whether a result came from the org or was simulated.
type Mode string

const (
	ModeLive       Mode = "live"
	ModeSimulation Mode = "simulation"
)

// DefaultSimulationDelay emulates network latency on simulated creates.
const DefaultSimulationDelay = time.Second

// SyncResult is the envelope returned by CreateReferral.
type SyncResult struct {
	Success      bool           `json:"success"`
	SalesforceID string         `json:"salesforce_id"`
	Mode         Mode           `json:"mode"`
	Message      string         `json:"message"`
	ReferralData map[string]any `json:"referral_data,omitempty"`
}

// ConnectionStatus reports connectivity for /salesforce/status and /salesforce/test.
type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	Mode      Mode      `json:"mode"`
	Source    Source    `json:"source,omitempty"`
	UserInfo  *UserInfo `json:"user_info,omitempty"`
	TestQuery string    `json:"test_query,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ReferralList is the result of GetReferrals.
type ReferralList struct {
	TotalSize int              `json:"total_size"`
	Records   []map[string]any `json:"records"`
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithSimulationDelay overrides the artificial delay of simulated creates.
func WithSimulationDelay(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.simDelay = d }
}

// WithClock sets the time source used for simulated ids and referral dates.
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

// Adapter owns the single Salesforce session of the process. Connect attempts
// are serialized; operations read the session under a read lock and make the
// remote call without holding it.
type Adapter struct {
	connectMu sync.Mutex

	mu      sync.RWMutex
	session Session
	source  Source
	lastErr error

	resolver  *Resolver
	connector Connector
	logger    zerolog.Logger
	simDelay  time.Duration
	now       func() time.Time
}

func NewAdapter(resolver *Resolver, connector Connector, logger zerolog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		resolver:  resolver,
		connector: connector,
		logger:    logger,
		simDelay:  DefaultSimulationDelay,
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// State returns Connected when a live session is held.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session != nil {
		return Connected
	}
	return Disconnected
}

// Connect resolves credentials and logs in. On any failure the adapter is left
// Disconnected and the error is returned; callers treat it as informational.
func (a *Adapter) Connect(ctx context.Context, user *Settings) (*ConnectionStatus, error) {
	a.connectMu.Lock()
	defer a.connectMu.Unlock()

	creds := a.resolver.Resolve(user)
	if creds.Username == "" || creds.Password == "" {
		err := &MissingCredentialsError{Source: creds.Source}
		a.setDisconnected(creds.Source, err)
		a.logger.Info().Str("source", string(creds.Source)).Msg("salesforce credentials missing, using simulation mode")
		return a.Status(), err
	}

	session, err := a.connector.Login(ctx, creds)
	if err != nil {
		a.setDisconnected(creds.Source, err)
		a.logger.Warn().Err(err).Str("source", string(creds.Source)).Msg("salesforce connection failed, using simulation mode")
		return a.Status(), err
	}

	a.mu.Lock()
	a.session = session
	a.source = creds.Source
	a.lastErr = nil
	a.mu.Unlock()

	info := session.UserInfo()
	a.logger.Info().
		Str("user_id", info.UserID).
		Str("org_id", info.OrganizationID).
		Str("source", string(creds.Source)).
		Msg("connected to salesforce")
	return a.Status(), nil
}

func (a *Adapter) setDisconnected(source Source, err error) {
	a.mu.Lock()
	a.session = nil
	a.source = source
	a.lastErr = err
	a.mu.Unlock()
}

// dropSession disconnects only if s is still the current session, so a stale
// failure cannot discard a newer login.
func (a *Adapter) dropSession(s Session, err error) {
	a.mu.Lock()
	if a.session == s {
		a.session = nil
		a.lastErr = err
	}
	a.mu.Unlock()
	a.logger.Warn().Err(err).Msg("salesforce session rejected, disconnected")
}

func (a *Adapter) current() Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Status reports the current state without contacting Salesforce.
func (a *Adapter) Status() *ConnectionStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := &ConnectionStatus{Mode: ModeSimulation, Source: a.source}
	if a.session != nil {
		info := a.session.UserInfo()
		st.Connected = true
		st.Mode = ModeLive
		st.UserInfo = &info
	}
	if a.lastErr != nil {
		st.Error = a.lastErr.Error()
	}
	return st
}

// CreateReferral writes r to Referral__c when connected. When disconnected it
// always succeeds with a simulated id after the configured delay.
func (a *Adapter) CreateReferral(ctx context.Context, r Referral) (*SyncResult, error) {
	session := a.current()
	if session == nil {
		return a.simulateCreate(ctx, r), nil
	}

	fields := r.Fields(a.now())
	id, err := session.Create(ctx, ReferralObject, fields)
	if err != nil {
		var authErr *RemoteAuthError
		if errors.As(err, &authErr) {
			a.dropSession(session, err)
		}
		a.logger.Error().Err(err).Str("patient", r.Name()).Msg("salesforce referral create failed")
		return nil, err
	}

	a.logger.Info().Str("salesforce_id", id).Str("patient", r.Name()).Msg("referral created in salesforce")
	return &SyncResult{
		Success:      true,
		SalesforceID: id,
		Mode:         ModeLive,
		Message:      "Referral created in Salesforce",
		ReferralData: fields,
	}, nil
}

// simulateCreate waits out the delay unless ctx ends first; the result is
// returned either way.
func (a *Adapter) simulateCreate(ctx context.Context, r Referral) *SyncResult {
	if a.simDelay > 0 {
		t := time.NewTimer(a.simDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	id := SimulatedID(a.now())
	a.logger.Info().Str("salesforce_id", id).Str("patient", r.Name()).Msg("simulated salesforce referral create")
	return &SyncResult{
		Success:      true,
		SalesforceID: id,
		Mode:         ModeSimulation,
		Message:      "Referral created (simulation mode)",
		ReferralData: r.simulatedFields(),
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// SimulatedID returns REF_<unix millis>_<9 base36 chars>.
func SimulatedID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return "REF_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}

// IsSimulatedID reports whether id was produced by SimulatedID.
func IsSimulatedID(id string) bool {
	return len(id) > 4 && id[:4] == "REF_"
}

// TestConnection connects when disconnected or when user settings are given
// and reports the result of that connect. An already connected adapter runs a
// one-row Account query instead. Failures are reported in the status.
func (a *Adapter) TestConnection(ctx context.Context, user *Settings) *ConnectionStatus {
	session := a.current()
	if session == nil || user != nil {
		st, _ := a.Connect(ctx, user)
		return st
	}

	res, err := session.Query(ctx, connectionTestQuery)
	if err != nil {
		var authErr *RemoteAuthError
		if errors.As(err, &authErr) {
			a.dropSession(session, err)
		}
		st := a.Status()
		st.Error = err.Error()
		return st
	}

	st := a.Status()
	st.TestQuery = "No data"
	if len(res.Records) > 0 {
		st.TestQuery = "Success"
	}
	return st
}

// GetReferrals lists the ten newest Referral__c rows. It has no simulated
// fallback and returns ErrNotConnected when disconnected.
func (a *Adapter) GetReferrals(ctx context.Context) (*ReferralList, error) {
	session := a.current()
	if session == nil {
		return nil, ErrNotConnected
	}

	res, err := session.Query(ctx, recentReferralsQuery)
	if err != nil {
		var authErr *RemoteAuthError
		if errors.As(err, &authErr) {
			a.dropSession(session, err)
		}
		return nil, err
	}
	return &ReferralList{TotalSize: res.TotalSize, Records: res.Records}, nil
}
