package salesforce

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	info      UserInfo
	createID  string
	createErr error
	queryRes  *QueryResult
	queryErr  error
	created   []map[string]any
	queries   []string
}

func (s *fakeSession) UserInfo() UserInfo { return s.info }

func (s *fakeSession) Create(_ context.Context, sobject string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sobject != ReferralObject {
		return "", errors.New("unexpected sobject " + sobject)
	}
	s.created = append(s.created, fields)
	return s.createID, s.createErr
}

func (s *fakeSession) Query(_ context.Context, soql string) (*QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, soql)
	return s.queryRes, s.queryErr
}

type fakeConnector struct {
	session *fakeSession
	err     error
	logins  []CredentialSet
}

func (c *fakeConnector) Login(_ context.Context, creds CredentialSet) (Session, error) {
	c.logins = append(c.logins, creds)
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

var simulatedIDPattern = regexp.MustCompile(`^REF_\d+_[a-z0-9]{9}$`)

func newTestAdapter(env Settings, conn Connector) *Adapter {
	return NewAdapter(NewResolver(env, zerolog.Nop()), conn, zerolog.Nop(), WithSimulationDelay(0))
}

func sampleReferral() Referral {
	return Referral{
		FirstName:   "Emma",
		LastName:    "Thompson",
		Email:       "emma@example.org",
		Phone:       "07700900123",
		DateOfBirth: "1958-03-14",
		Allergies:   "penicillin",
	}
}

func TestAdapter_StartsDisconnected(t *testing.T) {
	a := newTestAdapter(Settings{}, &fakeConnector{})
	assert.Equal(t, Disconnected, a.State())

	st := a.Status()
	assert.False(t, st.Connected)
	assert.Equal(t, ModeSimulation, st.Mode)
}

func TestAdapter_CreateReferral_SimulatesWhenDisconnected(t *testing.T) {
	a := newTestAdapter(Settings{}, &fakeConnector{err: &RemoteAuthError{Message: "bad creds"}})

	_, err := a.Connect(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, Disconnected, a.State())

	res, err := a.CreateReferral(context.Background(), sampleReferral())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, ModeSimulation, res.Mode)
	assert.Regexp(t, simulatedIDPattern, res.SalesforceID)
	assert.Equal(t, "Emma Thompson", res.ReferralData["Name"])
	assert.Equal(t, "New", res.ReferralData["Status__c"])
	assert.Equal(t, "Patient Management System", res.ReferralData["Source__c"])
}

func TestAdapter_CreateReferral_SimulationNeverFails(t *testing.T) {
	a := newTestAdapter(Settings{}, &fakeConnector{})
	for _, r := range []Referral{{}, {FirstName: "Only"}, sampleReferral()} {
		res, err := a.CreateReferral(context.Background(), r)
		require.NoError(t, err)
		assert.Regexp(t, simulatedIDPattern, res.SalesforceID)
	}
}

func TestAdapter_CreateReferral_SimulationDelay(t *testing.T) {
	a := NewAdapter(NewResolver(Settings{}, zerolog.Nop()), &fakeConnector{}, zerolog.Nop(),
		WithSimulationDelay(50*time.Millisecond))

	start := time.Now()
	_, err := a.CreateReferral(context.Background(), sampleReferral())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAdapter_CreateReferral_SimulationCutShortByContext(t *testing.T) {
	a := NewAdapter(NewResolver(Settings{}, zerolog.Nop()), &fakeConnector{}, zerolog.Nop(),
		WithSimulationDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := a.CreateReferral(ctx, sampleReferral())
	require.NoError(t, err)
	assert.Equal(t, ModeSimulation, res.Mode)
}

func TestAdapter_Connect_SendsResolvedCredentials(t *testing.T) {
	conn := &fakeConnector{session: &fakeSession{info: UserInfo{UserID: "005xx", OrganizationID: "00Dxx"}}}
	a := newTestAdapter(Settings{Username: "env", Password: "pw", SecurityToken: "TOK"}, conn)

	st, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, conn.logins, 1)
	assert.Equal(t, "pwTOK", conn.logins[0].LoginPassword())
	assert.True(t, st.Connected)
	assert.Equal(t, ModeLive, st.Mode)
	assert.Equal(t, SourceEnvironment, st.Source)
	assert.Equal(t, "00Dxx", st.UserInfo.OrganizationID)
	assert.Equal(t, Connected, a.State())
}

func TestAdapter_CreateReferral_Live(t *testing.T) {
	session := &fakeSession{createID: "a0B5g00000XyZ12"}
	a := NewAdapter(NewResolver(Settings{Username: "u", Password: "p"}, zerolog.Nop()),
		&fakeConnector{session: session}, zerolog.Nop(),
		WithClock(func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }))

	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)

	res, err := a.CreateReferral(context.Background(), sampleReferral())
	require.NoError(t, err)
	assert.Equal(t, "a0B5g00000XyZ12", res.SalesforceID)
	assert.Equal(t, ModeLive, res.Mode)
	assert.Equal(t, "Emma Thompson", res.ReferralData["Name"])
	assert.Equal(t, "penicillin", res.ReferralData["Allergies__c"])

	require.Len(t, session.created, 1)
	fields := session.created[0]
	assert.Equal(t, "Emma Thompson", fields["Name"])
	assert.Equal(t, "1958-03-14", fields["Date_of_Birth__c"])
	assert.Equal(t, "penicillin", fields["Allergies__c"])
	assert.Equal(t, "2024-05-02", fields["Referral_Date__c"])
}

func TestReferral_FieldsOmitEmptyDate(t *testing.T) {
	fields := Referral{FirstName: "Robert"}.Fields(time.Now())
	assert.Nil(t, fields["Date_of_Birth__c"])
	assert.Equal(t, "Robert", fields["Name"])
}

func TestAdapter_CreateReferral_RemoteRejection(t *testing.T) {
	session := &fakeSession{createErr: &RemoteCreateError{Errors: []string{"REQUIRED_FIELD_MISSING: Email", "bad phone"}}}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, &fakeConnector{session: session})
	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)

	_, err = a.CreateReferral(context.Background(), sampleReferral())
	var createErr *RemoteCreateError
	require.ErrorAs(t, err, &createErr)
	assert.Equal(t, "salesforce creation failed: REQUIRED_FIELD_MISSING: Email, bad phone", err.Error())
	assert.Equal(t, Connected, a.State())
}

func TestAdapter_CreateReferral_ExpiredSessionDisconnects(t *testing.T) {
	session := &fakeSession{createErr: &RemoteAuthError{Code: "INVALID_SESSION_ID", Message: "expired"}}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, &fakeConnector{session: session})
	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)

	_, err = a.CreateReferral(context.Background(), sampleReferral())
	var authErr *RemoteAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Disconnected, a.State())

	res, err := a.CreateReferral(context.Background(), sampleReferral())
	require.NoError(t, err)
	assert.Equal(t, ModeSimulation, res.Mode)
}

func TestAdapter_GetReferrals_NotConnected(t *testing.T) {
	a := newTestAdapter(Settings{}, &fakeConnector{})

	_, err := a.GetReferrals(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)

	var nc *NotConnectedError
	assert.ErrorAs(t, err, &nc)
}

func TestAdapter_GetReferrals_Live(t *testing.T) {
	session := &fakeSession{queryRes: &QueryResult{TotalSize: 1, Done: true, Records: []map[string]any{{"Id": "a0B1"}}}}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, &fakeConnector{session: session})
	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)

	list, err := a.GetReferrals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, list.TotalSize)
	require.Len(t, session.queries, 1)
	assert.Contains(t, session.queries[0], "FROM Referral__c ORDER BY CreatedDate DESC LIMIT 10")
	for _, field := range []string{
		"Date_of_Birth__c", "Address__c", "Emergency_Contact__c",
		"Medical_History__c", "Allergies__c", "Current_Medications__c",
	} {
		assert.Contains(t, session.queries[0], field)
	}
}

func TestAdapter_TestConnection_ConnectsWhenDisconnected(t *testing.T) {
	session := &fakeSession{
		info:     UserInfo{UserID: "005A", OrganizationID: "00DA"},
		queryRes: &QueryResult{Records: []map[string]any{{"Id": "001"}}},
	}
	conn := &fakeConnector{session: session}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, conn)

	st := a.TestConnection(context.Background(), nil)
	assert.True(t, st.Connected)
	assert.Empty(t, st.TestQuery)
	assert.Equal(t, "005A", st.UserInfo.UserID)
	assert.Len(t, conn.logins, 1)
	assert.Empty(t, session.queries, "a fresh connect reports the login result only")

	st = a.TestConnection(context.Background(), nil)
	assert.True(t, st.Connected)
	assert.Equal(t, "Success", st.TestQuery)
	assert.Len(t, conn.logins, 1, "connected adapter should query, not log in again")
	assert.Equal(t, []string{"SELECT Id, Name FROM Account LIMIT 1"}, session.queries)
}

func TestAdapter_TestConnection_FreshConnectIgnoresQueryFailure(t *testing.T) {
	session := &fakeSession{queryErr: errors.New("INVALID_TYPE: sObject type 'Account' is not supported")}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, &fakeConnector{session: session})

	st := a.TestConnection(context.Background(), nil)
	assert.True(t, st.Connected)
	assert.Empty(t, st.Error)
	assert.Empty(t, session.queries)
}

func TestAdapter_TestConnection_QueryFailureWhenConnected(t *testing.T) {
	session := &fakeSession{queryErr: errors.New("INVALID_TYPE")}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, &fakeConnector{session: session})
	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)

	st := a.TestConnection(context.Background(), nil)
	assert.True(t, st.Connected)
	assert.Contains(t, st.Error, "INVALID_TYPE")
}

func TestAdapter_TestConnection_NoData(t *testing.T) {
	session := &fakeSession{queryRes: &QueryResult{}}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, &fakeConnector{session: session})
	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)

	st := a.TestConnection(context.Background(), nil)
	assert.Equal(t, "No data", st.TestQuery)
}

func TestAdapter_TestConnection_UserSettingsReconnect(t *testing.T) {
	session := &fakeSession{queryRes: &QueryResult{}}
	conn := &fakeConnector{session: session}
	a := newTestAdapter(Settings{Username: "env", Password: "p"}, conn)
	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)

	st := a.TestConnection(context.Background(), &Settings{Username: "me@org", Password: "x"})
	require.Len(t, conn.logins, 2)
	assert.Equal(t, "me@org", conn.logins[1].Username)
	assert.Equal(t, SourceUserSettings, st.Source)
}

func TestAdapter_TestConnection_ReportsFailure(t *testing.T) {
	a := newTestAdapter(Settings{}, &fakeConnector{err: &RemoteAuthError{Code: "INVALID_LOGIN", Message: "Invalid username"}})

	st := a.TestConnection(context.Background(), nil)
	assert.False(t, st.Connected)
	assert.Equal(t, ModeSimulation, st.Mode)
	assert.Equal(t, SourceDefaultDemo, st.Source)
	assert.Contains(t, st.Error, "INVALID_LOGIN")
}

func TestAdapter_ConcurrentCreatesDuringConnect(t *testing.T) {
	session := &fakeSession{createID: "a0Blive"}
	a := newTestAdapter(Settings{Username: "u", Password: "p"}, &fakeConnector{session: session})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.CreateReferral(context.Background(), sampleReferral())
			if assert.NoError(t, err) {
				assert.True(t, res.Success)
			}
		}()
	}
	_, err := a.Connect(context.Background(), nil)
	require.NoError(t, err)
	wg.Wait()
}

func TestSimulatedID(t *testing.T) {
	now := time.UnixMilli(1714644000123)
	id := SimulatedID(now)
	assert.Regexp(t, simulatedIDPattern, id)
	assert.Contains(t, id, "REF_1714644000123_")
	assert.True(t, IsSimulatedID(id))
	assert.False(t, IsSimulatedID("a0B5g00000XyZ12"))
	assert.NotEqual(t, id, SimulatedID(now))
}
