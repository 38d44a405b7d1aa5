package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListReferrals_Query(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"status":"success","data":[{"id":"1","referral_number":"REF-202503-0001"}],"total":1,"limit":5,"offset":0,"page":1,"has_more":false}`)
	})

	res, err := c.ListReferrals(context.Background(), ListOptions{Limit: 5, Filters: map[string]string{"status": "new", "urgency": ""}})
	require.NoError(t, err)
	assert.Equal(t, "limit=5&status=new", gotQuery)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "REF-202503-0001", res.Data[0].ReferralNumber)
	assert.Equal(t, 1, res.Total)
}

func TestCreateReferral_DecodesSyncOutcome(t *testing.T) {
	var sent Referral
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/referrals", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&sent)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"status":"success","data":{"referral":{"id":"r1","status":"new"},"salesforce":{"success":true,"salesforce_id":"REF_1_abc","mode":"simulation"}}}`)
	})

	res, err := c.CreateReferral(context.Background(), &Referral{PatientName: "Emma Thompson", Condition: "cataract", Consent: true, GDPRConsent: true})
	require.NoError(t, err)
	assert.Equal(t, "Emma Thompson", sent.PatientName)
	assert.True(t, sent.GDPRConsent)
	assert.Equal(t, "r1", res.Referral.ID)
	assert.Equal(t, "simulation", res.Salesforce.Mode)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"status":"error","message":"invalid email or password"}`)
			return
		}
		io.WriteString(w, `{"status":"success","data":{"token":"jwt","expires_at":1700000000,"user":{"id":"u1","role":"clinician"}}}`)
	})

	res, err := c.Login(context.Background(), "dr@clinic.nhs.uk", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, "clinician", res.User.Role)

	_, err = c.Login(context.Background(), "dr@clinic.nhs.uk", "wrong")
	assert.True(t, IsUnauthorized(err))
	assert.EqualError(t, err, "api error 401: invalid email or password")
}

func TestSyncReferral_Body(t *testing.T) {
	var body map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"status":"success","data":{"referral_id":"r1","success":true,"mode":"live","salesforce_id":"a0B1"}}`)
	})

	out, err := c.SyncReferral(context.Background(), "r1", true)
	require.NoError(t, err)
	assert.Equal(t, "r1", body["referral_id"])
	assert.Equal(t, true, body["force"])
	assert.Equal(t, "a0B1", out.SalesforceID)
}

func TestTrends(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "months=3", r.URL.RawQuery)
		io.WriteString(w, `{"status":"success","data":[{"month":"2025-01","count":2},{"month":"2025-02","count":0},{"month":"2025-03","count":5}]}`)
	})

	points, err := c.Trends(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, TrendPoint{Month: "2025-03", Count: 5}, points[2])
}

func TestTestSalesforce_NoSettingsSendsNoBody(t *testing.T) {
	var length int64 = -1
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		length = r.ContentLength
		io.WriteString(w, `{"status":"success","data":{"connected":false,"mode":"simulation","error":"INVALID_LOGIN"}}`)
	})

	st, err := c.TestSalesforce(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
	assert.Equal(t, "simulation", st.Mode)
	assert.Equal(t, "INVALID_LOGIN", st.Error)
}
