package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	for k, v := range o.Filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func idParam(id string) map[string]string {
	return map[string]string{"id": id}
}

// get, send and list wrap Do for envelope-shaped responses.
func get[T any](ctx context.Context, c *Client, path string, params map[string]string) (T, error) {
	var env Envelope[T]
	err := c.Do(ctx, http.MethodGet, path, params, nil, &env)
	return env.Data, err
}

func send[T any](ctx context.Context, c *Client, method, path string, params map[string]string, body interface{}) (T, error) {
	var env Envelope[T]
	err := c.Do(ctx, method, path, params, body, &env)
	return env.Data, err
}

func list[T any](ctx context.Context, c *Client, path string, opts ListOptions) (*List[T], error) {
	var out List[T]
	if err := c.Do(ctx, http.MethodGet, path+opts.query(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Auth

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return send[*LoginResult](ctx, c, http.MethodPost, "/auth/login", nil,
		map[string]string{"email": email, "password": password})
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (c *Client) ValidateToken(ctx context.Context) (*TokenInfo, error) {
	return get[*TokenInfo](ctx, c, "/auth/validate", nil)
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	return get[*User](ctx, c, "/auth/profile", nil)
}

// Referrals

func (c *Client) CreateReferral(ctx context.Context, r *Referral) (*CreateResult, error) {
	return send[*CreateResult](ctx, c, http.MethodPost, "/referrals", nil, r)
}

func (c *Client) GetReferral(ctx context.Context, id string) (*Referral, error) {
	return get[*Referral](ctx, c, "/referrals/{id}", idParam(id))
}

func (c *Client) UpdateReferral(ctx context.Context, id string, r *Referral) (*Referral, error) {
	return send[*Referral](ctx, c, http.MethodPut, "/referrals/{id}", idParam(id), r)
}

func (c *Client) UpdateReferralStatus(ctx context.Context, id, status string) (*Referral, error) {
	return send[*Referral](ctx, c, http.MethodPatch, "/referrals/{id}/status", idParam(id),
		map[string]string{"status": status})
}

func (c *Client) DeleteReferral(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/referrals/{id}", idParam(id), nil, nil)
}

func (c *Client) ListReferrals(ctx context.Context, opts ListOptions) (*List[*Referral], error) {
	return list[*Referral](ctx, c, "/referrals", opts)
}

func (c *Client) SearchReferrals(ctx context.Context, q string, opts ListOptions) (*List[*Referral], error) {
	if opts.Filters == nil {
		opts.Filters = map[string]string{}
	}
	opts.Filters["q"] = q
	return list[*Referral](ctx, c, "/referrals/search", opts)
}

func (c *Client) ReferralStats(ctx context.Context) (*ReferralStats, error) {
	return get[*ReferralStats](ctx, c, "/referrals/stats", nil)
}

// Opticians

func (c *Client) ListOpticians(ctx context.Context, opts ListOptions) (*List[*Optician], error) {
	return list[*Optician](ctx, c, "/opticians", opts)
}

func (c *Client) GetOptician(ctx context.Context, id string) (*Optician, error) {
	return get[*Optician](ctx, c, "/opticians/{id}", idParam(id))
}

func (c *Client) CreateOptician(ctx context.Context, o *Optician) (*Optician, error) {
	return send[*Optician](ctx, c, http.MethodPost, "/opticians", nil, o)
}

// Appointments

func (c *Client) ListAppointments(ctx context.Context, opts ListOptions) (*List[*Appointment], error) {
	return list[*Appointment](ctx, c, "/appointments", opts)
}

func (c *Client) TodayAppointments(ctx context.Context) (*TodayAppointments, error) {
	return get[*TodayAppointments](ctx, c, "/appointments/today", nil)
}

func (c *Client) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	return send[*Appointment](ctx, c, http.MethodPost, "/appointments", nil, a)
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id, status string) (*Appointment, error) {
	return send[*Appointment](ctx, c, http.MethodPatch, "/appointments/{id}/status", idParam(id),
		map[string]string{"status": status})
}

// Analytics

func (c *Client) AnalyticsDashboard(ctx context.Context) (*AnalyticsDashboard, error) {
	return get[*AnalyticsDashboard](ctx, c, "/analytics/dashboard", nil)
}

func (c *Client) Trends(ctx context.Context, months int) ([]TrendPoint, error) {
	path := "/analytics/trends"
	if months > 0 {
		path += "?months=" + strconv.Itoa(months)
	}
	return get[[]TrendPoint](ctx, c, path, nil)
}

func (c *Client) Forecast(ctx context.Context, periods int) (*Forecast, error) {
	return send[*Forecast](ctx, c, http.MethodPost, "/analytics/forecast", nil,
		map[string]int{"periods": periods})
}

// Salesforce

// SyncReferral syncs one referral. force also replaces a simulated id.
func (c *Client) SyncReferral(ctx context.Context, id string, force bool) (*SyncOutcome, error) {
	return send[*SyncOutcome](ctx, c, http.MethodPost, "/salesforce/sync", nil,
		map[string]interface{}{"referral_id": id, "force": force})
}

func (c *Client) SyncAll(ctx context.Context, force bool) (*BulkSyncResult, error) {
	return send[*BulkSyncResult](ctx, c, http.MethodPost, "/salesforce/sync", nil,
		map[string]interface{}{"force": force})
}

func (c *Client) SalesforceStatus(ctx context.Context) (*SalesforceStatus, error) {
	return get[*SalesforceStatus](ctx, c, "/salesforce/status", nil)
}

// TestSalesforce runs a connection test, with settings when non-nil.
func (c *Client) TestSalesforce(ctx context.Context, settings *SalesforceSettings) (*SalesforceStatus, error) {
	var body interface{}
	if settings != nil {
		body = settings
	}
	return send[*SalesforceStatus](ctx, c, http.MethodPost, "/salesforce/test", nil, body)
}

// System

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.Do(ctx, http.MethodGet, "/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Status(ctx context.Context) (*ServerStatus, error) {
	return get[*ServerStatus](ctx, c, "/status", nil)
}

func (c *Client) Config(ctx context.Context) (map[string]interface{}, error) {
	return get[map[string]interface{}](ctx, c, "/config", nil)
}
