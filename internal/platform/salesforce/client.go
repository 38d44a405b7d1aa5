package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIVersion is the Salesforce API version used for SOAP login and REST calls.
const DefaultAPIVersion = "59.0"

// UserInfo identifies the logged-in user and org of a live session.
type UserInfo struct {
	UserID         string `json:"id"`
	OrganizationID string `json:"organizationId"`
	UserName       string `json:"userName,omitempty"`
	FullName       string `json:"userFullName,omitempty"`
}

// QueryResult is the decoded body of a SOQL query.
type QueryResult struct {
	TotalSize int              `json:"totalSize"`
	Done      bool             `json:"done"`
	Records   []map[string]any `json:"records"`
}

// Session is an authenticated connection to one org.
type Session interface {
	UserInfo() UserInfo
	Create(ctx context.Context, sobject string, fields map[string]any) (string, error)
	Query(ctx context.Context, soql string) (*QueryResult, error)
}

// Connector opens sessions.
type Connector interface {
	Login(ctx context.Context, creds CredentialSet) (Session, error)
}

// ConnectorOption configures an HTTPConnector.
type ConnectorOption func(*HTTPConnector)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) ConnectorOption {
	return func(h *HTTPConnector) { h.httpClient = c }
}

// WithAPIVersion sets the API version, e.g. "59.0".
func WithAPIVersion(v string) ConnectorOption {
	return func(h *HTTPConnector) {
		if v != "" {
			h.apiVersion = v
		}
	}
}

// HTTPConnector logs in with the SOAP partner API and talks REST afterwards.
type HTTPConnector struct {
	httpClient *http.Client
	apiVersion string
}

func NewHTTPConnector(opts ...ConnectorOption) *HTTPConnector {
	c := &HTTPConnector{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiVersion: DefaultAPIVersion,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const loginEnvelope = `<?xml version="1.0" encoding="utf-8" ?>
<env:Envelope xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
<env:Body><n1:login xmlns:n1="urn:partner.soap.sforce.com"><n1:username>%s</n1:username><n1:password>%s</n1:password></n1:login></env:Body>
</env:Envelope>`

type loginResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		LoginResponse *struct {
			Result struct {
				ServerURL string `xml:"serverUrl"`
				SessionID string `xml:"sessionId"`
				UserID    string `xml:"userId"`
				UserInfo  struct {
					OrganizationID string `xml:"organizationId"`
					UserName       string `xml:"userName"`
					UserFullName   string `xml:"userFullName"`
				} `xml:"userInfo"`
			} `xml:"result"`
		} `xml:"loginResponse"`
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Login authenticates with username and password+security token.
func (h *HTTPConnector) Login(ctx context.Context, creds CredentialSet) (Session, error) {
	endpoint := strings.TrimRight(creds.LoginURL, "/") + "/services/Soap/u/" + h.apiVersion
	body := fmt.Sprintf(loginEnvelope, xmlEscape(creds.Username), xmlEscape(creds.LoginPassword()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "login")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salesforce login: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}

	var parsed loginResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, &RemoteAuthError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Message: "unreadable login response"}
	}
	if f := parsed.Body.Fault; f != nil {
		return nil, &RemoteAuthError{Code: f.Code, Message: f.String}
	}
	lr := parsed.Body.LoginResponse
	if lr == nil || lr.Result.SessionID == "" {
		return nil, &RemoteAuthError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Message: "login response carried no session"}
	}

	server, err := url.Parse(lr.Result.ServerURL)
	if err != nil || server.Host == "" {
		return nil, &RemoteAuthError{Message: "invalid serverUrl in login response"}
	}

	return &restSession{
		httpClient:  h.httpClient,
		instanceURL: server.Scheme + "://" + server.Host,
		apiVersion:  h.apiVersion,
		token:       lr.Result.SessionID,
		info: UserInfo{
			UserID:         lr.Result.UserID,
			OrganizationID: lr.Result.UserInfo.OrganizationID,
			UserName:       lr.Result.UserInfo.UserName,
			FullName:       lr.Result.UserInfo.UserFullName,
		},
	}, nil
}

type restSession struct {
	httpClient  *http.Client
	instanceURL string
	apiVersion  string
	token       string
	info        UserInfo
}

func (s *restSession) UserInfo() UserInfo { return s.info }

func (s *restSession) dataURL(path string) string {
	return s.instanceURL + "/services/data/v" + s.apiVersion + path
}

type apiError struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

type createResponse struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
}

func (s *restSession) do(ctx context.Context, method, rawURL string, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		msg := "session expired or invalid"
		if errs := decodeErrors(raw); len(errs) > 0 {
			return resp, raw, &RemoteAuthError{Code: errs[0].ErrorCode, Message: errs[0].Message}
		}
		return resp, raw, &RemoteAuthError{Code: "INVALID_SESSION_ID", Message: msg}
	}
	return resp, raw, nil
}

func decodeErrors(raw []byte) []apiError {
	var errs []apiError
	if err := json.Unmarshal(raw, &errs); err != nil {
		return nil
	}
	return errs
}

func messages(errs []apiError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.ErrorCode != "" {
			out = append(out, e.ErrorCode+": "+e.Message)
		} else {
			out = append(out, e.Message)
		}
	}
	return out
}

// Create inserts one record and returns its id.
func (s *restSession) Create(ctx context.Context, sobject string, fields map[string]any) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", sobject, err)
	}

	resp, raw, err := s.do(ctx, http.MethodPost, s.dataURL("/sobjects/"+sobject+"/"), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var cr createResponse
		if err := json.Unmarshal(raw, &cr); err != nil {
			return "", fmt.Errorf("decode create response: %w", err)
		}
		if !cr.Success {
			return "", &RemoteCreateError{Errors: messages(cr.Errors)}
		}
		return cr.ID, nil
	}

	if errs := decodeErrors(raw); len(errs) > 0 {
		return "", &RemoteCreateError{Errors: messages(errs)}
	}
	return "", &RemoteCreateError{Errors: []string{fmt.Sprintf("HTTP %d", resp.StatusCode)}}
}

// Query runs a SOQL query and returns the first page of records.
func (s *restSession) Query(ctx context.Context, soql string) (*QueryResult, error) {
	resp, raw, err := s.do(ctx, http.MethodGet, s.dataURL("/query?q="+url.QueryEscape(soql)), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if errs := decodeErrors(raw); len(errs) > 0 {
			return nil, fmt.Errorf("salesforce query failed: %s", strings.Join(messages(errs), ", "))
		}
		return nil, fmt.Errorf("salesforce query failed: HTTP %d", resp.StatusCode)
	}

	var qr QueryResult
	if err := json.Unmarshal(raw, &qr); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return &qr, nil
}
