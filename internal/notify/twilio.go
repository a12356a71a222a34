// Package notify delivers outbound voice calls and SMS through the Twilio
// REST API. The client performs exactly one network call per invocation and
// never retries — retry policy, if any wanted, belongs to the caller.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hopoff/tripwatch/internal/domain"
)

// ErrMissingCredentials is returned when any of the credential triple
// (account SID, auth token, from-number) is absent. It is checked before
// any network I/O is attempted.
var ErrMissingCredentials = fmt.Errorf("%w: carrier credentials missing", domain.ErrConfiguration)

// CarrierError reports a request the carrier rejected: a non-2xx status or
// an error_message field in the response body, whichever surfaces first.
type CarrierError struct {
	StatusCode int
	Message    string
}

func (e *CarrierError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("carrier rejected request: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("carrier rejected request: status %d", e.StatusCode)
}

// Client talks to the Twilio API. The zero value is not usable; construct
// with NewClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the Twilio API origin. Tests point this at an
// httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient constructs a Twilio client with a bounded request timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.twilio.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// carrierResponse is the subset of the Twilio response body we inspect.
// Call creation reports failures in error_message; the messaging endpoint
// uses message.
type carrierResponse struct {
	SID          string `json:"sid"`
	ErrorMessage string `json:"error_message"`
	Message      string `json:"message"`
}

// Call places a voice call that speaks message to the recipient. It returns
// the carrier call SID on success.
//
// The TwiML payload is minimal: a single <Say> verb carrying the message.
func (c *Client) Call(ctx context.Context, settings domain.Settings, to, message string) (string, error) {
	if !settings.HasCarrier() {
		return "", fmt.Errorf("notify.Client.Call: %w", ErrMissingCredentials)
	}

	twiml := "<Response><Say>" + xmlEscape(message) + "</Say></Response>"
	form := url.Values{
		"To":    {to},
		"From":  {settings.FromNumber},
		"Twiml": {twiml},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, settings.AccountSID)
	resp, err := c.post(ctx, settings, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("notify.Client.Call: %w", err)
	}

	if resp.body.ErrorMessage != "" {
		return "", fmt.Errorf("notify.Client.Call: %w",
			&CarrierError{StatusCode: resp.status, Message: resp.body.ErrorMessage})
	}
	if resp.status < 200 || resp.status > 299 {
		return "", fmt.Errorf("notify.Client.Call: %w",
			&CarrierError{StatusCode: resp.status, Message: resp.body.Message})
	}
	return resp.body.SID, nil
}

// SendSMS sends a text message to the recipient and returns the carrier
// message SID on success.
func (c *Client) SendSMS(ctx context.Context, settings domain.Settings, to, message string) (string, error) {
	if !settings.HasCarrier() {
		return "", fmt.Errorf("notify.Client.SendSMS: %w", ErrMissingCredentials)
	}

	form := url.Values{
		"To":   {to},
		"From": {settings.FromNumber},
		"Body": {message},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, settings.AccountSID)
	resp, err := c.post(ctx, settings, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("notify.Client.SendSMS: %w", err)
	}

	if resp.status < 200 || resp.status > 299 || resp.body.ErrorMessage != "" {
		msg := resp.body.ErrorMessage
		if msg == "" {
			msg = resp.body.Message
		}
		return "", fmt.Errorf("notify.Client.SendSMS: %w",
			&CarrierError{StatusCode: resp.status, Message: msg})
	}
	return resp.body.SID, nil
}

type response struct {
	status int
	body   carrierResponse
}

// post issues one form-encoded request with HTTP basic auth over the
// credential pair and decodes the carrier response body.
func (c *Client) post(ctx context.Context, settings domain.Settings, endpoint string, form url.Values) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return response{}, err
	}
	req.SetBasicAuth(settings.AccountSID, settings.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	var body carrierResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return response{}, err
	}
	// The body is informative only on some error paths; tolerate non-JSON.
	if len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &body); jsonErr != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return response{}, fmt.Errorf("decode carrier response: %w", jsonErr)
		}
	}

	return response{status: resp.StatusCode, body: body}, nil
}

// xmlEscape escapes the message text for embedding in the TwiML <Say> verb.
func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
