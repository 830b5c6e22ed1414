package adminsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the unauthenticated admin endpoints and creates Sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a 10 second request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Login exchanges username, password and TOTP code for a session.
func (c *Client) Login(ctx context.Context, username, password, code string) (*Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("code", code)

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/login", strings.NewReader(form.Encode()), formHeaders)
	if err != nil {
		return nil, err
	}

	var lr LoginResponse
	if err := decodeJSON(resp, &lr, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, lr), nil
}

// RedeemInvitation creates an identity from an invitation token. This is a
// public endpoint.
func (c *Client) RedeemInvitation(ctx context.Context, token, username, password string) (*RedeemResponse, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("username", username)
	form.Set("password", password)

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/invites/redeem", strings.NewReader(form.Encode()), formHeaders)
	if err != nil {
		return nil, err
	}

	var rr RedeemResponse
	if err := decodeJSON(resp, &rr, http.StatusCreated); err != nil {
		return nil, err
	}
	return &rr, nil
}

// Liveness calls GET /livez.
func (c *Client) Liveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// Readiness calls GET /readyz. A degraded service returns an *APIError with
// status 503.
func (c *Client) Readiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var hr HealthResponse
	if err := decodeJSON(resp, &hr, http.StatusOK); err != nil {
		return nil, err
	}
	return &hr, nil
}
