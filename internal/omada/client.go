package omada

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/guestwifi/guestgate/errors"
)

// Session cookie names used by different Omada controller generations.
var sessionCookieNames = []string{"TPOMADA_SESSIONID", "TPEAP_SESSIONID"}

// Application error codes at or above this value signal transient,
// server-side conditions that the controller reports inside a 200-level
// HTTP response. They are retried like a 5xx.
const transientErrorCodeFloor = 5000

// defaultBackoff is the retry schedule for transient failures.
var defaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}

// APIError is a permanent controller failure: an HTTP client error or a
// non-transient application error code. It is never retried.
type APIError struct {
	Status  int // HTTP status, 0 when the failure is application-level
	Code    int // Omada errorCode, 0 when the failure is transport-level
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("omada: client error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("omada: error %d: %s", e.Code, e.Message)
}

// ClientConfig configures a controller client.
type ClientConfig struct {
	BaseURL      string
	ControllerID string
	Username     string
	Password     string
	VerifyTLS    bool
	Timeout      time.Duration   // per-call HTTP timeout, default 10s
	MaxAttempts  int             // default 4
	Backoff      []time.Duration // default 1s, 2s, 4s, 8s
}

// Client is an authenticated HTTP client for the Omada controller's hotspot
// API. Login exchanges operator credentials for a CSRF token and a session
// cookie; both are attached to every subsequent call. The client holds one
// session and does not re-login when it expires: a 401-class response after
// the initial login is fatal for this instance and the caller must create a
// new one.
type Client struct {
	baseURL      string
	controllerID string
	username     string
	password     string
	maxAttempts  int
	backoff      []time.Duration
	httpClient   *http.Client

	mu            sync.Mutex
	csrfToken     string
	sessionCookie *http.Cookie
}

// NewClient creates a controller client. The client authenticates lazily on
// first use.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	backoff := cfg.Backoff
	if len(backoff) == 0 {
		backoff = defaultBackoff
	}

	transport := http.DefaultTransport
	if !cfg.VerifyTLS {
		// Self-signed controller certificates are common on LAN deployments.
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		controllerID: cfg.ControllerID,
		username:     cfg.Username,
		password:     cfg.Password,
		maxAttempts:  maxAttempts,
		backoff:      backoff,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Response is the Omada envelope common to all hotspot API responses.
type Response struct {
	ErrorCode int             `json:"errorCode"`
	Msg       string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

// Login authenticates with the controller and captures the CSRF token and
// session cookie. Authentication failure is never retried.
func (c *Client) Login(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s/api/v2/hotspot/login", c.baseURL, c.controllerID)
	body, err := json.Marshal(map[string]string{"name": c.username, "password": c.password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewAuthentication(fmt.Sprintf("connection error during login: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewAuthentication(fmt.Sprintf("login failed with HTTP %d", resp.StatusCode))
	}

	var envelope struct {
		ErrorCode int    `json:"errorCode"`
		Msg       string `json:"msg"`
		Result    struct {
			Token string `json:"token"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.NewAuthentication(fmt.Sprintf("malformed login response: %v", err))
	}
	if envelope.ErrorCode != 0 {
		return errors.NewAuthentication(fmt.Sprintf("login rejected: %s", envelope.Msg))
	}
	if envelope.Result.Token == "" {
		return errors.NewAuthentication("CSRF token not found in login response")
	}

	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		for _, name := range sessionCookieNames {
			if cookie.Name == name {
				sessionCookie = cookie
			}
		}
	}
	if sessionCookie == nil {
		return errors.NewAuthentication("session cookie not found in login response")
	}

	c.mu.Lock()
	c.csrfToken = envelope.Result.Token
	c.sessionCookie = sessionCookie
	c.mu.Unlock()

	log.Debug().Str("controller", c.controllerID).Msg("omada login succeeded")
	return nil
}

// ensureSession performs the initial login if it has not happened yet.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	authenticated := c.csrfToken != ""
	c.mu.Unlock()
	if authenticated {
		return nil
	}
	return c.Login(ctx)
}

// PostWithRetry issues an authenticated POST and retries transient failures
// with exponential backoff. HTTP 4xx responses and permanent application
// error codes fail immediately; 5xx responses, connection errors, timeouts
// and transient application error codes are retried up to the attempt bound.
func (c *Client) PostWithRetry(ctx context.Context, endpoint string, payload any) (*Response, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + endpoint

	var lastFailure string
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoffFor(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, retryable, err := c.postOnce(ctx, url, body)
		if err == nil && resp != nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastFailure = err.Error()
		log.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Int("max_attempts", c.maxAttempts).
			Str("cause", lastFailure).
			Msg("omada call failed, will retry")
	}

	return nil, errors.NewRetryExhausted(
		fmt.Sprintf("omada %s failed after %d attempts: %s", endpoint, c.maxAttempts, lastFailure))
}

// postOnce performs a single authenticated POST. The second return value
// reports whether the failure is retryable.
func (c *Client) postOnce(ctx context.Context, url string, body []byte) (*Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	req.Header.Set("Csrf-Token", c.csrfToken)
	if c.sessionCookie != nil {
		req.AddCookie(c.sessionCookie)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection failures and timeouts are transient.
		return nil, true, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Session expired or rejected after login; fatal for this client.
		return nil, false, errors.NewAuthentication(
			fmt.Sprintf("controller rejected session with HTTP %d", resp.StatusCode))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, &APIError{
			Status:  resp.StatusCode,
			Message: readErrorMessage(resp.Body),
		}
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: HTTP %d", resp.StatusCode)
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, true, fmt.Errorf("malformed response: %w", err)
	}
	if envelope.ErrorCode != 0 {
		if envelope.ErrorCode >= transientErrorCodeFloor {
			return nil, true, fmt.Errorf("transient controller error %d: %s", envelope.ErrorCode, envelope.Msg)
		}
		return nil, false, &APIError{Code: envelope.ErrorCode, Message: envelope.Msg}
	}

	return &envelope, false, nil
}

func (c *Client) backoffFor(i int) time.Duration {
	if i >= len(c.backoff) {
		return c.backoff[len(c.backoff)-1]
	}
	return c.backoff[i]
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func readErrorMessage(r io.Reader) string {
	var envelope Response
	if err := json.NewDecoder(r).Decode(&envelope); err == nil && envelope.Msg != "" {
		return envelope.Msg
	}
	return "unknown error"
}
