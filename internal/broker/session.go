// Package broker speaks the spread-bet REST API: session management,
// historical prices, order placement and stop modification.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/exception"
)

// sessions expire server-side after 30 minutes; refresh two minutes
// before that.
const defaultRefreshAfter = 28 * time.Minute

// Credentials is the credential set exchanged for session tokens.
type Credentials struct {
	Identifier string
	Password   string
	APIKey     string
}

// Session is the authenticated handle: the two security tokens every
// subsequent request carries, plus the issuance time driving refresh.
type Session struct {
	CST           string
	SecurityToken string
	IssuedAt      time.Time
}

// SessionManager owns the single live session. Get is safe to call from
// the scheduler and any number of trailing-stop monitors concurrently;
// authentication attempts are serialized and concurrent callers during a
// refresh block until the in-flight exchange finishes.
type SessionManager struct {
	baseURL string
	creds   Credentials
	http    *http.Client

	refreshAfter time.Duration
	now          func() time.Time

	mu  sync.Mutex
	cur *Session
}

// NewSessionManager creates a manager. client may be nil for the default
// 10s-timeout HTTP client.
func NewSessionManager(baseURL string, creds Credentials, client *http.Client) *SessionManager {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SessionManager{
		baseURL:      baseURL,
		creds:        creds,
		http:         client,
		refreshAfter: defaultRefreshAfter,
		now:          time.Now,
	}
}

// Get returns a session younger than the refresh interval, performing a
// credential exchange when none exists or the cached one is stale.
func (m *SessionManager) Get(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil && m.now().Sub(m.cur.IssuedAt) <= m.refreshAfter {
		return m.cur, nil
	}
	return m.authenticateLocked(ctx)
}

// Refresh discards the current session and performs a new credential
// exchange. Used after a request-level authorization failure.
func (m *SessionManager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur = nil
	return m.authenticateLocked(ctx)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	AccountInfo struct {
		AccountType string `json:"accountType"`
	} `json:"accountInfo"`
}

func (m *SessionManager) authenticateLocked(ctx context.Context) (*Session, error) {
	body, err := json.Marshal(loginRequest{Identifier: m.creds.Identifier, Password: m.creds.Password})
	if err != nil {
		return nil, errors.Wrap(err, "marshal login payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/session", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build login request")
	}
	req.Header.Set("X-IG-API-KEY", m.creds.APIKey)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("VERSION", "3")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "credential exchange")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.Wrapf(exception.ErrAuthRejected, "status: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return nil, errors.Errorf("credential exchange, status: %d", resp.StatusCode)
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "decode login response")
	}
	// The demo endpoint sometimes omits accountType, so only a present and
	// wrong value is rejected.
	if t := parsed.AccountInfo.AccountType; t != "" && t != "SPREADBET" {
		return nil, errors.Wrapf(exception.ErrAuthRejected, "wrong account type: %s", t)
	}

	s := &Session{
		CST:           resp.Header.Get("CST"),
		SecurityToken: resp.Header.Get("X-SECURITY-TOKEN"),
		IssuedAt:      m.now(),
	}
	m.cur = s
	logs.Info("authenticated broker session")
	return s, nil
}
