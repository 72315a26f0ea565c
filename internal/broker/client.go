package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/exception"
	"main/internal/model"
)

// Client performs authenticated REST calls. Session acquisition is
// delegated to the SessionManager; request-level 401s surface as
// exception.ErrUnauthorized so the caller can force a refresh.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	sessions *SessionManager
}

// NewClient creates a REST client. httpClient may be nil for the default
// 10s-timeout client.
func NewClient(baseURL, apiKey string, sessions *SessionManager, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     httpClient,
		sessions: sessions,
	}
}

// Sessions exposes the session manager for callers that need to force a
// refresh after an unauthorized response.
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

type pricesResponse struct {
	// Some broker gateway versions name the array "prices", others
	// "candles". Both are accepted; the first non-empty one wins.
	Prices  []model.Candle `json:"prices"`
	Candles []model.Candle `json:"candles"`
}

func (r pricesResponse) series() []model.Candle {
	if len(r.Prices) > 0 {
		return r.Prices
	}
	return r.Candles
}

// Prices fetches up to max historical bars for the instrument at the
// given resolution, oldest first. A single attempt; the market-data cache
// owns retries and backoff.
func (c *Client) Prices(ctx context.Context, epic string, tf model.Timeframe, max int) ([]model.Candle, error) {
	if !tf.Valid() {
		return nil, errors.Wrapf(exception.ErrBadDataRequest, "invalid resolution: %s", tf)
	}

	endpoint := fmt.Sprintf("%s/prices/%s/HISTORICAL/%s?%s",
		c.baseURL, url.PathEscape(epic), tf, url.Values{"max": {fmt.Sprint(max)}}.Encode())

	var parsed pricesResponse
	if err := c.get(ctx, endpoint, &parsed); err != nil {
		return nil, errors.Wrap(err, "fetch prices").With("epic", epic).With("resolution", tf)
	}
	return parsed.series(), nil
}

// PriorDaily returns the previous session's high and low from the last
// two daily bars. ok is false when fewer than two exist.
func (c *Client) PriorDaily(ctx context.Context, epic string) (high, low float64, ok bool, err error) {
	bars, err := c.Prices(ctx, epic, model.TimeframeDaily, 2)
	if err != nil {
		return 0, 0, false, err
	}
	if len(bars) < 2 {
		return 0, 0, false, nil
	}
	prior := bars[len(bars)-2]
	return prior.High, prior.Low, true, nil
}

// OrderRequest is a market order with protective levels attached.
type OrderRequest struct {
	Epic          string  `json:"epic"`
	Direction     string  `json:"direction"`
	Size          float64 `json:"size"`
	OrderType     string  `json:"orderType"`
	StopLevel     float64 `json:"stopLevel"`
	LimitLevel    float64 `json:"limitLevel"`
	DealReference string  `json:"dealReference,omitempty"`
}

type orderResponse struct {
	DealReference string `json:"dealReference"`
}

// PlaceOrder submits a market order and returns the broker's deal
// reference for the opened position.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	var parsed orderResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/positions/otc", req, &parsed); err != nil {
		return "", errors.Wrap(err, "place order").With("epic", req.Epic)
	}
	return parsed.DealReference, nil
}

type stopUpdateRequest struct {
	DealReference string  `json:"dealReference"`
	StopLevel     float64 `json:"stopLevel"`
}

// UpdateStop moves the protective stop of an open position.
func (c *Client) UpdateStop(ctx context.Context, dealRef string, stop float64) error {
	endpoint := c.baseURL + "/positions/" + url.PathEscape(dealRef)
	if err := c.do(ctx, http.MethodPut, endpoint, stopUpdateRequest{DealReference: dealRef, StopLevel: stop}, nil); err != nil {
		return errors.Wrap(err, "update stop").With("dealRef", dealRef)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	session, err := c.sessions.Get(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "marshal payload")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("X-IG-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("VERSION", "3")
	req.Header.Set("CST", session.CST)
	req.Header.Set("X-SECURITY-TOKEN", session.SecurityToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.Wrapf(exception.ErrUnauthorized, "%s %s", method, endpoint)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(exception.ErrBadDataRequest, "status: %d, body: %s", resp.StatusCode, detail)
	case resp.StatusCode >= 300:
		return errors.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
