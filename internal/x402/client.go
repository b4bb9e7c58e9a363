// ABOUTME: Payment-capped HTTP client signing requests with a wallet-session key
// ABOUTME: Tracks per-UTC-day USDC spend and refuses calls past the budget

package x402

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/x402labs/snipevault/internal/session"
)

// Response headers set by x402 facilitators.
const (
	headerSigner    = "X-Payment-Signer"
	headerSignature = "X-Payment-Signature"
	headerNetwork   = "X-Payment-Network"
	headerAmount    = "X-Payment-Amount-Usdc"
)

// ErrBudgetExceeded is returned when a request would pass the daily cap.
var ErrBudgetExceeded = errors.New("daily payment budget exceeded")

// TransportError wraps a network-level failure.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PaymentError reports a payment-level refusal: an HTTP 402 from the server
// or a local budget refusal.
type PaymentError struct {
	URL    string
	Status int
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("payment required for %s (HTTP %d)", e.URL, e.Status)
	}
	return fmt.Sprintf("payment refused for %s: %v", e.URL, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// Client performs metered requests against paid endpoints. It owns its
// session key and zeroes it on Close. Safe for concurrent use.
type Client struct {
	httpClient    *http.Client
	key           *session.SessionKey
	pubkey        string
	network       string
	maxUSDCPerDay float64
	logger        *slog.Logger

	mu    sync.Mutex
	day   string
	spent float64
}

// New builds a client around an existing session key. The client takes
// ownership of the key. The network is derived from the RPC URL the way
// wallet tooling does: devnet endpoints pay in devnet USDC.
func New(key *session.SessionKey, rpcURL string, maxUSDCPerDay float64) (*Client, error) {
	pubkey, err := key.Pubkey()
	if err != nil {
		return nil, err
	}

	network := "solana"
	if strings.Contains(rpcURL, "devnet") {
		network = "solana-devnet"
	}

	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		key:           key,
		pubkey:        pubkey,
		network:       network,
		maxUSDCPerDay: maxUSDCPerDay,
		logger:        slog.Default().With("component", "x402"),
	}, nil
}

// FromSession builds a client from raw session-key bytes, e.g. the unsealed
// key material of a stored wallet session. The input slice may be wiped by
// the caller afterwards.
func FromSession(sessionKey []byte, rpcURL string, maxUSDCPerDay float64) (*Client, error) {
	key, err := session.FromBytes(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session key: %w", err)
	}
	return New(key, rpcURL, maxUSDCPerDay)
}

// Get performs a metered GET.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, "", nil)
}

// Post performs a metered POST with an empty body.
func (c *Client) Post(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, url, "", nil)
}

// PostJSON performs a metered POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, "application/json", payload)
}

// DailySpent returns the USDC spent in the current UTC day's window.
func (c *Client) DailySpent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollWindowLocked()
	return c.spent
}

// Close zeroes the client's session key. The client is unusable afterwards.
func (c *Client) Close() {
	c.key.Zero()
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	if err := c.checkBudget(url); err != nil {
		return nil, err
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.signRequest(req, body); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		resp.Body.Close()
		return nil, &PaymentError{URL: url, Status: resp.StatusCode}
	}

	c.recordSpend(resp)
	return resp, nil
}

// signRequest attaches the session signature: the signer pubkey, the
// network, and an ed25519 signature over method, URL and body.
func (c *Client) signRequest(req *http.Request, body []byte) error {
	msg := append([]byte(req.Method+" "+req.URL.String()+"\n"), body...)
	sig, err := c.key.Sign(msg)
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	req.Header.Set(headerSigner, c.pubkey)
	req.Header.Set(headerNetwork, c.network)
	req.Header.Set(headerSignature, base64.StdEncoding.EncodeToString(sig))
	return nil
}

func (c *Client) checkBudget(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollWindowLocked()
	if c.spent >= c.maxUSDCPerDay {
		return &PaymentError{URL: url, Err: ErrBudgetExceeded}
	}
	return nil
}

// recordSpend folds the facilitator's reported charge into today's window.
func (c *Client) recordSpend(resp *http.Response) {
	amount := resp.Header.Get(headerAmount)
	if amount == "" {
		return
	}
	usdc, err := strconv.ParseFloat(amount, 64)
	if err != nil || usdc <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollWindowLocked()
	c.spent += usdc
	c.logger.Debug("payment recorded", "usdc", usdc, "daily_spent", c.spent)
}

// rollWindowLocked resets the spend counter when the UTC day changes.
func (c *Client) rollWindowLocked() {
	today := time.Now().UTC().Format("2006-01-02")
	if c.day != today {
		c.day = today
		c.spent = 0
	}
}
