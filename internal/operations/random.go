package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"metered-ledger-go/internal/ledger"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// ErrUpstream marks a failed or malformed response from the random string source.
var ErrUpstream = errors.New("random string upstream failure")

const maxRandomStringBody = 1 << 10

// RandomStringClient fetches one plain-text token per call.
type RandomStringClient struct {
	url        string
	httpClient http.Client
}

func NewRandomStringClient(url string, timeout time.Duration) (*RandomStringClient, error) {
	if url == "" {
		return nil, fmt.Errorf("random string url cannot be empty")
	}

	httpClient, err := createCustomHttpClient(timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &RandomStringClient{url: url, httpClient: httpClient}, nil
}

// newRandomStringClientWith uses a caller supplied client, e.g. an httptest server's.
func newRandomStringClientWith(url string, httpClient http.Client) *RandomStringClient {
	return &RandomStringClient{url: url, httpClient: httpClient}
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   5 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// Fetch returns the trimmed body, which must be exactly one non-empty token.
func (c *RandomStringClient) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("unable to build random string request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.L().Error("Random string request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close random string response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRandomStringBody))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Error("Random string source returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(body))))
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	token := strings.TrimSpace(string(body))
	if token == "" || len(strings.Fields(token)) != 1 {
		return "", fmt.Errorf("%w: expected a single token, got %q", ErrUpstream, token)
	}

	zap.L().Debug("Fetched random string", zap.Int("length", len(token)))
	return token, nil
}

// SideEffect adapts Fetch to the ledger's side effect signature.
func (c *RandomStringClient) SideEffect(ctx context.Context, _ []float64) (ledger.Outcome, error) {
	token, err := c.Fetch(ctx)
	if err != nil {
		return ledger.Outcome{}, err
	}
	return ledger.TextOutcome(token), nil
}
