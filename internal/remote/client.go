package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
)

// HTTPClient talks to the custodial backend over JSON/HTTP with retry on 429.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewHTTPClient creates a backend client. timeout bounds each individual attempt.
func NewHTTPClient(baseURL, token string, timeout time.Duration, maxRetries int, baseDelay time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// CreateWallet asks the backend to generate a wallet and returns its key material.
func (c *HTTPClient) CreateWallet(ctx context.Context, label string) (domain.WalletKeyMaterial, error) {
	var out domain.WalletKeyMaterial
	if err := c.doJSON(ctx, http.MethodPost, "/wallet/create", map[string]string{"label": label}, &out); err != nil {
		return domain.WalletKeyMaterial{}, err
	}
	return out, nil
}

// ExecuteSwap submits a swap and returns the on-chain transaction hash.
func (c *HTTPClient) ExecuteSwap(ctx context.Context, req SwapRequest) (SwapReceipt, error) {
	var out SwapReceipt
	if err := c.doJSON(ctx, http.MethodPost, "/wallet/swap", req, &out); err != nil {
		return SwapReceipt{}, err
	}
	if out.ExternalTxHash == "" {
		return SwapReceipt{}, fmt.Errorf("%w: swap response carried no transaction hash", ErrNetwork)
	}
	return out, nil
}

// FetchOnChainBalance reads the live balance of one token for an address.
func (c *HTTPClient) FetchOnChainBalance(ctx context.Context, tokenID, walletAddress string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("token", tokenID)
	q.Set("address", walletAddress)

	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/wallet/balance?"+q.Encode(), nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}

// do performs a request with retry on 429. Any other failure is ErrNetwork.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	target := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: executing request: %v", ErrNetwork, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w: HTTP 429 at %s (attempt %d/%d)", ErrNetwork, path, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("%w: HTTP %d from %s: %s", ErrNetwork, resp.StatusCode, path, string(respBody))
	}

	return nil, lastErr
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, dest any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}
	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: parsing JSON from %s: %v", ErrNetwork, path, err)
	}
	return nil
}
