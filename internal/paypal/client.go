package paypal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	SandboxBaseURL = "https://api.sandbox.paypal.com"
	LiveBaseURL    = "https://api.paypal.com"

	tokenPath   = "/v1/oauth2/token"
	paymentPath = "/v1/payments/payment"

	// refresh a little before PayPal's stated expiry
	tokenExpirySkew = 60 * time.Second
)

type ClientConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client is a minimal PayPal REST v1 payments client.
type Client struct {
	http         *resty.Client
	clientID     string
	clientSecret string
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:         httpClient,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		logger:       logger,
		now:          time.Now,
	}
}

func (c *Client) CreatePayment(ctx context.Context, p *Payment) (*Payment, error) {
	var created Payment
	if err := c.do(ctx, http.MethodPost, paymentPath, p, &created); err != nil {
		return nil, err
	}
	c.logger.Info("paypal payment created", "payment_id", created.ID, "state", created.State)
	return &created, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodGet, paymentPath+"/"+paymentID, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ExecutePayment(ctx context.Context, paymentID string, exec PaymentExecution) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, paymentPath+"/"+paymentID+"/execute", exec, &p); err != nil {
		return nil, err
	}
	c.logger.Info("paypal payment executed", "payment_id", p.ID, "state", p.State)
	return &p, nil
}

// do sends an authenticated JSON request. A non-2xx reply is returned as *APIError;
// anything that prevented a reply is returned wrapped.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			c.invalidateToken()
		}
		return apiErr
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	var tok tokenResponse
	var oerr oauthError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tok).
		SetError(&oerr).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{
			StatusCode: resp.StatusCode(),
			Name:       oerr.Error,
			Message:    oerr.ErrorDescription,
		}
	}

	ttl := time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySkew
	if ttl <= 0 {
		ttl = time.Duration(tok.ExpiresIn) * time.Second
	}
	c.accessToken = tok.AccessToken
	c.expiresAt = c.now().Add(ttl)
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}
