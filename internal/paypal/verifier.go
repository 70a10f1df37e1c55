package paypal

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	verifyCommand  = "_notify-validate"
	verifiedToken  = "VERIFIED"
	DefaultIPNURL  = "https://www.paypal.com/cgi-bin/webscr"
	defaultTimeout = 30 * time.Second
)

// Verifier echoes notifications back to the processor to prove they came from it.
type Verifier struct {
	http   *resty.Client
	url    string
	logger *slog.Logger
}

func NewVerifier(verifyURL string, timeout time.Duration, logger *slog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "paypal-activation-ipn/1.0")
	return NewVerifierWithClient(client, verifyURL, logger)
}

func NewVerifierWithClient(client *resty.Client, verifyURL string, logger *slog.Logger) *Verifier {
	if verifyURL == "" {
		verifyURL = DefaultIPNURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{http: client, url: verifyURL, logger: logger}
}

// Verify reports whether the processor acknowledges fields as a genuine notification.
// Only the exact body VERIFIED is a yes. Transport failures and non-2xx responses are
// returned as errors so the delivery is not acknowledged and the processor resends it.
func (v *Verifier) Verify(ctx context.Context, fields []Field) (bool, error) {
	resp, err := v.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Connection", "close").
		SetBody(EncodeVerification(fields)).
		Post(v.url)
	if err != nil {
		return false, fmt.Errorf("ipn verification request failed: %w", err)
	}

	if !resp.IsSuccess() {
		return false, fmt.Errorf("ipn verification endpoint returned status %d", resp.StatusCode())
	}

	body := resp.String()
	if body != verifiedToken {
		v.logger.Warn("ipn not verified",
			"status_code", resp.StatusCode(),
			"response", truncate(body, 32))
		return false, nil
	}
	return true, nil
}

// EncodeVerification renders cmd=_notify-validate followed by fields, in order.
func EncodeVerification(fields []Field) string {
	return EncodeFields(append([]Field{{Name: "cmd", Value: verifyCommand}}, fields...))
}

// EncodeFields form-encodes fields without reordering them.
func EncodeFields(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// IsVerificationCommand reports whether f is the command field EncodeVerification adds.
func IsVerificationCommand(f Field) bool {
	return f.Name == "cmd" && f.Value == verifyCommand
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
