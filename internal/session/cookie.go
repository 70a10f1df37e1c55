package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const CookieName = "pp_session"

// Session is the browser-side identity used across the processor redirect.
type Session struct {
	ID        string
	AccountID string
}

type cookieClaims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// Manager issues and reads the signed session cookie.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Start opens a new session for accountID and sets its cookie on w.
func (m *Manager) Start(w http.ResponseWriter, accountID string) (*Session, error) {
	s := &Session{ID: uuid.NewString(), AccountID: accountID}

	now := time.Now()
	claims := cookieClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Read returns internal.ErrSessionMissing when the request carries no valid session.
func (m *Manager) Read(r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, internal.ErrSessionMissing
	}

	var claims cookieClaims
	token, err := jwt.ParseWithClaims(c.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, internal.ErrSessionMissing
	}
	if claims.ID == "" || claims.AccountID == "" {
		return nil, internal.ErrSessionMissing
	}
	return &Session{ID: claims.ID, AccountID: claims.AccountID}, nil
}

// End expires the session cookie.
func (m *Manager) End(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

const (
	FlashCookieName = "pp_flash"
	flashTTL        = 5 * time.Minute
)

// Flash is a one-shot message for the next page the browser opens, such as the
// payment error view.
type Flash struct {
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

type flashClaims struct {
	Flash
	jwt.RegisteredClaims
}

// SetFlash signs f into a short-lived cookie.
func (m *Manager) SetFlash(w http.ResponseWriter, f Flash) error {
	now := time.Now()
	claims := flashClaims{
		Flash: f,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign flash: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(flashTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// TakeFlash returns the flash carried by r and expires its cookie. A missing,
// forged or expired flash yields nil.
func (m *Manager) TakeFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(FlashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	var claims flashClaims
	token, err := jwt.ParseWithClaims(c.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	f := claims.Flash
	return &f
}
