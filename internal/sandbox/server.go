package sandbox

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"

	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/internal/transport"
)

const (
	// DeclinePayerID makes execute fail with CREDIT_CARD_REFUSED.
	DeclinePayerID = "DECLINE"

	StateCreated  = "created"
	StateApproved = "approved"

	tokenTTL = 8 * time.Hour
)

// Enqueuer hands a notification to the delivery pool.
type Enqueuer interface {
	Enqueue(paymentID string, fields []paypal.Field) error
}

// Authenticity answers the listener's verification echo.
type Authenticity interface {
	Genuine(fields []paypal.Field) bool
}

type ServerConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReceiverMail string
}

// Server imitates the slice of the PayPal REST and IPN surfaces the activation
// service talks to, for local runs and end-to-end tests.
type Server struct {
	*transport.BaseHandler
	config   ServerConfig
	ipn      Enqueuer
	verifier Authenticity
	newID    func() string

	mu       sync.Mutex
	tokens   map[string]time.Time
	payments map[string]*paypal.Payment
	now      func() time.Time
}

func NewServer(config ServerConfig, ipn Enqueuer, verifier Authenticity, logger *slog.Logger) (*Server, error) {
	newID, err := nanoid.Standard(17)
	if err != nil {
		return nil, err
	}
	if config.ReceiverMail == "" {
		config.ReceiverMail = "merchant@example.com"
	}
	return &Server{
		BaseHandler: transport.NewBaseHandler(logger),
		config:      config,
		ipn:         ipn,
		verifier:    verifier,
		newID:       newID,
		tokens:      make(map[string]time.Time),
		payments:    make(map[string]*paypal.Payment),
		now:         time.Now,
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/oauth2/token", s.issueToken)
	r.Route("/v1/payments/payment", func(pr chi.Router) {
		pr.Use(s.requireToken)
		pr.Post("/", s.createPayment)
		pr.Get("/{id}", s.getPayment)
		pr.Post("/{id}/execute", s.executePayment)
	})
	r.Get("/sandbox/approve", s.approve)
	r.Post("/cgi-bin/webscr", s.verify)
	return r
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != s.config.ClientID || secret != s.config.ClientSecret {
		s.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_client",
			"error_description": "Client Authentication failed",
		})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		s.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "unsupported_grant_type",
			"error_description": "Grant Type is NULL",
		})
		return
	}

	token := "A21AA" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.tokens[token] = s.now().Add(tokenTTL)
	s.mu.Unlock()

	s.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int64(tokenTTL.Seconds()),
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.ExtractTokenFromHeader(r)
		s.mu.Lock()
		expiresAt, ok := s.tokens[token]
		s.mu.Unlock()
		if token == "" || !ok || s.now().After(expiresAt) {
			s.writeAPIError(w, http.StatusUnauthorized, "AUTHENTICATION_FAILURE", "Authentication failed due to invalid authentication credentials.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var p paypal.Payment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeAPIError(w, http.StatusBadRequest, "MALFORMED_REQUEST", "Incoming JSON request does not map to API request")
		return
	}
	if err := validatePayment(&p); err != nil {
		s.writeAPIError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	p.ID = "PAY-" + s.newID()
	p.State = StateCreated
	p.CreateTime = s.now().UTC().Format(time.RFC3339)
	p.Links = s.links(p.ID)

	s.mu.Lock()
	stored := clonePayment(&p)
	s.payments[p.ID] = &stored
	s.mu.Unlock()

	s.Logger.Info("sandbox payment created", "payment_id", p.ID)
	s.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	p, ok := s.payments[id]
	var snapshot paypal.Payment
	if ok {
		snapshot = clonePayment(p)
	}
	s.mu.Unlock()

	if !ok {
		s.writeAPIError(w, http.StatusNotFound, "INVALID_RESOURCE_ID", "Requested resource ID was not found.")
		return
	}
	s.WriteJSON(w, http.StatusOK, snapshot)
}

func (s *Server) executePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var exec paypal.PaymentExecution
	if err := json.NewDecoder(r.Body).Decode(&exec); err != nil || exec.PayerID == "" {
		s.writeAPIError(w, http.StatusBadRequest, "INVALID_PAYER_ID", "Payer ID is invalid")
		return
	}

	s.mu.Lock()
	p, ok := s.payments[id]
	if !ok {
		s.mu.Unlock()
		s.writeAPIError(w, http.StatusNotFound, "INVALID_RESOURCE_ID", "Requested resource ID was not found.")
		return
	}
	if p.State != StateCreated {
		s.mu.Unlock()
		s.writeAPIError(w, http.StatusBadRequest, "PAYMENT_STATE_INVALID", "This request is invalid due to the current state of the payment")
		return
	}
	if exec.PayerID == DeclinePayerID {
		s.mu.Unlock()
		s.writeAPIError(w, http.StatusBadRequest, "CREDIT_CARD_REFUSED", "Credit card was refused")
		return
	}

	sale := &paypal.Sale{ID: s.newID(), State: paypal.SaleStateCompleted, ParentPayment: p.ID}
	p.State = StateApproved
	p.Payer.Status = "VERIFIED"
	p.Payer.PayerInfo = &paypal.PayerInfo{PayerID: exec.PayerID, Email: "buyer@example.com"}
	if len(p.Transactions) > 0 {
		p.Transactions[0].RelatedResources = []paypal.RelatedResource{{Sale: sale}}
	}
	snapshot := clonePayment(p)
	s.mu.Unlock()

	s.Logger.Info("sandbox payment executed", "payment_id", id, "sale_id", sale.ID)

	if err := s.ipn.Enqueue(id, s.completedNotification(&snapshot, sale)); err != nil {
		s.Logger.Error("failed to schedule ipn", "payment_id", id, "error", err)
	}
	s.WriteJSON(w, http.StatusOK, snapshot)
}

// approve stands in for the buyer's trip through the PayPal login page.
func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("paymentId")
	s.mu.Lock()
	p, ok := s.payments[id]
	var urls paypal.RedirectURLs
	if ok && p.RedirectURLs != nil {
		urls = *p.RedirectURLs
	}
	s.mu.Unlock()

	if !ok {
		s.WriteError(w, http.StatusNotFound, "unknown payment")
		return
	}

	if r.URL.Query().Get("cancel") == "1" {
		http.Redirect(w, r, urls.CancelURL, http.StatusFound)
		return
	}

	payerID := r.URL.Query().Get("PayerID")
	if payerID == "" {
		payerID = "PAYER" + s.newID()[:8]
	}
	target, err := withQuery(urls.ReturnURL, url.Values{"paymentId": {id}, "PayerID": {payerID}})
	if err != nil {
		s.WriteError(w, http.StatusBadRequest, "invalid return url")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		s.WriteText(w, http.StatusBadRequest, "INVALID")
		return
	}
	n, err := paypal.ParseNotification(string(body))
	if err != nil || len(n.Fields) == 0 || !paypal.IsVerificationCommand(n.Fields[0]) {
		s.WriteText(w, http.StatusOK, "INVALID")
		return
	}
	if s.verifier.Genuine(n.Fields[1:]) {
		s.WriteText(w, http.StatusOK, "VERIFIED")
		return
	}
	s.WriteText(w, http.StatusOK, "INVALID")
}

func (s *Server) completedNotification(p *paypal.Payment, sale *paypal.Sale) []paypal.Field {
	fields := []paypal.Field{
		{Name: paypal.FieldPaymentStatus, Value: paypal.StatusCompleted},
		{Name: paypal.FieldTxnID, Value: sale.ID},
		{Name: paypal.FieldReceiverEmail, Value: s.config.ReceiverMail},
		{Name: "parent_txn_id", Value: p.ID},
	}
	if len(p.Transactions) == 0 {
		return fields
	}
	tx := p.Transactions[0]
	if tx.ItemList != nil && len(tx.ItemList.Items) > 0 {
		item := tx.ItemList.Items[0]
		fields = append(fields,
			paypal.Field{Name: "item_name1", Value: item.Name},
			paypal.Field{Name: paypal.FieldItemNumber, Value: item.SKU},
		)
	}
	return append(fields,
		paypal.Field{Name: paypal.FieldGross, Value: tx.Amount.Total},
		paypal.Field{Name: paypal.FieldCurrency, Value: tx.Amount.Currency},
	)
}

func (s *Server) links(id string) []paypal.Link {
	base := strings.TrimRight(s.config.BaseURL, "/")
	return []paypal.Link{
		{Href: base + "/v1/payments/payment/" + id, Rel: "self", Method: http.MethodGet},
		{Href: base + "/sandbox/approve?paymentId=" + url.QueryEscape(id), Rel: paypal.RelApprovalURL, Method: "REDIRECT"},
		{Href: base + "/v1/payments/payment/" + id + "/execute", Rel: "execute", Method: http.MethodPost},
	}
}

func (s *Server) writeAPIError(w http.ResponseWriter, status int, name, message string) {
	s.WriteJSON(w, status, map[string]string{
		"name":     name,
		"message":  message,
		"debug_id": s.newID()[:12],
	})
}

// clonePayment copies the slices a later execute mutates.
func clonePayment(p *paypal.Payment) paypal.Payment {
	c := *p
	c.Transactions = make([]paypal.Transaction, len(p.Transactions))
	for i, tx := range p.Transactions {
		tx.RelatedResources = append([]paypal.RelatedResource(nil), tx.RelatedResources...)
		c.Transactions[i] = tx
	}
	c.Links = append([]paypal.Link(nil), p.Links...)
	if p.Payer.PayerInfo != nil {
		info := *p.Payer.PayerInfo
		c.Payer.PayerInfo = &info
	}
	return c
}

func validatePayment(p *paypal.Payment) error {
	if p.Intent != paypal.IntentSale {
		return errors.New("intent must be sale")
	}
	if p.RedirectURLs == nil || p.RedirectURLs.ReturnURL == "" || p.RedirectURLs.CancelURL == "" {
		return errors.New("redirect_urls are required for paypal payments")
	}
	if len(p.Transactions) == 0 || p.Transactions[0].Amount.Total == "" {
		return errors.New("transactions[0].amount is required")
	}
	return nil
}

func withQuery(raw string, extra url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
