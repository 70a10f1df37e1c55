package payment

import (
	"html/template"
	"net/http"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
	"github.com/frahmantamala/paypal-activation/internal/session"
	"github.com/frahmantamala/paypal-activation/internal/transport"
	"github.com/frahmantamala/paypal-activation/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service     ServiceAPI
	Sessions    SessionManager
	SuccessPath string
	ErrorPath   string
}

func NewHandler(svc ServiceAPI, sessions SessionManager, successPath, errorPath string) *Handler {
	if successPath == "" {
		successPath = "/"
	}
	if errorPath == "" {
		errorPath = "/paypal/error"
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		Sessions:    sessions,
		SuccessPath: successPath,
		ErrorPath:   errorPath,
	}
}

// Checkout handles POST /api/v1/paypal/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	accountID := internal.AccountIDFromContext(r.Context())
	if accountID == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sess, err := h.Sessions.Start(w, accountID)
	if err != nil {
		h.HandleServiceError(w, internal.NewInternalError("Failed to start session", err))
		return
	}

	result, err := h.Service.StartCheckout(r.Context(), accountID, sess.ID)
	if err != nil {
		h.Sessions.End(w)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, CheckoutResponse{
		PaymentID:   result.PaymentID,
		ApprovalURL: result.ApprovalURL,
	})
}

// ExecuteRedirect handles GET /paypal/execute, where the processor sends the payer
// back after approving or cancelling.
func (h *Handler) ExecuteRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := RedirectQueryFrom(r.URL.Query())
	if err := query.Validate(); err != nil {
		h.redirectToError(w, r, err)
		return
	}

	var sc reconciliation.SessionContext
	if sess, err := h.Sessions.Read(r); err == nil {
		sc = reconciliation.SessionContext{SessionID: sess.ID, AccountID: sess.AccountID}
		ctx = logger.With(ctx, "account_id", sess.AccountID)
	}

	out, err := h.Service.ConfirmRedirect(ctx, sc, query.Callback())
	if err != nil {
		h.redirectToError(w, r, err)
		return
	}

	switch out.Kind {
	case reconciliation.RedirectExit:
		h.Sessions.End(w)
		http.Redirect(w, r, h.SuccessPath, http.StatusFound)
	case reconciliation.RedirectNothingToExecute:
		h.WriteJSON(w, http.StatusOK, NothingToExecuteResponse{
			Status:  string(out.Kind),
			Message: "No payment id to execute",
		})
	case reconciliation.RedirectRejected:
		h.redirectWithFlash(w, r, session.Flash{
			Code:    string(internal.ErrCodePaymentRejected),
			Name:    out.Rejection.Name,
			Message: out.Rejection.Message,
		})
	default:
		http.Redirect(w, r, h.SuccessPath, http.StatusFound)
	}
}

func (h *Handler) redirectToError(w http.ResponseWriter, r *http.Request, err error) {
	code := "INTERNAL_ERROR"
	message := "Something went wrong while confirming your payment."
	if appErr, ok := internal.IsAppError(err); ok {
		code = string(appErr.Code)
		message = appErr.GetDetailedMessage()
	}
	logger.From(r.Context()).Error("payment redirect failed", "code", code, "error", err)

	h.redirectWithFlash(w, r, session.Flash{Code: code, Message: message})
}

// redirectWithFlash sends the browser to the error view with the details in a signed
// cookie, so the view never renders text taken from its own url.
func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, f session.Flash) {
	if err := h.Sessions.SetFlash(w, f); err != nil {
		h.Logger.Error("failed to set error flash", "code", f.Code, "error", err)
	}
	http.Redirect(w, r, h.ErrorPath, http.StatusFound)
}

var errorView = template.Must(template.New("paypal-error").Parse(`<!DOCTYPE html>
<html>
<head><title>Payment not completed</title></head>
<body>
<h1>Your payment was not completed</h1>
{{if .Name}}<p><strong>{{.Name}}</strong></p>{{end}}
<p>{{.Message}}</p>
<p><small>{{.Code}}</small></p>
<p><a href="{{.Home}}">Back</a></p>
</body>
</html>
`))

type errorViewData struct {
	Code    string
	Name    string
	Message string
	Home    string
}

// ErrorView handles GET /paypal/error
func (h *Handler) ErrorView(w http.ResponseWriter, r *http.Request) {
	data := errorViewData{
		Message: "The payment could not be processed.",
		Home:    h.SuccessPath,
	}
	if f := h.Sessions.TakeFlash(w, r); f != nil {
		data.Code = f.Code
		data.Name = f.Name
		if f.Message != "" {
			data.Message = f.Message
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := errorView.Execute(w, data); err != nil {
		h.Logger.Error("failed to render error view", "error", err)
	}
}
