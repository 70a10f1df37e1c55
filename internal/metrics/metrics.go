package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/paypal-activation/internal/core/events"
)

// ActivationMetrics counts reconciliation outcomes. The counters are fed from the event
// bus, so nothing in the payment path imports this package.
type ActivationMetrics struct {
	CheckoutsStartedTotal    prometheus.Counter
	CheckoutsCancelledTotal  prometheus.Counter
	ActivationsTotal         *prometheus.CounterVec
	PaymentStatusLoggedTotal *prometheus.CounterVec
	PaymentRejectionsTotal   *prometheus.CounterVec
	NotificationsDiscarded   prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewActivationMetrics registers the collectors on reg. A nil reg gets a fresh registry.
func NewActivationMetrics(reg *prometheus.Registry) *ActivationMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &ActivationMetrics{
		CheckoutsStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "paypal_checkouts_started_total",
			Help: "Payments created at the processor and handed to the payer for approval",
		}),
		CheckoutsCancelledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "paypal_checkouts_cancelled_total",
			Help: "Redirects where the payer declined or abandoned approval",
		}),
		ActivationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paypal_account_activations_total",
			Help: "Activation writes that changed an account, by evidence source",
		}, []string{"source"}),
		PaymentStatusLoggedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paypal_payment_status_logged_total",
			Help: "Non-completed payment statuses recorded on inactive accounts",
		}, []string{"status"}),
		PaymentRejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paypal_payment_rejections_total",
			Help: "Payment executions rejected by the processor, by error name",
		}, []string{"name"}),
		NotificationsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "paypal_notifications_discarded_total",
			Help: "Payment notifications that failed verification",
		}),
		gatherer: reg,
	}
}

func (m *ActivationMetrics) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeCheckoutStarted, m.onCheckoutStarted)
	bus.Subscribe(events.EventTypeCheckoutCancelled, m.onCheckoutCancelled)
	bus.Subscribe(events.EventTypeAccountActivated, m.onAccountActivated)
	bus.Subscribe(events.EventTypePaymentStatusLogged, m.onPaymentStatusLogged)
	bus.Subscribe(events.EventTypePaymentRejected, m.onPaymentRejected)
	bus.Subscribe(events.EventTypeNotificationDiscarded, m.onNotificationDiscarded)
}

func (m *ActivationMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *ActivationMetrics) onCheckoutStarted(ctx context.Context, event events.Event) error {
	m.CheckoutsStartedTotal.Inc()
	return nil
}

func (m *ActivationMetrics) onCheckoutCancelled(ctx context.Context, event events.Event) error {
	m.CheckoutsCancelledTotal.Inc()
	return nil
}

func (m *ActivationMetrics) onAccountActivated(ctx context.Context, event events.Event) error {
	m.ActivationsTotal.WithLabelValues(label(event, "source")).Inc()
	return nil
}

func (m *ActivationMetrics) onPaymentStatusLogged(ctx context.Context, event events.Event) error {
	m.PaymentStatusLoggedTotal.WithLabelValues(label(event, "status")).Inc()
	return nil
}

func (m *ActivationMetrics) onPaymentRejected(ctx context.Context, event events.Event) error {
	m.PaymentRejectionsTotal.WithLabelValues(label(event, "name")).Inc()
	return nil
}

func (m *ActivationMetrics) onNotificationDiscarded(ctx context.Context, event events.Event) error {
	m.NotificationsDiscarded.Inc()
	return nil
}

func label(event events.Event, key string) string {
	data, ok := event.Payload().(map[string]interface{})
	if !ok {
		return "unknown"
	}
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return "unknown"
}
