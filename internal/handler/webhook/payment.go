// Package webhook receives payment-provider events.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/dukerupert/ponto/internal/telemetry"
	"github.com/shopspring/decimal"
)

// Reconciler applies a validated payment event to its order.
type Reconciler interface {
	HandlePaymentWebhook(ctx context.Context, ev service.WebhookEvent) (*service.ReconcileResult, error)
}

// Config configures the payment webhook endpoints.
type Config struct {
	// StripeWebhookSecret verifies the Stripe-Signature header on
	// /webhooks/payments/stripe. Empty disables verification.
	StripeWebhookSecret string

	// MaxBodyBytes caps the request body. Defaults to 1MB.
	MaxBodyBytes int64
}

// PaymentHandler serves POST /webhooks/payments and
// POST /webhooks/payments/{provider}.
type PaymentHandler struct {
	reconciler Reconciler
	config     Config
	metrics    *telemetry.BusinessMetrics
}

// NewPaymentHandler creates a payment webhook handler. metrics may be nil.
func NewPaymentHandler(reconciler Reconciler, config Config, metrics *telemetry.BusinessMetrics) *PaymentHandler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = middleware.MB
	}
	return &PaymentHandler{
		reconciler: reconciler,
		config:     config,
		metrics:    metrics,
	}
}

// paymentEventRequest is the provider-neutral webhook body.
type paymentEventRequest struct {
	EventID           string           `json:"eventId" validate:"max=255"`
	EventType         string           `json:"eventType" validate:"max=255"`
	Provider          string           `json:"provider" validate:"max=40"`
	ProviderPaymentID string           `json:"providerPaymentId" validate:"max=255"`
	OrderID           string           `json:"orderId" validate:"max=64"`
	Status            string           `json:"status" validate:"max=64"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          string           `json:"currency" validate:"omitempty,len=3,alpha"`
	Message           string           `json:"message" validate:"max=1000"`
	Raw               json.RawMessage  `json:"raw"`
}

func (r paymentEventRequest) event() service.WebhookEvent {
	return service.WebhookEvent{
		EventID:           strings.TrimSpace(r.EventID),
		EventType:         strings.TrimSpace(r.EventType),
		Provider:          r.Provider,
		ProviderPaymentID: r.ProviderPaymentID,
		OrderID:           r.OrderID,
		Status:            r.Status,
		Amount:            r.Amount,
		Currency:          strings.ToUpper(r.Currency),
		Message:           r.Message,
		Raw:               r.Raw,
	}
}

// ServeHTTP handles one webhook delivery. Replays of an already processed
// event answer 200 with alreadyProcessed so providers stop retrying.
func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())
	pathProvider := strings.ToUpper(strings.TrimSpace(r.PathValue("provider")))

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "webhook.read", "Request body too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.Invalid("webhook.read", "Error reading request body"))
		return
	}

	var ev service.WebhookEvent
	if pathProvider == stripeProvider {
		ev, err = h.stripeEvent(r, payload)
	} else {
		ev, err = genericEvent(payload)
	}
	if errors.Is(err, errStripeEventSkipped) {
		logger.Debug("stripe event skipped", "path", r.URL.Path)
		handler.WriteJSON(w, http.StatusOK, service.ReconcileResult{OK: true, Ignored: true})
		return
	}
	if err != nil {
		provider := pathProvider
		if provider == "" {
			provider = service.DefaultProvider
		}
		h.metrics.RecordWebhookFailure(provider, domain.ErrorCode(err))
		handler.ErrorResponse(w, r, err)
		return
	}
	if pathProvider != "" {
		ev.Provider = pathProvider
	}

	result, err := h.reconciler.HandlePaymentWebhook(r.Context(), ev)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	logger.Info("payment webhook handled",
		"provider", ev.Provider,
		"event_id", ev.EventID,
		"order_id", result.OrderID,
		"already_processed", result.AlreadyProcessed,
		"ignored", result.Ignored,
	)
	handler.WriteJSON(w, http.StatusOK, result)
}

func genericEvent(payload []byte) (service.WebhookEvent, error) {
	var req paymentEventRequest
	if len(strings.TrimSpace(string(payload))) == 0 {
		return service.WebhookEvent{}, domain.Invalid("webhook.decode", "request body is required")
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return service.WebhookEvent{}, domain.Invalid("webhook.decode", "invalid JSON body")
	}
	if err := handler.Validate(&req); err != nil {
		return service.WebhookEvent{}, err
	}

	ev := req.event()
	if len(req.Raw) == 0 {
		ev.Raw = json.RawMessage(payload)
	}
	return ev, nil
}
