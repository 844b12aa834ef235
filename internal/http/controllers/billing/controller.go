// Package billing expone los endpoints de pagos y suscripciones.
package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/mockforge/mockforge/internal/billing"
	"github.com/mockforge/mockforge/internal/domain/repository"
	dto "github.com/mockforge/mockforge/internal/http/dto/billing"
	httperrors "github.com/mockforge/mockforge/internal/http/errors"
	"github.com/mockforge/mockforge/internal/http/helpers"
	"github.com/mockforge/mockforge/internal/http/middlewares"
	"github.com/mockforge/mockforge/internal/observability/logger"
)

// Controller maneja los endpoints de billing.
type Controller struct {
	service *billing.Service
}

// NewController crea el controller.
func NewController(s *billing.Service) *Controller {
	return &Controller{service: s}
}

// Initialize maneja POST /api/v1/payments/initialize.
func (c *Controller) Initialize(w http.ResponseWriter, r *http.Request) {
	var req dto.InitializeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	typ := repository.PaymentType(req.Type)
	if typ != repository.PaymentSubscription && typ != repository.PaymentCredit {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("type debe ser subscription o credit"))
		return
	}

	result, err := c.service.InitializePayment(r.Context(), middlewares.GetUserID(r.Context()), typ, req.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownProduct):
			httperrors.WriteError(w, httperrors.ErrUnknownProduct)
		case errors.Is(err, repository.ErrInvalidInput):
			httperrors.WriteError(w, httperrors.ErrBadRequest)
		default:
			httperrors.WriteError(w, err)
		}
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// Verify maneja POST /api/v1/payments/verify.
func (c *Controller) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("sessionId requerido"))
		return
	}

	tx, err := c.service.VerifyPayment(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("transaction not found"))
		case errors.Is(err, billing.ErrPaymentNotSettled):
			httperrors.WriteError(w, httperrors.ErrPaymentNotSettled)
		default:
			httperrors.WriteError(w, err)
		}
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.TransactionView{
		ID:       tx.ID,
		Type:     string(tx.Type),
		Amount:   tx.Amount,
		Currency: tx.Currency,
		Status:   string(tx.Status),
	})
}

// Webhook maneja POST /api/v1/webhooks/stripe. Sin bearer: la autenticidad
// la da la firma del proveedor.
func (c *Controller) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest)
		return
	}
	defer r.Body.Close()

	if err := c.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		logger.From(r.Context()).Warn("webhook rejected", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("webhook inválido"))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Subscription maneja GET /api/v1/subscription.
func (c *Controller) Subscription(w http.ResponseWriter, r *http.Request) {
	sub, err := c.service.Subscription(r.Context(), middlewares.GetUserID(r.Context()))
	if err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("sin suscripción activa"))
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SubscriptionView{
		PlanID:             sub.PlanID,
		Status:             sub.Status,
		RemainingQuota:     sub.RemainingQuota,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		AutoRenew:          sub.AutoRenew,
	})
}
