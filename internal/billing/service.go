// Package billing maneja pagos (Stripe Checkout) y suscripciones: compra
// de planes y créditos, verificación de pago idempotente, consumo de
// cuota y renovación periódica.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"

	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/metrics"
	"github.com/mockforge/mockforge/internal/observability/logger"
)

// Errores del módulo de billing.
var (
	// ErrUnknownProduct: el plan o paquete de créditos no existe en el catálogo.
	ErrUnknownProduct = errors.New("billing: unknown product")

	// ErrPaymentNotSettled: la sesión de checkout todavía no está paga.
	ErrPaymentNotSettled = errors.New("billing: payment not settled yet")
)

// Service orquesta proveedor de pagos y repositorios.
type Service struct {
	provider PaymentProvider
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
}

// NewService crea el servicio de billing.
func NewService(provider PaymentProvider, payments repository.PaymentRepository, subs repository.SubscriptionRepository) *Service {
	return &Service{provider: provider, payments: payments, subs: subs}
}

// CheckoutResult es lo que el frontend necesita para redirigir al checkout.
type CheckoutResult struct {
	TransactionID string `json:"transactionId"`
	SessionID     string `json:"sessionId"`
	CheckoutURL   string `json:"checkoutUrl"`
}

// InitializePayment crea la sesión de checkout y registra la transacción
// pending. productID es un plan (type=subscription) o un paquete de
// créditos (type=credit).
func (s *Service) InitializePayment(ctx context.Context, userID string, typ repository.PaymentType, productID string) (*CheckoutResult, error) {
	var (
		name     string
		amount   int64
		currency string
		meta     = map[string]string{"user_id": userID, "product_id": productID}
	)
	switch typ {
	case repository.PaymentSubscription:
		plan, ok := PlanByID(productID)
		if !ok {
			return nil, ErrUnknownProduct
		}
		name, amount, currency = plan.Name, plan.PriceCents, plan.Currency
	case repository.PaymentCredit:
		pack, ok := CreditPackByID(productID)
		if !ok {
			return nil, ErrUnknownProduct
		}
		name, amount, currency = pack.Name, pack.PriceCents, pack.Currency
		meta["credits"] = strconv.Itoa(pack.Credits)
	default:
		return nil, repository.ErrInvalidInput
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutInput{
		UserID:      userID,
		ProductName: name,
		AmountCents: amount,
		Currency:    currency,
		Metadata:    meta,
	})
	if err != nil {
		return nil, err
	}

	tx := repository.PaymentTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          typ,
		Amount:        amount,
		Currency:      currency,
		Status:        repository.PaymentPending,
		ProviderToken: sess.ID,
		Metadata:      meta,
	}
	if err := s.payments.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("billing: persist transaction: %w", err)
	}

	logger.FromWithFields(ctx,
		logger.UserID(userID),
		logger.TransactionID(tx.ID),
		logger.String("product", productID),
	).Info("checkout session created")

	return &CheckoutResult{TransactionID: tx.ID, SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// VerifyPayment consulta la sesión en el proveedor y liquida la
// transacción. Idempotente: una transacción ya terminal retorna su estado
// sin tocar nada (el settle pending->terminal ocurre una sola vez).
func (s *Service) VerifyPayment(ctx context.Context, sessionID string) (*repository.PaymentTransaction, error) {
	tx, err := s.payments.GetByProviderToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != repository.PaymentPending {
		return tx, nil
	}

	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Paid {
		return nil, ErrPaymentNotSettled
	}

	if err := s.settle(ctx, tx, sess.PaymentIntentID); err != nil {
		// Otro verificador (webhook) ganó la carrera: el estado ya es terminal.
		if errors.Is(err, repository.ErrTerminal) {
			return s.payments.GetByProviderToken(ctx, sessionID)
		}
		return nil, err
	}
	return s.payments.GetByProviderToken(ctx, sessionID)
}

// HandleWebhook procesa eventos del proveedor. checkout.session.completed
// liquida la transacción igual que VerifyPayment; el resto se ignora.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.Type != "checkout.session.completed" {
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("billing: decode webhook session: %w", err)
	}

	tx, err := s.payments.GetByProviderToken(ctx, sess.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			// Sesión de otro entorno o transacción purgada: no es un error.
			logger.From(ctx).Warn("webhook for unknown checkout session",
				logger.String("sessionId", sess.ID))
			return nil
		}
		return err
	}
	if tx.Status != repository.PaymentPending {
		return nil
	}

	paymentIntentID := ""
	if sess.PaymentIntent != nil {
		paymentIntentID = sess.PaymentIntent.ID
	}
	if err := s.settle(ctx, tx, paymentIntentID); err != nil && !errors.Is(err, repository.ErrTerminal) {
		return err
	}
	return nil
}

// settle marca la transacción completed y aplica su efecto: activa la
// suscripción del plan o suma créditos a la cuota vigente.
func (s *Service) settle(ctx context.Context, tx *repository.PaymentTransaction, providerPaymentID string) error {
	if err := s.payments.Settle(ctx, tx.ID, repository.PaymentCompleted, providerPaymentID); err != nil {
		return err
	}

	switch tx.Type {
	case repository.PaymentSubscription:
		plan, ok := PlanByID(tx.Metadata["product_id"])
		if !ok {
			return ErrUnknownProduct
		}
		now := time.Now()
		sub := repository.Subscription{
			UserID:             tx.UserID,
			PlanID:             plan.ID,
			Status:             "active",
			RemainingQuota:     plan.Quota,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.Add(plan.Period),
			ExpiresAt:          now.Add(plan.Period),
			AutoRenew:          true,
		}
		if err := s.subs.Upsert(ctx, sub); err != nil {
			return fmt.Errorf("billing: activate subscription: %w", err)
		}

	case repository.PaymentCredit:
		credits, _ := strconv.Atoi(tx.Metadata["credits"])
		if credits <= 0 {
			return repository.ErrInvalidInput
		}
		sub, err := s.subs.Get(ctx, tx.UserID)
		if err != nil {
			if !repository.IsNotFound(err) {
				return err
			}
			// Créditos sin plan: suscripción mínima solo-créditos.
			sub = &repository.Subscription{UserID: tx.UserID, PlanID: "credits", Status: "active"}
		}
		sub.RemainingQuota += credits
		if err := s.subs.Upsert(ctx, *sub); err != nil {
			return fmt.Errorf("billing: add credits: %w", err)
		}
	}

	metrics.PaymentsSettled.WithLabelValues(string(repository.PaymentCompleted)).Inc()
	logger.FromWithFields(ctx,
		logger.UserID(tx.UserID),
		logger.TransactionID(tx.ID),
	).Info("payment settled")
	return nil
}

// ConsumeQuota descuenta n generaciones de la cuota del usuario.
// Un usuario sin suscripción no tiene cuota: cuenta como agotada.
func (s *Service) ConsumeQuota(ctx context.Context, userID string, n int) error {
	err := s.subs.ConsumeQuota(ctx, userID, n)
	if repository.IsNotFound(err) {
		return repository.ErrQuotaExhausted
	}
	return err
}

// Subscription devuelve la suscripción vigente del usuario.
func (s *Service) Subscription(ctx context.Context, userID string) (*repository.Subscription, error) {
	return s.subs.Get(ctx, userID)
}
