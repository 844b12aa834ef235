// Package billing contiene los DTOs de los endpoints de pagos.
package billing

import "time"

// InitializeRequest inicia un checkout.
type InitializeRequest struct {
	Type      string `json:"type"` // subscription | credit
	ProductID string `json:"productId"`
}

// VerifyRequest confirma una sesión de checkout.
type VerifyRequest struct {
	SessionID string `json:"sessionId"`
}

// TransactionView es la vista pública de una transacción.
type TransactionView struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// SubscriptionView es la vista pública de la suscripción vigente.
type SubscriptionView struct {
	PlanID             string    `json:"planId"`
	Status             string    `json:"status"`
	RemainingQuota     int       `json:"remainingQuota"`
	CurrentPeriodStart time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd"`
	AutoRenew          bool      `json:"autoRenew"`
}
