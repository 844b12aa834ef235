package billing

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mockforge/mockforge/internal/observability/logger"
)

// TaskTypeRenew es el task periódico que renueva suscripciones vencidas
// con auto_renew. Se agenda desde el scheduler de asynq (cada hora).
const TaskTypeRenew = "billing:renew"

// NewRenewTask arma el task de renovación (sin payload).
func NewRenewTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRenew, nil)
}

// RegisterRenewal registra el handler de renovación en el mux de asynq.
func (s *Service) RegisterRenewal(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeRenew, func(ctx context.Context, t *asynq.Task) error {
		_, err := s.RenewDue(ctx, time.Now())
		return err
	})
}

// RenewDue renueva todas las suscripciones con auto_renew y período
// vencido: abre un período nuevo y repone la cuota del plan. Retorna
// cuántas renovó. Un fallo individual no corta el resto.
func (s *Service) RenewDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.subs.ListRenewable(ctx, now)
	if err != nil {
		return 0, err
	}

	renewed := 0
	for _, sub := range due {
		plan, ok := PlanByID(sub.PlanID)
		if !ok {
			// Suscripción solo-créditos o plan retirado: expira sin renovar.
			sub.Status = "expired"
			sub.AutoRenew = false
			if err := s.subs.Upsert(ctx, sub); err != nil {
				logger.From(ctx).Warn("expire subscription failed",
					logger.UserID(sub.UserID), logger.Err(err))
			}
			continue
		}

		sub.Status = "active"
		sub.RemainingQuota = plan.Quota
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = now.Add(plan.Period)
		sub.ExpiresAt = now.Add(plan.Period)
		if err := s.subs.Upsert(ctx, sub); err != nil {
			logger.From(ctx).Warn("renew subscription failed",
				logger.UserID(sub.UserID), logger.Err(err))
			continue
		}
		renewed++
	}

	if renewed > 0 {
		logger.From(ctx).Info("subscriptions renewed", logger.Count(renewed))
	}
	return renewed, nil
}
