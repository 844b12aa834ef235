package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/store/memory"
)

type fakeProvider struct {
	sessions map[string]*CheckoutSession
	created  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: make(map[string]*CheckoutSession)}
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	f.created++
	sess := &CheckoutSession{
		ID:  "cs_test_" + in.ProductName,
		URL: "https://checkout.test/" + in.ProductName,
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, errors.New("no such session")
	}
	return sess, nil
}

func (f *fakeProvider) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	return nil, errors.New("not used in this test")
}

func (f *fakeProvider) markPaid(sessionID string) {
	f.sessions[sessionID].Paid = true
	f.sessions[sessionID].PaymentIntentID = "pi_test"
}

func newTestService() (*Service, *fakeProvider, *memory.Store) {
	store := memory.New()
	provider := newFakeProvider()
	return NewService(provider, store.Payments, store.Subscriptions), provider, store
}

func TestInitializePayment_Subscription(t *testing.T) {
	s, provider, store := newTestService()

	res, err := s.InitializePayment(context.Background(), "u1", repository.PaymentSubscription, "pro")
	if err != nil {
		t.Fatal(err)
	}
	if res.CheckoutURL == "" || res.SessionID == "" || res.TransactionID == "" {
		t.Fatalf("result: %+v", res)
	}
	if provider.created != 1 {
		t.Fatalf("sessions created = %d", provider.created)
	}

	tx, err := store.Payments.GetByProviderToken(context.Background(), res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != repository.PaymentPending || tx.Type != repository.PaymentSubscription {
		t.Fatalf("tx: %+v", tx)
	}
	if tx.Amount != 2900 {
		t.Fatalf("amount = %d", tx.Amount)
	}
}

func TestInitializePayment_UnknownProduct(t *testing.T) {
	s, _, _ := newTestService()
	_, err := s.InitializePayment(context.Background(), "u1", repository.PaymentSubscription, "enterprise-2099")
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("want ErrUnknownProduct, got %v", err)
	}
}

func TestVerifyPayment_ActivatesSubscription(t *testing.T) {
	s, provider, store := newTestService()

	res, err := s.InitializePayment(context.Background(), "u1", repository.PaymentSubscription, "starter")
	if err != nil {
		t.Fatal(err)
	}

	// Todavía no pagada.
	if _, err := s.VerifyPayment(context.Background(), res.SessionID); !errors.Is(err, ErrPaymentNotSettled) {
		t.Fatalf("want ErrPaymentNotSettled, got %v", err)
	}

	provider.markPaid(res.SessionID)
	tx, err := s.VerifyPayment(context.Background(), res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != repository.PaymentCompleted || tx.ProviderPaymentID != "pi_test" {
		t.Fatalf("tx: %+v", tx)
	}

	sub, err := store.Subscriptions.Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.PlanID != "starter" || sub.Status != "active" || sub.RemainingQuota != 50 {
		t.Fatalf("sub: %+v", sub)
	}
	if !sub.AutoRenew {
		t.Fatal("plan purchase must enable auto renew")
	}
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	s, provider, _ := newTestService()

	res, _ := s.InitializePayment(context.Background(), "u1", repository.PaymentSubscription, "starter")
	provider.markPaid(res.SessionID)

	first, err := s.VerifyPayment(context.Background(), res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.VerifyPayment(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("second verify must be idempotent, got %v", err)
	}
	if first.Status != second.Status || second.Status != repository.PaymentCompleted {
		t.Fatalf("statuses: %s / %s", first.Status, second.Status)
	}
}

func TestVerifyPayment_CreditsAddToQuota(t *testing.T) {
	s, provider, store := newTestService()

	// Usuario con plan activo compra créditos extra.
	_ = store.Subscriptions.Upsert(context.Background(), repository.Subscription{
		UserID: "u1", PlanID: "starter", Status: "active", RemainingQuota: 10,
	})

	res, err := s.InitializePayment(context.Background(), "u1", repository.PaymentCredit, "pack_25")
	if err != nil {
		t.Fatal(err)
	}
	provider.markPaid(res.SessionID)
	if _, err := s.VerifyPayment(context.Background(), res.SessionID); err != nil {
		t.Fatal(err)
	}

	sub, _ := store.Subscriptions.Get(context.Background(), "u1")
	if sub.RemainingQuota != 35 {
		t.Fatalf("quota = %d, want 35", sub.RemainingQuota)
	}
	if sub.PlanID != "starter" {
		t.Fatalf("credit purchase must not change the plan: %s", sub.PlanID)
	}
}

func TestRenewDue(t *testing.T) {
	s, _, store := newTestService()
	now := time.Now()

	// Vencida con auto_renew: se renueva.
	_ = store.Subscriptions.Upsert(context.Background(), repository.Subscription{
		UserID: "due", PlanID: "pro", Status: "active", RemainingQuota: 0,
		CurrentPeriodEnd: now.Add(-time.Hour), AutoRenew: true,
	})
	// Vigente: no se toca.
	_ = store.Subscriptions.Upsert(context.Background(), repository.Subscription{
		UserID: "fresh", PlanID: "pro", Status: "active", RemainingQuota: 7,
		CurrentPeriodEnd: now.Add(time.Hour), AutoRenew: true,
	})
	// Vencida con plan retirado: expira.
	_ = store.Subscriptions.Upsert(context.Background(), repository.Subscription{
		UserID: "legacy", PlanID: "gold-2019", Status: "active",
		CurrentPeriodEnd: now.Add(-time.Hour), AutoRenew: true,
	})

	renewed, err := s.RenewDue(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if renewed != 1 {
		t.Fatalf("renewed = %d, want 1", renewed)
	}

	due, _ := store.Subscriptions.Get(context.Background(), "due")
	if due.RemainingQuota != 500 || !due.CurrentPeriodEnd.After(now) {
		t.Fatalf("due: %+v", due)
	}
	fresh, _ := store.Subscriptions.Get(context.Background(), "fresh")
	if fresh.RemainingQuota != 7 {
		t.Fatalf("fresh subscription mutated: %+v", fresh)
	}
	legacy, _ := store.Subscriptions.Get(context.Background(), "legacy")
	if legacy.Status != "expired" || legacy.AutoRenew {
		t.Fatalf("legacy: %+v", legacy)
	}
}

func TestConsumeQuota(t *testing.T) {
	s, _, store := newTestService()
	_ = store.Subscriptions.Upsert(context.Background(), repository.Subscription{
		UserID: "u1", PlanID: "starter", Status: "active", RemainingQuota: 1,
	})

	if err := s.ConsumeQuota(context.Background(), "u1", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.ConsumeQuota(context.Background(), "u1", 1); !errors.Is(err, repository.ErrQuotaExhausted) {
		t.Fatalf("want ErrQuotaExhausted, got %v", err)
	}

	// Sin suscripción no hay cuota: cuenta como agotada, no como not found.
	if err := s.ConsumeQuota(context.Background(), "nadie", 1); !errors.Is(err, repository.ErrQuotaExhausted) {
		t.Fatalf("want ErrQuotaExhausted para usuario sin suscripción, got %v", err)
	}
}
