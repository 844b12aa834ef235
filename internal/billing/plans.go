package billing

import "time"

// Plan describe un plan de suscripción vendible.
type Plan struct {
	ID         string
	Name       string
	PriceCents int64
	Currency   string
	Quota      int // generaciones incluidas por período
	Period     time.Duration
}

// CreditPack describe un paquete de créditos one-shot.
type CreditPack struct {
	ID         string
	Name       string
	PriceCents int64
	Currency   string
	Credits    int
}

// Catálogo por defecto. Operable vía config en el futuro; por ahora el
// catálogo es fijo y chico.
var (
	defaultPlans = map[string]Plan{
		"starter": {ID: "starter", Name: "Starter", PriceCents: 900, Currency: "usd", Quota: 50, Period: 30 * 24 * time.Hour},
		"pro":     {ID: "pro", Name: "Pro", PriceCents: 2900, Currency: "usd", Quota: 500, Period: 30 * 24 * time.Hour},
	}

	defaultCreditPacks = map[string]CreditPack{
		"pack_25":  {ID: "pack_25", Name: "25 credits", PriceCents: 500, Currency: "usd", Credits: 25},
		"pack_100": {ID: "pack_100", Name: "100 credits", PriceCents: 1500, Currency: "usd", Credits: 100},
	}
)

// PlanByID busca un plan del catálogo.
func PlanByID(id string) (Plan, bool) {
	p, ok := defaultPlans[id]
	return p, ok
}

// CreditPackByID busca un paquete de créditos del catálogo.
func CreditPackByID(id string) (CreditPack, bool) {
	p, ok := defaultCreditPacks[id]
	return p, ok
}
