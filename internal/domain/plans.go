package domain

// Plan represents a paid subscription tier.
type Plan struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	PriceCents int      `json:"priceCents"` // monthly price in USD cents (999 = $9.99)
	Interval   string   `json:"interval"`
	Features   []string `json:"features"`
	Popular    bool     `json:"popular"` // show "Most Popular" badge
}

// AvailablePlans returns all purchasable plans.
func AvailablePlans() []Plan {
	return []Plan{
		{
			ID:         "basic",
			Name:       "Basic",
			PriceCents: 999,
			Interval:   "month",
			Features: []string{
				"100 messages per day",
				"Standard AI model",
				"Email support",
				"Chat history",
			},
		},
		{
			ID:         "pro",
			Name:       "Pro",
			PriceCents: 1999,
			Interval:   "month",
			Features: []string{
				"500 messages per day",
				"Advanced AI model",
				"Priority support",
				"Chat history & export",
				"Custom AI personality",
			},
			Popular: true,
		},
		{
			ID:         "enterprise",
			Name:       "Enterprise",
			PriceCents: 4999,
			Interval:   "month",
			Features: []string{
				"Unlimited messages",
				"Premium AI model",
				"Dedicated support",
				"All Pro features",
				"API access",
				"Custom integrations",
			},
		},
	}
}

// PlanByID looks up a plan by ID.
func PlanByID(id string) (Plan, bool) {
	for _, p := range AvailablePlans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
