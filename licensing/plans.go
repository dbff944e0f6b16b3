package licensing

// Plan identifies a subscription tier.
type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Limits caps a tenant's monthly consumption.
type Limits struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
}

// Monthly base prices in USD per plan.
var basePrices = map[Plan]float64{
	PlanBasic:      29,
	PlanPro:        99,
	PlanEnterprise: 299,
}

// Per-unit overage rates in USD.
const (
	overageRatePerRequest = 0.01
	overageRatePerToken   = 0.001
)

var planLimits = map[Plan]Limits{
	PlanBasic:      {Requests: 100, Tokens: 10_000},
	PlanPro:        {Requests: 1_000, Tokens: 100_000},
	PlanEnterprise: {Requests: 10_000, Tokens: 1_000_000},
}

// LimitsFor returns the limits of a plan. Unknown plans get basic limits.
func LimitsFor(plan Plan) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanBasic]
}

// BasePrice returns the monthly base price of a plan. Unknown plans are
// billed as basic.
func BasePrice(plan Plan) float64 {
	if p, ok := basePrices[plan]; ok {
		return p
	}
	return basePrices[PlanBasic]
}

// Valid reports whether plan names a known tier.
func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}
