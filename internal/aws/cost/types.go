package cost

import "time"

// CostData holds the environment's cost information for the dashboard.
type CostData struct {
	Environment      string
	TodaySpend       float64
	MTDSpend         float64
	ForecastSpend    float64
	LastMonthSpend   float64 // same period last month
	MoMChangePercent float64
	Currency         string
	Services         []ServiceCost
	DailySpend       []DailySpendEntry
	LastUpdated      time.Time
	TargetMonth      time.Time // month being displayed (zero = current)
}

// ServiceCost represents cost for a single AWS service.
type ServiceCost struct {
	Name string
	Cost float64
}

// DailySpendEntry represents total spend for a single day.
type DailySpendEntry struct {
	Date  string
	Spend float64
}
