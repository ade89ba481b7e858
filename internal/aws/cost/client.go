// Package cost fetches AWS Cost Explorer data scoped to one environment tag.
package cost

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/chainguard-dev/clog"

	"tasnim.dev/mldev/internal/aws/tags"
)

const (
	dateLayout    = "2006-01-02"
	unblendedCost = "UnblendedCost"
)

// CostExplorerAPI is the subset of the AWS Cost Explorer client we use.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetCostForecast(ctx context.Context, params *costexplorer.GetCostForecastInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostForecastOutput, error)
}

// Client wraps the AWS Cost Explorer API for a single environment.
type Client struct {
	ce  CostExplorerAPI
	env string
	now func() time.Time // injectable for testing; defaults to time.Now
}

// NewClient creates a Cost Explorer client scoped to the given environment.
func NewClient(cfg aws.Config, env string) *Client {
	return &Client{ce: costexplorer.NewFromConfig(cfg), env: env, now: time.Now}
}

// NewClientWithAPI creates a client with a custom API implementation (for testing).
func NewClientWithAPI(api CostExplorerAPI, env string) *Client {
	return &Client{ce: api, env: env, now: time.Now}
}

// envFilter restricts Cost Explorer queries to resources carrying the
// environment tag. The tag must be activated as a cost allocation tag in
// the billing console before any usage shows up here.
func (c *Client) envFilter() *types.Expression {
	return &types.Expression{
		Tags: &types.TagValues{
			Key:          aws.String(tags.Environment),
			Values:       []string{c.env},
			MatchOptions: []types.MatchOption{types.MatchOptionEquals},
		},
	}
}

// dateRange holds computed date boundaries for cost queries.
type dateRange struct {
	monthStart       time.Time
	today            time.Time
	tomorrow         time.Time
	monthEnd         time.Time
	lastMonthStart   time.Time
	lastMonthSameDay time.Time
}

// computeDateRange calculates all date boundaries needed for cost queries.
func computeDateRange(now time.Time) dateRange {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Clamp the comparison day so the 31st compares against the last day
	// of a shorter previous month.
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	lastMonthLastDay := monthStart.AddDate(0, 0, -1).Day()
	sameDay := now.Day()
	if sameDay > lastMonthLastDay {
		sameDay = lastMonthLastDay
	}
	lastMonthSameDay := time.Date(lastMonthStart.Year(), lastMonthStart.Month(), sameDay+1, 0, 0, 0, 0, time.UTC)
	if lastMonthSameDay.After(monthStart) {
		lastMonthSameDay = monthStart
	}

	return dateRange{
		monthStart:       monthStart,
		today:            today,
		tomorrow:         today.AddDate(0, 0, 1),
		monthEnd:         monthStart.AddDate(0, 1, 0),
		lastMonthStart:   lastMonthStart,
		lastMonthSameDay: lastMonthSameDay,
	}
}

type usageResult struct {
	results []types.ResultByTime
	err     error
}

type amountResult struct {
	amount float64
	err    error
}

// FetchCostData retrieves the environment's spend for the current month:
// month-to-date total, today's spend, a projected end-of-month total, and a
// comparison against the same period last month. The three Cost Explorer
// queries run concurrently. Forecast and last-month data are best effort
// since a freshly tagged environment has no history to forecast from; only
// the usage query can fail the fetch.
func (c *Client) FetchCostData(ctx context.Context) (*CostData, error) {
	dr := computeDateRange(c.now().UTC())

	usageCh := make(chan usageResult, 1)
	forecastCh := make(chan amountResult, 1)
	lastMonthCh := make(chan amountResult, 1)

	go func() {
		results, err := c.fetchUsage(ctx, dr.monthStart, dr.tomorrow)
		usageCh <- usageResult{results: results, err: err}
	}()

	go func() {
		amount, err := c.fetchForecast(ctx, dr)
		forecastCh <- amountResult{amount: amount, err: err}
	}()

	go func() {
		amount, err := c.fetchTotalSpend(ctx, dr.lastMonthStart, dr.lastMonthSameDay)
		lastMonthCh <- amountResult{amount: amount, err: err}
	}()

	usageRes := <-usageCh
	if usageRes.err != nil {
		return nil, fmt.Errorf("GetCostAndUsage: %w", usageRes.err)
	}

	data := aggregateUsage(usageRes.results, dr.today.Format(dateLayout))
	data.Environment = c.env
	data.LastUpdated = c.now()

	if forecastRes := <-forecastCh; forecastRes.err != nil {
		clog.FromContext(ctx).Debugf("cost forecast unavailable: %v", forecastRes.err)
	} else {
		data.ForecastSpend = data.MTDSpend + forecastRes.amount
	}

	if lastMonthRes := <-lastMonthCh; lastMonthRes.err != nil {
		clog.FromContext(ctx).Debugf("last month spend unavailable: %v", lastMonthRes.err)
	} else {
		data.LastMonthSpend = lastMonthRes.amount
		if lastMonthRes.amount > 0 {
			data.MoMChangePercent = ((data.MTDSpend - lastMonthRes.amount) / lastMonthRes.amount) * 100
		}
	}

	return data, nil
}

// FetchCostDataForMonth retrieves usage for an arbitrary month. Forecast and
// month-over-month comparison only make sense for the current month, so past
// months report usage alone.
func (c *Client) FetchCostDataForMonth(ctx context.Context, month time.Time) (*CostData, error) {
	dr := computeDateRange(c.now().UTC())
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	if monthStart.Equal(dr.monthStart) {
		return c.FetchCostData(ctx)
	}

	end := monthStart.AddDate(0, 1, 0)
	if end.After(dr.tomorrow) {
		end = dr.tomorrow
	}

	results, err := c.fetchUsage(ctx, monthStart, end)
	if err != nil {
		return nil, fmt.Errorf("GetCostAndUsage: %w", err)
	}

	data := aggregateUsage(results, dr.today.Format(dateLayout))
	data.Environment = c.env
	data.LastUpdated = c.now()
	data.TargetMonth = monthStart
	return data, nil
}

// fetchUsage retrieves daily costs grouped by service for [start, end),
// following pagination.
func (c *Client) fetchUsage(ctx context.Context, start, end time.Time) ([]types.ResultByTime, error) {
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(start.Format(dateLayout)),
			End:   aws.String(end.Format(dateLayout)),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{unblendedCost},
		GroupBy: []types.GroupDefinition{
			{Type: types.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
		},
		Filter: c.envFilter(),
	}

	var results []types.ResultByTime
	for {
		output, err := c.ce.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, err
		}
		results = append(results, output.ResultsByTime...)
		if output.NextPageToken == nil {
			break
		}
		input.NextPageToken = output.NextPageToken
	}
	return results, nil
}

// fetchForecast retrieves the predicted spend for the rest of the month.
func (c *Client) fetchForecast(ctx context.Context, dr dateRange) (float64, error) {
	// Cost Explorer rejects a forecast window that starts on or after its
	// end, which happens on the last day of the month.
	if !dr.tomorrow.Before(dr.monthEnd) {
		return 0, nil
	}

	output, err := c.ce.GetCostForecast(ctx, &costexplorer.GetCostForecastInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(dr.tomorrow.Format(dateLayout)),
			End:   aws.String(dr.monthEnd.Format(dateLayout)),
		},
		Granularity: types.GranularityMonthly,
		Metric:      types.MetricUnblendedCost,
		Filter:      c.envFilter(),
	})
	if err != nil {
		return 0, err
	}
	if output.Total == nil || output.Total.Amount == nil {
		return 0, nil
	}
	return parseAmount(aws.ToString(output.Total.Amount)), nil
}

// fetchTotalSpend retrieves the total cost for [start, end) without grouping.
func (c *Client) fetchTotalSpend(ctx context.Context, start, end time.Time) (float64, error) {
	// On the first of the month there is no elapsed period to compare.
	if !start.Before(end) {
		return 0, nil
	}

	output, err := c.ce.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(start.Format(dateLayout)),
			End:   aws.String(end.Format(dateLayout)),
		},
		Granularity: types.GranularityMonthly,
		Metrics:     []string{unblendedCost},
		Filter:      c.envFilter(),
	})
	if err != nil {
		return 0, err
	}

	var total float64
	for _, result := range output.ResultsByTime {
		if metric, ok := result.Total[unblendedCost]; ok {
			total += parseAmount(aws.ToString(metric.Amount))
		}
	}
	return total, nil
}

// aggregateUsage folds daily, service-grouped results into a CostData.
// Days with no matching usage still produce a zero entry so the spend chart
// keeps its time axis continuous.
func aggregateUsage(results []types.ResultByTime, todayKey string) *CostData {
	data := &CostData{Currency: "USD"}
	serviceTotals := make(map[string]float64)

	for _, result := range results {
		date := aws.ToString(result.TimePeriod.Start)

		var dayTotal float64
		for _, group := range result.Groups {
			metric, ok := group.Metrics[unblendedCost]
			if !ok {
				continue
			}
			amount := parseAmount(aws.ToString(metric.Amount))
			if unit := aws.ToString(metric.Unit); unit != "" {
				data.Currency = unit
			}
			dayTotal += amount
			if len(group.Keys) > 0 {
				serviceTotals[group.Keys[0]] += amount
			}
		}

		data.DailySpend = append(data.DailySpend, DailySpendEntry{Date: date, Spend: dayTotal})
		data.MTDSpend += dayTotal
		if date == todayKey {
			data.TodaySpend = dayTotal
		}
	}

	sort.Slice(data.DailySpend, func(i, j int) bool {
		return data.DailySpend[i].Date < data.DailySpend[j].Date
	})

	for name, total := range serviceTotals {
		data.Services = append(data.Services, ServiceCost{Name: name, Cost: total})
	}
	sort.Slice(data.Services, func(i, j int) bool {
		return data.Services[i].Cost > data.Services[j].Cost
	})

	return data
}

func parseAmount(s string) float64 {
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return amount
}
