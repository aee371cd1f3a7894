package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// HistoricalDataTool retrieves past shortage events for pattern analysis.
// Data is simulated pending connection to a historical records database, so
// results carry dataQuality Low.
type HistoricalDataTool struct {
	observer Observer
}

var _ tool.InvokableTool = (*HistoricalDataTool)(nil)

// Info returns tool metadata for model planning.
func (t *HistoricalDataTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolHistory,
		Desc: "Retrieves past shortage events to identify patterns and seasonal trends. NOTE: Currently using simulated data - requires connection to historical database.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"region": {
				Type:     schema.String,
				Desc:     "The region to analyze",
				Required: true,
			},
			"monthsBack": {
				Type: schema.Integer,
				Desc: "Number of months to look back (default: 6)",
			},
		}),
	}, nil
}

// InvokableRun produces the historical shortage payload.
func (t *HistoricalDataTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Region     string `json:"region"`
		MonthsBack int    `json:"monthsBack"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return finish(ToolHistory, argumentsInJSON, t.observer,
			errorResult(fmt.Sprintf("Historical data unavailable: bad arguments: %v", err), nil))
	}
	if args.MonthsBack <= 0 {
		args.MonthsBack = 6
	}

	now := time.Now()
	var monthly []map[string]any
	var shortageEvents int
	var totalShortage float64
	var highRiskMonths []string

	for i := args.MonthsBack - 1; i >= 0; i-- {
		month := now.AddDate(0, -i, 0).Month().String()

		level := "Low"
		var amount float64
		switch r := rand.Float64(); {
		case r > 0.7:
			level = "High"
			amount = 2000 + rand.Float64()*2000
		case r > 0.4:
			level = "Medium"
			amount = 500 + rand.Float64()*1500
		}

		if level != "Low" {
			shortageEvents++
		}
		if level == "High" {
			highRiskMonths = append(highRiskMonths, month)
		}
		totalShortage += amount

		monthly = append(monthly, map[string]any{
			"month":          month,
			"shortageLevel":  level,
			"shortageAmount": math.Floor(amount),
			"unit":           "metric tons",
		})
	}

	if len(highRiskMonths) == 0 {
		highRiskMonths = []string{"No clear pattern"}
	}

	return finish(ToolHistory, argumentsInJSON, t.observer, map[string]any{
		"region":         args.Region,
		"analysisPeriod": fmt.Sprintf("Past %d months", args.MonthsBack),
		"summary": map[string]any{
			"totalShortageEvents": shortageEvents,
			"avgShortageAmount":   math.Floor(totalShortage / float64(args.MonthsBack)),
			"unit":                "metric tons per event",
		},
		"monthlyBreakdown": monthly,
		"seasonalPattern": map[string]any{
			"highRiskMonths": highRiskMonths,
			"insight":        "Shortages historically correlate with pre-harvest periods and extreme weather events",
		},
		"trends": map[string]any{
			"increasing": rand.Float64() > 0.5,
			"severity":   "Moderate fluctuation in shortage frequency",
		},
		"note":        "Simulated historical data - connect to actual historical database for accurate patterns",
		"dataQuality": "Low",
	})
}
