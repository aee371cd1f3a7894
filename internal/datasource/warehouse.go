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

// regionCapacities holds total warehouse capacity per region in metric tons.
var regionCapacities = map[string]float64{
	"punjab":      50000,
	"sindh":       35000,
	"kpk":         20000,
	"balochistan": 15000,
}

// WarehouseStockTool reports current reserve levels per regional warehouse.
// Data is simulated pending integration with a real warehouse management
// system (e.g. PASSCO or the provincial food departments), so results carry
// dataQuality Low.
type WarehouseStockTool struct {
	observer Observer
}

var _ tool.InvokableTool = (*WarehouseStockTool)(nil)

// Info returns tool metadata for model planning.
func (t *WarehouseStockTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolWarehouse,
		Desc: "Checks current stock levels in regional warehouses. Low stock indicates potential shortage. NOTE: Currently using simulated data - requires integration with actual warehouse systems.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"region": {
				Type:     schema.String,
				Desc:     "The region to check warehouse stocks (e.g. 'Punjab', 'Sindh', 'KPK', 'Balochistan')",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun produces the stock payload.
func (t *WarehouseStockTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Region string `json:"region"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return finish(ToolWarehouse, argumentsInJSON, t.observer,
			errorResult(fmt.Sprintf("Warehouse stock data unavailable: bad arguments: %v", err), nil))
	}

	capacity := 25000.0
	if c, ok := regionCapacities[lowerTrim(args.Region)]; ok {
		capacity = c
	}

	utilization := 30 + rand.Float64()*60

	wheatStock := math.Floor(capacity * 0.4 * utilization / 100)
	riceStock := math.Floor(capacity * 0.3 * utilization / 100)
	cornStock := math.Floor(capacity * 0.2 * utilization / 100)
	otherStock := math.Floor(capacity * 0.1 * utilization / 100)
	totalStock := wheatStock + riceStock + cornStock + otherStock
	utilizationPercent := totalStock / capacity * 100

	stockStatus := "Normal"
	var alert any
	switch {
	case utilizationPercent < 30:
		stockStatus = "Low - Potential Shortage Risk"
		alert = "Stock levels below optimal - consider increasing reserves"
	case utilizationPercent > 85:
		stockStatus = "Near Capacity - Storage Constraints"
		alert = "Warehouse near capacity - plan for distribution"
	}

	tons := func(amount float64) map[string]any {
		return map[string]any{"amount": amount, "unit": "metric tons"}
	}

	return finish(ToolWarehouse, argumentsInJSON, t.observer, map[string]any{
		"region": args.Region,
		"stocks": map[string]any{
			"wheat": tons(wheatStock),
			"rice":  tons(riceStock),
			"corn":  tons(cornStock),
			"other": tons(otherStock),
			"total": tons(totalStock),
		},
		"capacity": map[string]any{
			"total":              capacity,
			"utilized":           totalStock,
			"utilizationPercent": round2(utilizationPercent),
			"available":          capacity - totalStock,
		},
		"stockStatus": stockStatus,
		"alert":       alert,
		"lastUpdated": time.Now().UTC().Format(time.RFC3339),
		"note":        "Simulated data - integrate with actual warehouse management system",
		"dataQuality": "Low",
	})
}
