// Package datasource implements the data-fetch tools the analysis agent
// calls: weather, market prices, satellite crop health, and simulated
// logistics sources. Every tool captures its own failures into the result
// payload as {"error": ..., "dataQuality": "Low"} so a broken upstream
// degrades the run instead of aborting it.
package datasource

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"

	"github.com/foodguardai/foodguard/internal/config"
)

// Observer is called after each tool invocation.
type Observer func(tool, input, output, status string)

// Tool names as declared to the model.
const (
	ToolWeather    = "get_weather_data"
	ToolMarket     = "get_market_prices"
	ToolWarehouse  = "get_warehouse_stock"
	ToolForecast   = "get_production_forecast"
	ToolHistory    = "get_historical_shortage_data"
	ToolCropHealth = "get_crop_health"
)

// BuildTools returns the full registry wired against cfg. If observer is
// non-nil it is called after each invocation.
func BuildTools(cfg config.DataSourceConfig, client *http.Client, observer Observer) []tool.BaseTool {
	if client == nil {
		client = &http.Client{Timeout: 25 * time.Second}
	}
	return []tool.BaseTool{
		&WeatherTool{apiKey: cfg.WeatherAPIKey, baseURL: cfg.WeatherBaseURL, client: client, observer: observer},
		&MarketPriceTool{baseURL: cfg.MarketBaseURL, client: client, observer: observer},
		&CropHealthTool{baseURL: cfg.NASABaseURL, client: client, observer: observer},
		&ProductionForecastTool{observer: observer},
		&WarehouseStockTool{observer: observer},
		&HistoricalDataTool{observer: observer},
	}
}

// errorResult builds the degraded-data result every tool falls back to.
// The extra fields echo the identifier the caller asked about.
func errorResult(msg string, extra map[string]any) map[string]any {
	payload := map[string]any{
		"error":       msg,
		"dataQuality": "Low",
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

// finish marshals the result, notifies the observer, and returns the JSON.
func finish(name, argsJSON string, observer Observer, result map[string]any) (string, error) {
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal %s output: %w", name, err)
	}
	status := "ok"
	if _, failed := result["error"]; failed {
		status = "error"
	}
	if observer != nil {
		observer(name, argsJSON, string(out), status)
	}
	return string(out), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
