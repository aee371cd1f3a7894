package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// serveSeries returns a World Bank style [metadata, series] envelope with
// the given monthly values, newest first.
func serveSeries(t *testing.T, values []any) *httptest.Server {
	t.Helper()
	series := make([]map[string]any, len(values))
	for i, v := range values {
		series[i] = map[string]any{"date": fmt.Sprintf("2025M%02d", 12-i), "value": v}
	}
	body, err := json.Marshal([]any{map[string]any{"total": len(values)}, series})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(body)
	}))
}

func runMarket(t *testing.T, tool *MarketPriceTool, crop string) map[string]any {
	t.Helper()
	out, err := tool.InvokableRun(context.Background(), `{"crop":"`+crop+`"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return result
}

func TestMarketPriceSignalsShortage(t *testing.T) {
	// Current 300 vs 200 a year ago: +50% yearly, shortage signal.
	values := make([]any, 24)
	for i := range values {
		values[i] = 200.0
	}
	values[0] = 300.0
	srv := serveSeries(t, values)
	defer srv.Close()

	tool := &MarketPriceTool{baseURL: srv.URL, client: srv.Client()}
	result := runMarket(t, tool, "wheat")

	if result["error"] != nil {
		t.Fatalf("unexpected error payload: %v", result["error"])
	}
	if result["supplySignal"] != "Potential Shortage - Prices Rising Significantly" {
		t.Errorf("supplySignal = %v", result["supplySignal"])
	}
	if result["marketCondition"] != "Volatile" {
		t.Errorf("marketCondition = %v, want Volatile for +50%% monthly", result["marketCondition"])
	}
	changes := result["changes"].(map[string]any)
	yearly := changes["yearly"].(map[string]any)
	if yearly["percent"].(float64) != 50 {
		t.Errorf("yearly percent = %v, want 50", yearly["percent"])
	}
}

func TestMarketPriceWalksPastMissingValues(t *testing.T) {
	// Previous month is null; the lookup should fall back to the nearest
	// non-zero older value. String values must parse too.
	srv := serveSeries(t, []any{"210.5", nil, 200.0, 200.0, 200.0, 200.0, 200.0})
	defer srv.Close()

	tool := &MarketPriceTool{baseURL: srv.URL, client: srv.Client()}
	result := runMarket(t, tool, "rice")

	if result["error"] != nil {
		t.Fatalf("unexpected error payload: %v", result["error"])
	}
	prices := result["prices"].(map[string]any)
	if prices["current"].(float64) != 210.5 {
		t.Errorf("current = %v, want 210.5", prices["current"])
	}
	if prices["previous"].(float64) != 200 {
		t.Errorf("previous = %v, want 200 (skipping null)", prices["previous"])
	}
	if result["supplySignal"] != "Tightening Supply - Prices Increasing" {
		t.Errorf("supplySignal = %v", result["supplySignal"])
	}
}

func TestMarketPriceUnknownCrop(t *testing.T) {
	tool := &MarketPriceTool{baseURL: "http://unused.invalid", client: http.DefaultClient}
	result := runMarket(t, tool, "saffron")

	if result["error"] == nil {
		t.Fatal("expected error payload for unknown crop")
	}
	if result["dataQuality"] != "Low" {
		t.Errorf("dataQuality = %v, want Low", result["dataQuality"])
	}
}

func TestMarketPriceEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"total":0}]`))
	}))
	defer srv.Close()

	tool := &MarketPriceTool{baseURL: srv.URL, client: srv.Client()}
	result := runMarket(t, tool, "corn")

	if result["error"] == nil {
		t.Fatal("expected error payload for empty series")
	}
}
