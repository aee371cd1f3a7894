package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// servePower builds a NASA POWER daily response with n days of the given
// constant values plus one -999 sentinel day per parameter.
func servePower(t *testing.T, n int, temp, rain, hum, wind, solar float64) *httptest.Server {
	t.Helper()
	day := func(v float64) map[string]float64 {
		m := map[string]float64{"19990101": -999}
		for i := 0; i < n; i++ {
			m[fmt.Sprintf("202501%02d", i+1)] = v
		}
		return m
	}
	payload := map[string]any{
		"properties": map[string]any{
			"parameter": map[string]any{
				"T2M":               day(temp),
				"T2M_MAX":           day(temp + 8),
				"T2M_MIN":           day(temp - 8),
				"PRECTOTCORR":       day(rain),
				"RH2M":              day(hum),
				"WS2M":              day(wind),
				"ALLSKY_SFC_SW_DWN": day(solar),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(body)
	}))
}

func runCropHealth(t *testing.T, tool *CropHealthTool, args string) map[string]any {
	t.Helper()
	out, err := tool.InvokableRun(context.Background(), args)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return result
}

func TestCropHealthScoresFavorableConditions(t *testing.T) {
	// 30 days at 24C, 2mm/day rain, 60% humidity, 20 MJ solar: every bucket
	// lands in its optimal band so the score maxes out.
	srv := servePower(t, 30, 24, 2, 60, 3, 20)
	defer srv.Close()

	tool := &CropHealthTool{baseURL: srv.URL, client: srv.Client()}
	result := runCropHealth(t, tool, `{"region":"Punjab"}`)

	if result["error"] != nil {
		t.Fatalf("unexpected error payload: %v", result["error"])
	}
	if result["region"] != "Punjab Province" {
		t.Errorf("region = %v", result["region"])
	}
	if result["cropHealthScore"].(float64) != 100 {
		t.Errorf("score = %v, want 100", result["cropHealthScore"])
	}
	if result["condition"] != "Excellent" {
		t.Errorf("condition = %v", result["condition"])
	}
	risks := result["risks"].([]any)
	if len(risks) != 1 || risks[0] != "No significant risks detected" {
		t.Errorf("risks = %v", risks)
	}
	// Sentinel days must not leak into the metrics.
	metrics := result["metrics"].(map[string]any)
	temps := metrics["temperature"].(map[string]any)
	if temps["average"].(float64) != 24 {
		t.Errorf("avg temp = %v, want 24 (sentinel filtered)", temps["average"])
	}
}

func TestCropHealthFlagsDroughtAndHeat(t *testing.T) {
	// 34C average with max 42C and no rain: drought plus critical heat.
	srv := servePower(t, 30, 34, 0, 20, 3, 28)
	defer srv.Close()

	tool := &CropHealthTool{baseURL: srv.URL, client: srv.Client()}
	result := runCropHealth(t, tool, `{"region":"sindh","daysBack":30}`)

	score := result["cropHealthScore"].(float64)
	if score >= 50 {
		t.Errorf("score = %v, want < 50 under drought and heat", score)
	}
	var found struct{ drought, heat bool }
	for _, r := range result["risks"].([]any) {
		s := r.(string)
		if s == "Critical drought - irrigation urgent" {
			found.drought = true
		}
		if s == "Critical heat stress - crop damage likely (>40°C)" {
			found.heat = true
		}
	}
	if !found.drought || !found.heat {
		t.Errorf("risks = %v, want drought and heat flags", result["risks"])
	}
	recs := result["recommendations"].([]any)
	if recs[0] != "Consider supplemental irrigation" {
		t.Errorf("recommendations = %v", recs)
	}
}

func TestCropHealthUnknownRegion(t *testing.T) {
	tool := &CropHealthTool{baseURL: "http://unused.invalid", client: http.DefaultClient}
	result := runCropHealth(t, tool, `{"region":"Narnia"}`)

	if result["error"] == nil {
		t.Fatal("expected error payload for unknown region")
	}
	if result["dataQuality"] != "Low" {
		t.Errorf("dataQuality = %v, want Low", result["dataQuality"])
	}
}

func TestScoreCropHealthBounds(t *testing.T) {
	if got := scoreCropHealth(24, 120, 80, 60, 20); got != 100 {
		t.Errorf("optimal score = %v, want clamped to 100", got)
	}
	if got := scoreCropHealth(45, 10, 5, 10, 5); got != 0 {
		t.Errorf("worst score = %v, want clamped to 0", got)
	}
}
