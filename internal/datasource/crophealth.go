package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// regionCoords maps province-level regions to representative coordinates
// for the NASA POWER point API.
var regionCoords = map[string]struct {
	Lat  float64
	Lon  float64
	Name string
}{
	"punjab":      {31.1471, 72.7869, "Punjab Province"},
	"sindh":       {25.8943, 68.5247, "Sindh Province"},
	"kpk":         {34.9526, 72.3311, "Khyber Pakhtunkhwa"},
	"balochistan": {28.4894, 65.0961, "Balochistan Province"},
	"gilgit":      {35.9208, 74.3082, "Gilgit-Baltistan"},
	"kashmir":     {33.7782, 73.9761, "Azad Kashmir"},
}

// CropHealthTool analyzes agro-meteorological conditions from the NASA
// POWER daily point API and produces a 0-100 crop health score.
type CropHealthTool struct {
	baseURL  string
	client   *http.Client
	observer Observer
}

var _ tool.InvokableTool = (*CropHealthTool)(nil)

// Info returns tool metadata for model planning.
func (t *CropHealthTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolCropHealth,
		Desc: "Analyzes crop health using NASA satellite agricultural data including temperature, rainfall, humidity, solar radiation, and Growing Degree Days. Provides health score and risk assessment.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"region": {
				Type:     schema.String,
				Desc:     "Region name (e.g. 'Punjab', 'Sindh', 'KPK', 'Balochistan', 'Gilgit', 'Kashmir')",
				Required: true,
			},
			"daysBack": {
				Type: schema.Integer,
				Desc: "Number of days to analyze (default: 30)",
			},
		}),
	}, nil
}

// InvokableRun fetches the daily series and scores it.
func (t *CropHealthTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Region   string `json:"region"`
		DaysBack int    `json:"daysBack"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return finish(ToolCropHealth, argumentsInJSON, t.observer,
			errorResult(fmt.Sprintf("Crop health data unavailable: bad arguments: %v", err), nil))
	}
	if args.DaysBack <= 0 {
		args.DaysBack = 30
	}
	return finish(ToolCropHealth, argumentsInJSON, t.observer, t.run(ctx, args.Region, args.DaysBack))
}

func (t *CropHealthTool) run(ctx context.Context, region string, daysBack int) map[string]any {
	fail := func(err error) map[string]any {
		return errorResult(fmt.Sprintf("Crop health data unavailable: %v", err), map[string]any{"region": region})
	}

	rc, ok := regionCoords[lowerTrim(region)]
	if !ok {
		return fail(fmt.Errorf("unknown region: %s", region))
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -daysBack)
	rawURL := fmt.Sprintf(
		"%s/api/temporal/daily/point?parameters=T2M,T2M_MAX,T2M_MIN,PRECTOTCORR,RH2M,WS2M,ALLSKY_SFC_SW_DWN&community=AG&longitude=%g&latitude=%g&start=%s&end=%s&format=JSON",
		t.baseURL, rc.Lon, rc.Lat, start.Format("20060102"), end.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("NASA POWER API error: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("NASA POWER API error: status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fail(err)
	}

	var payload struct {
		Properties struct {
			Parameter map[string]map[string]float64 `json:"parameter"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}

	params := payload.Properties.Parameter
	temps := filterValues(params["T2M"], -50, 60)
	maxTemps := filterValues(params["T2M_MAX"], -50, 60)
	minTemps := filterValues(params["T2M_MIN"], -50, 60)
	rainfall := filterValues(params["PRECTOTCORR"], 0, 500)
	humidity := filterValues(params["RH2M"], 0, 100)
	windSpeed := filterValues(params["WS2M"], 0, 50)
	solar := filterValues(params["ALLSKY_SFC_SW_DWN"], 0, 45)

	avgTemp := meanOr(temps, 25)
	maxTemp := maxOr(maxTemps, 35)
	minTemp := minOr(minTemps, 15)
	totalRainfall := sum(rainfall)
	avgHumidity := meanOr(humidity, 60)
	avgWindSpeed := meanOr(windSpeed, 3)
	avgSolar := meanOr(solar, 20)

	// Growing degree days, base 10C.
	var gdd float64
	for _, temp := range temps {
		gdd += math.Max(0, temp-10)
	}

	score := scoreCropHealth(avgTemp, gdd, totalRainfall, avgHumidity, avgSolar)

	condition := "Poor"
	switch {
	case score > 75:
		condition = "Excellent"
	case score > 60:
		condition = "Good"
	case score > 45:
		condition = "Fair"
	}

	risks := assessCropRisks(totalRainfall, maxTemp, minTemp, avgTemp, avgHumidity, avgWindSpeed)

	recommendations := []string{"Maintain current practices", "Continue monitoring"}
	if score < 50 {
		recommendations = []string{
			"Consider supplemental irrigation",
			"Monitor crop stress indicators",
			"Adjust fertilization schedule",
		}
	}

	return map[string]any{
		"region":      rc.Name,
		"coordinates": map[string]any{"lat": rc.Lat, "lon": rc.Lon},
		"period": map[string]any{
			"start": start.Format("2006-01-02"),
			"end":   end.Format("2006-01-02"),
			"days":  daysBack,
		},
		"metrics": map[string]any{
			"temperature": map[string]any{
				"average": round2(avgTemp),
				"maximum": round2(maxTemp),
				"minimum": round2(minTemp),
				"unit":    "°C",
			},
			"rainfall": map[string]any{
				"total":         round2(totalRainfall),
				"daily_average": round2(totalRainfall / float64(daysBack)),
				"unit":          "mm",
			},
			"humidity":          map[string]any{"average": round2(avgHumidity), "unit": "%"},
			"wind":              map[string]any{"average": round2(avgWindSpeed), "unit": "m/s"},
			"solarRadiation":    map[string]any{"average": round2(avgSolar), "unit": "MJ/m²/day"},
			"growingDegreeDays": round2(gdd),
		},
		"cropHealthScore": score,
		"condition":       condition,
		"risks":           risks,
		"recommendations": recommendations,
		"dataQuality":     "High",
		"source":          "NASA POWER Agricultural Meteorology",
	}
}

// scoreCropHealth builds the 0-100 score from agro-meteorological indices.
// Weights: temperature 25%, GDD 20%, rainfall 25%, humidity 15%, solar 15%.
func scoreCropHealth(avgTemp, gdd, totalRainfall, avgHumidity, avgSolar float64) float64 {
	score := 50.0

	// Optimal 18-28C for the main Pakistani crops.
	switch {
	case avgTemp >= 18 && avgTemp <= 28:
		score += 25
	case avgTemp >= 15 && avgTemp <= 32:
		score += 15
	case avgTemp >= 10 && avgTemp <= 38:
		score += 5
	case avgTemp < 5 || avgTemp > 40:
		score -= 20
	}

	// ~100-150 GDD expected over a 30-day window.
	switch {
	case gdd >= 80 && gdd <= 150:
		score += 20
	case gdd >= 50 && gdd <= 180:
		score += 10
	case gdd < 40 || gdd > 200:
		score -= 10
	}

	// Optimal 40-120mm over the window.
	switch {
	case totalRainfall >= 40 && totalRainfall <= 120:
		score += 25
	case totalRainfall >= 25 && totalRainfall <= 150:
		score += 15
	case totalRainfall >= 10 && totalRainfall <= 200:
		score += 5
	case totalRainfall < 10:
		score -= 20
	case totalRainfall > 200:
		score -= 15
	}

	// Optimal 50-70% for transpiration balance.
	switch {
	case avgHumidity >= 50 && avgHumidity <= 70:
		score += 15
	case avgHumidity >= 40 && avgHumidity <= 80:
		score += 8
	case avgHumidity < 30:
		score -= 15
	case avgHumidity > 85:
		score -= 10
	}

	// Optimal 18-24 MJ/m²/day for photosynthesis.
	switch {
	case avgSolar >= 18 && avgSolar <= 24:
		score += 15
	case avgSolar >= 15 && avgSolar <= 26:
		score += 8
	}

	return math.Min(100, math.Max(0, score))
}

func assessCropRisks(totalRainfall, maxTemp, minTemp, avgTemp, avgHumidity, avgWindSpeed float64) []string {
	var risks []string

	switch {
	case totalRainfall < 15:
		risks = append(risks, "Critical drought - irrigation urgent")
	case totalRainfall < 25:
		risks = append(risks, "Moderate drought stress - monitor soil moisture")
	}

	switch {
	case maxTemp > 40:
		risks = append(risks, "Critical heat stress - crop damage likely (>40°C)")
	case maxTemp > 38:
		risks = append(risks, "Severe heat stress - reduce transplanting activity")
	case maxTemp > 35:
		risks = append(risks, "Moderate heat stress - increase irrigation frequency")
	}

	switch {
	case minTemp < 0:
		risks = append(risks, "Frost risk - frost protection measures needed")
	case minTemp < 5 && avgTemp < 15:
		risks = append(risks, "Cold stress - crop development slowed")
	}

	switch {
	case avgHumidity > 85 && avgTemp > 22 && avgTemp < 32:
		risks = append(risks, "Critical fungal disease risk - apply preventive fungicides")
	case avgHumidity > 75 && avgTemp > 25:
		risks = append(risks, "High pest/disease risk - increase monitoring")
	}

	switch {
	case totalRainfall > 200:
		risks = append(risks, "Waterlogging risk - flooding possible, ensure drainage")
	case totalRainfall > 150:
		risks = append(risks, "Excess water stress - monitor for waterlogging")
	}

	switch {
	case avgWindSpeed > 12:
		risks = append(risks, "High wind risk - structural crop damage possible")
	case avgWindSpeed > 10:
		risks = append(risks, "Moderate wind risk - monitor young plants")
	}

	if len(risks) == 0 {
		risks = []string{"No significant risks detected"}
	}
	return risks
}

// filterValues drops sentinel values (the API uses -999 for missing days).
func filterValues(series map[string]float64, lo, hi float64) []float64 {
	var out []float64
	for _, v := range series {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

func meanOr(vals []float64, fallback float64) float64 {
	if len(vals) == 0 {
		return fallback
	}
	return sum(vals) / float64(len(vals))
}

func maxOr(vals []float64, fallback float64) float64 {
	if len(vals) == 0 {
		return fallback
	}
	out := vals[0]
	for _, v := range vals[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func minOr(vals []float64, fallback float64) float64 {
	if len(vals) == 0 {
		return fallback
	}
	out := vals[0]
	for _, v := range vals[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}
