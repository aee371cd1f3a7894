package report

import (
	"strings"
	"testing"
)

func validReport() *Report {
	return &Report{
		ReportID:         "rpt-001",
		GeneratedAt:      "2026-01-15T10:00:00Z",
		OverallRiskLevel: RiskMedium,
		Summary:          "Supply is stable with localized stress.",
		Regions: []RegionAssessment{
			{
				Name:              "Lahore",
				RiskLevel:         RiskMedium,
				ConfidenceScore:   82,
				ShortageAmount:    1200,
				AffectedCrops:     []string{"wheat"},
				RecommendedAction: "Move 1200t of wheat from Multan reserves.",
				Coordinates:       Coordinates{Lat: 31.5204, Lng: 74.3587},
				DataQuality:       "High",
				KeyFactors:        []string{"low rainfall"},
			},
		},
		CriticalActions: []CriticalAction{
			{Action: "Pre-position wheat stock", Urgency: UrgencyWeek, RequiresApproval: true},
		},
		Metadata: Metadata{
			ToolsUsed:       []string{"get_weather_data"},
			ExecutionTimeMs: 1540,
			ModelVersion:    "gemini-2.5-flash",
		},
	}
}

func TestValidateAcceptsWellFormedReport(t *testing.T) {
	if err := validReport().Validate(); err != nil {
		t.Fatalf("expected valid report, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Report)
		want   string
	}{
		{"empty report id", func(r *Report) { r.ReportID = "" }, "reportId"},
		{"bad overall risk", func(r *Report) { r.OverallRiskLevel = "Severe" }, "overallRiskLevel"},
		{"no regions", func(r *Report) { r.Regions = nil }, "regions is empty"},
		{"confidence over 100", func(r *Report) { r.Regions[0].ConfidenceScore = 101 }, "confidenceScore"},
		{"negative confidence", func(r *Report) { r.Regions[0].ConfidenceScore = -1 }, "confidenceScore"},
		{"negative shortage", func(r *Report) { r.Regions[0].ShortageAmount = -5 }, "shortageAmount"},
		{"bad region risk", func(r *Report) { r.Regions[0].RiskLevel = "high" }, "riskLevel"},
		{"bad data quality", func(r *Report) { r.Regions[0].DataQuality = "Unknown" }, "dataQuality"},
		{"bad urgency", func(r *Report) { r.CriticalActions[0].Urgency = "ASAP" }, "urgency"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validReport()
			tc.mutate(r)
			err := r.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseStripsMarkdownFences(t *testing.T) {
	body := "```json\n" + `{
		"reportId": "rpt-002",
		"generatedAt": "2026-01-15T10:00:00Z",
		"overallRiskLevel": "Low",
		"summary": "ok",
		"regions": [{
			"name": "Karachi",
			"riskLevel": "Low",
			"confidenceScore": 90,
			"shortageAmount": 0,
			"affectedCrops": [],
			"recommendedAction": "none",
			"coordinates": {"lat": 24.86, "lng": 67.0},
			"dataQuality": "Medium",
			"keyFactors": []
		}],
		"criticalActions": [],
		"metadata": {"toolsUsed": [], "executionTimeMs": 10, "modelVersion": "m"}
	}` + "\n```"

	r, err := Parse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.ReportID != "rpt-002" {
		t.Errorf("unexpected report id %q", r.ReportID)
	}
	if r.Regions[0].Name != "Karachi" {
		t.Errorf("unexpected region %q", r.Regions[0].Name)
	}
}

func TestParseExtractsObjectFromProse(t *testing.T) {
	body := `Here is the report: {"reportId":"rpt-003","generatedAt":"t","overallRiskLevel":"Low","summary":"s","regions":[{"name":"Multan","riskLevel":"Low","confidenceScore":50,"shortageAmount":0,"affectedCrops":[],"recommendedAction":"n","coordinates":{"lat":1,"lng":2},"dataQuality":"Low","keyFactors":[]}],"criticalActions":[],"metadata":{"toolsUsed":[],"executionTimeMs":0,"modelVersion":"m"}} Let me know.`

	r, err := Parse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.ReportID != "rpt-003" {
		t.Errorf("unexpected report id %q", r.ReportID)
	}
}

func TestParseRejectsSchemaViolation(t *testing.T) {
	body := `{"reportId":"rpt-004","generatedAt":"t","overallRiskLevel":"Low","summary":"s","regions":[],"criticalActions":[],"metadata":{"toolsUsed":[],"executionTimeMs":0,"modelVersion":"m"}}`

	_, err := Parse(body)
	if err == nil {
		t.Fatalf("expected schema validation failure for empty regions")
	}
}

func TestParseRejectsNonJSON(t *testing.T) {
	if _, err := Parse("the harvest looks fine"); err == nil {
		t.Fatalf("expected parse failure for prose content")
	}
}
