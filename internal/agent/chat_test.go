package agent

import (
	"strings"
	"testing"

	"github.com/foodguardai/foodguard/internal/report"
)

func TestBuildChatPromptWithoutReport(t *testing.T) {
	prompt := buildChatPrompt(nil)

	if !strings.Contains(prompt, "No analysis has been run yet") {
		t.Error("missing pre-analysis status block")
	}
	if strings.Contains(prompt, "CURRENT ANALYSIS CONTEXT") {
		t.Error("report context must not appear without a report")
	}
}

func TestBuildChatPromptInterpolatesReport(t *testing.T) {
	rep := &report.Report{
		ReportID:         "rpt-42",
		GeneratedAt:      "2026-08-30T10:00:00Z",
		OverallRiskLevel: report.RiskHigh,
		Summary:          "Wheat shortfall expected in two provinces.",
		Regions: []report.RegionAssessment{
			{
				Name:              "Punjab",
				RiskLevel:         report.RiskHigh,
				ConfidenceScore:   82,
				ShortageAmount:    3400,
				AffectedCrops:     []string{"wheat", "rice"},
				KeyFactors:        []string{"drought", "low reserves"},
				RecommendedAction: "Move 2000 tons from Sindh reserves",
			},
		},
		CriticalActions: []report.CriticalAction{
			{Action: "Approve inter-province transfer", Urgency: report.UrgencyImmediate, RequiresApproval: true},
		},
	}

	prompt := buildChatPrompt(rep)

	for _, want := range []string{
		"Report ID: rpt-42",
		"Overall Risk Level: High",
		"1. Punjab:",
		"Confidence Score: 82%",
		"Predicted Shortage: 3400 metric tons",
		"Affected Crops: wheat, rice",
		"Key Factors: drought, low reserves",
		"1. Approve inter-province transfer (Urgency: Immediate)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "No analysis has been run yet") {
		t.Error("pre-analysis block must not appear with a report")
	}
}

func TestBuildChatPromptFallbacks(t *testing.T) {
	rep := &report.Report{
		Regions: []report.RegionAssessment{{Name: "Sindh", RiskLevel: report.RiskLow}},
	}

	prompt := buildChatPrompt(rep)

	for _, want := range []string{
		"Report ID: N/A",
		"Summary: No summary available",
		"Affected Crops: Not specified",
		"Key Factors: Not specified",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
