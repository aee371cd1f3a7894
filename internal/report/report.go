// Package report defines the structured output produced at the end of an
// analysis run and its validation rules.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Risk levels accepted for reports and regional assessments.
const (
	RiskCritical = "Critical"
	RiskHigh     = "High"
	RiskMedium   = "Medium"
	RiskLow      = "Low"
)

// Urgency values accepted for critical actions.
const (
	UrgencyImmediate = "Immediate"
	UrgencyWeek      = "Within 7 days"
	UrgencyMonth     = "Within 30 days"
)

// Coordinates is a geographic point for the map pin.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RegionAssessment is the per-region analysis result.
type RegionAssessment struct {
	Name              string      `json:"name"`
	RiskLevel         string      `json:"riskLevel"`
	ConfidenceScore   float64     `json:"confidenceScore"`
	ShortageAmount    float64     `json:"shortageAmount"`
	SurplusAmount     *float64    `json:"surplusAmount,omitempty"`
	AffectedCrops     []string    `json:"affectedCrops"`
	RecommendedAction string      `json:"recommendedAction"`
	Coordinates       Coordinates `json:"coordinates"`
	DataQuality       string      `json:"dataQuality"`
	KeyFactors        []string    `json:"keyFactors"`
}

// CriticalAction is a recommended logistics action requiring follow-up.
type CriticalAction struct {
	Action           string `json:"action"`
	Urgency          string `json:"urgency"`
	RequiresApproval bool   `json:"requiresApproval"`
}

// Metadata describes how the report was produced.
type Metadata struct {
	ToolsUsed       []string `json:"toolsUsed"`
	ExecutionTimeMs float64  `json:"executionTimeMs"`
	ModelVersion    string   `json:"modelVersion"`
}

// Report is the terminal payload of an analysis run.
type Report struct {
	ReportID         string             `json:"reportId"`
	GeneratedAt      string             `json:"generatedAt"`
	OverallRiskLevel string             `json:"overallRiskLevel"`
	Summary          string             `json:"summary"`
	Regions          []RegionAssessment `json:"regions"`
	CriticalActions  []CriticalAction   `json:"criticalActions"`
	Metadata         Metadata           `json:"metadata"`
}

var validRiskLevels = map[string]bool{
	RiskCritical: true,
	RiskHigh:     true,
	RiskMedium:   true,
	RiskLow:      true,
}

var validUrgencies = map[string]bool{
	UrgencyImmediate: true,
	UrgencyWeek:      true,
	UrgencyMonth:     true,
}

var validDataQualities = map[string]bool{
	"High":   true,
	"Medium": true,
	"Low":    true,
}

// Validate checks the report against the schema. A failing report must be
// treated as a run-level failure by callers, never coerced into shape.
func (r *Report) Validate() error {
	if r.ReportID == "" {
		return fmt.Errorf("reportId is empty")
	}
	if r.GeneratedAt == "" {
		return fmt.Errorf("generatedAt is empty")
	}
	if !validRiskLevels[r.OverallRiskLevel] {
		return fmt.Errorf("overallRiskLevel %q is not one of Critical, High, Medium, Low", r.OverallRiskLevel)
	}
	if len(r.Regions) == 0 {
		return fmt.Errorf("regions is empty")
	}
	for i, region := range r.Regions {
		if region.Name == "" {
			return fmt.Errorf("regions[%d].name is empty", i)
		}
		if !validRiskLevels[region.RiskLevel] {
			return fmt.Errorf("regions[%d].riskLevel %q is not one of Critical, High, Medium, Low", i, region.RiskLevel)
		}
		if region.ConfidenceScore < 0 || region.ConfidenceScore > 100 {
			return fmt.Errorf("regions[%d].confidenceScore %.2f is outside [0,100]", i, region.ConfidenceScore)
		}
		if region.ShortageAmount < 0 {
			return fmt.Errorf("regions[%d].shortageAmount %.2f is negative", i, region.ShortageAmount)
		}
		if !validDataQualities[region.DataQuality] {
			return fmt.Errorf("regions[%d].dataQuality %q is not one of High, Medium, Low", i, region.DataQuality)
		}
	}
	for i, action := range r.CriticalActions {
		if action.Action == "" {
			return fmt.Errorf("criticalActions[%d].action is empty", i)
		}
		if !validUrgencies[action.Urgency] {
			return fmt.Errorf("criticalActions[%d].urgency %q is not one of Immediate, Within 7 days, Within 30 days", i, action.Urgency)
		}
	}
	if r.Metadata.ExecutionTimeMs < 0 {
		return fmt.Errorf("metadata.executionTimeMs is negative")
	}
	return nil
}

// Parse decodes model output into a validated Report. The model tends to
// wrap its JSON in markdown fences, so those are stripped first.
func Parse(content string) (*Report, error) {
	trimmed := stripFences(content)
	if trimmed == "" {
		return nil, fmt.Errorf("empty report content")
	}

	var r Report
	if err := json.Unmarshal([]byte(trimmed), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("report failed schema validation: %w", err)
	}
	return &r, nil
}

// stripFences removes a surrounding ```json ... ``` (or bare ```) block and
// falls back to the outermost braces when the model adds prose around the
// JSON object.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			return s[start : end+1]
		}
	}
	return s
}
