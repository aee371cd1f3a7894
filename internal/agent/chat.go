package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/foodguardai/foodguard/internal/report"
)

// ChatMessage is one prior turn of the advisory conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a follow-up question about a completed analysis.
// ReportContext is nil when no analysis has run yet.
type ChatRequest struct {
	Message       string
	History       []ChatMessage
	ReportContext *report.Report
}

// Chat answers a follow-up question against the current report context.
// It is a plain model call; no tools run.
func Chat(ctx context.Context, chatModel model.ToolCallingChatModel, req ChatRequest) (string, error) {
	messages := make([]*schema.Message, 0, len(req.History)+2)
	messages = append(messages, schema.SystemMessage(buildChatPrompt(req.ReportContext)))
	for _, msg := range req.History {
		if msg.Role == "user" {
			messages = append(messages, schema.UserMessage(msg.Content))
		} else {
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(req.Message))

	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat generate: %w", err)
	}
	return resp.Content, nil
}

// buildChatPrompt interpolates the report into the advisory system prompt,
// or falls back to the pre-analysis variant.
func buildChatPrompt(rep *report.Report) string {
	var b strings.Builder

	b.WriteString(`You are an expert food security analyst assistant for the FoodGuard AI system.

ROLE AND RESPONSIBILITIES:
- Provide professional, data-driven insights about food security analysis
- Explain risk levels, shortage predictions, and agricultural conditions
- Answer questions about specific regions, crops, and data sources
- Suggest actionable recommendations based on available data
- Maintain a formal, professional tone suitable for government/institutional use

COMMUNICATION STYLE:
- Be concise and precise
- Use professional terminology but explain technical concepts clearly
- Reference specific data points when available
- Acknowledge limitations when data is incomplete
- Format responses in clear paragraphs, avoid excessive bullet points unless specifically requested

`)

	if rep == nil || len(rep.Regions) == 0 {
		b.WriteString(`
CURRENT STATUS:
No analysis has been run yet. The user has not initiated a food security analysis.

INSTRUCTIONS:
- Inform the user they need to select regions and run an analysis first
- Explain what the analysis will provide
- Answer general questions about food security, agricultural risks, or the FoodGuard AI system
- Suggest they click "Initiate Analysis" to get specific insights for their selected regions
`)
		return b.String()
	}

	fmt.Fprintf(&b, "\nCURRENT ANALYSIS CONTEXT:\n")
	fmt.Fprintf(&b, "Report ID: %s\n", orNA(rep.ReportID))
	fmt.Fprintf(&b, "Generated: %s\n", orNA(rep.GeneratedAt))
	fmt.Fprintf(&b, "Overall Risk Level: %s\n", orNA(rep.OverallRiskLevel))
	summary := rep.Summary
	if summary == "" {
		summary = "No summary available"
	}
	fmt.Fprintf(&b, "Summary: %s\n\n", summary)

	b.WriteString("REGIONAL ANALYSIS DATA:\n")
	for i, region := range rep.Regions {
		fmt.Fprintf(&b, "\n%d. %s:\n", i+1, region.Name)
		fmt.Fprintf(&b, "   - Risk Level: %s\n", region.RiskLevel)
		fmt.Fprintf(&b, "   - Confidence Score: %g%%\n", region.ConfidenceScore)
		fmt.Fprintf(&b, "   - Predicted Shortage: %g metric tons\n", region.ShortageAmount)
		fmt.Fprintf(&b, "   - Affected Crops: %s\n", joinOr(region.AffectedCrops, "Not specified"))
		fmt.Fprintf(&b, "   - Key Factors: %s\n", joinOr(region.KeyFactors, "Not specified"))
		fmt.Fprintf(&b, "   - Recommended Action: %s\n", region.RecommendedAction)
	}

	if len(rep.CriticalActions) > 0 {
		b.WriteString("\nCRITICAL ACTIONS REQUIRED:\n")
		for i, action := range rep.CriticalActions {
			fmt.Fprintf(&b, "%d. %s (Urgency: %s)\n", i+1, action.Action, action.Urgency)
		}
	}

	b.WriteString(`
INSTRUCTIONS:
- Use this data to answer questions accurately
- Reference specific regions and metrics when relevant
- If asked about a region not in the analysis, acknowledge it's not in the current report
- Explain risk factors in terms of their real-world agricultural impact
- Prioritize human food security and safety in all recommendations
`)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
