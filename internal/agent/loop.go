package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	einoagent "github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	ub "github.com/cloudwego/eino/utils/callbacks"

	"github.com/foodguardai/foodguard/internal/config"
	"github.com/foodguardai/foodguard/internal/report"
)

const analystPrompt = `You are FoodGuard AI, an expert food security analyst for Pakistan's agricultural system.

Your mission: Analyze regional food supply chains to predict and prevent shortages.

AVAILABLE TOOLS:
- get_weather_data: Check rainfall, temperature, humidity for crop yield prediction
- get_market_prices: Monitor price fluctuations indicating supply/demand imbalance
- get_warehouse_stock: Verify current food reserves
- get_production_forecast: Predict upcoming harvest yields
- get_historical_shortage_data: Learn from past shortage patterns
- get_crop_health: Analyze crop health and climate stress using satellite data

ANALYSIS PROTOCOL:
1. **Data Collection**: Always gather weather, market, stock, and production data
2. **Pattern Recognition**: Compare current data with historical trends
3. **Risk Assessment**: Calculate shortage probability (High >70%, Medium 30-70%, Low <30%)
4. **Recommendations**: Provide actionable logistics recommendations

CRITICAL RULES:
- Never predict without checking ALL relevant data sources
- Always express confidence levels in your predictions
- Prioritize human safety - err on the side of caution
- When recommending food transfers >1000 tons, request human approval
- Use metric tons for all quantity measurements
- Include confidence scores (0-100%) in all predictions
- The 'coordinates' field in the output MUST be valid lat/lng for the region (e.g. Lahore: 31.5204, 74.3587).

OUTPUT FORMAT:
Your final answer MUST be a single JSON object and nothing else. No prose
before or after it. The object has this shape:

{
  "reportId": string,
  "generatedAt": string (RFC 3339),
  "overallRiskLevel": "Critical" | "High" | "Medium" | "Low",
  "summary": string (2-3 sentence executive summary),
  "regions": [{
    "name": string,
    "riskLevel": "Critical" | "High" | "Medium" | "Low",
    "confidenceScore": number (0-100),
    "shortageAmount": number (metric tons),
    "surplusAmount": number (optional, metric tons),
    "affectedCrops": [string],
    "recommendedAction": string,
    "coordinates": {"lat": number, "lng": number},
    "dataQuality": "High" | "Medium" | "Low",
    "keyFactors": [string]
  }],
  "criticalActions": [{
    "action": string,
    "urgency": "Immediate" | "Within 7 days" | "Within 30 days",
    "requiresApproval": boolean
  }],
  "metadata": {"toolsUsed": [string], "executionTimeMs": number, "modelVersion": string}
}`

// AnalysisRequest describes one analysis run.
type AnalysisRequest struct {
	Regions   []string
	DateRange string
	ThreadID  string
}

// Loop builds and executes the ReAct analysis agent.
type Loop struct {
	chatModel model.ToolCallingChatModel
	tools     []tool.BaseTool
	cfg       config.AgentConfig
	logger    *slog.Logger
}

// NewLoop creates a new Loop.
func NewLoop(chatModel model.ToolCallingChatModel, tools []tool.BaseTool, cfg config.AgentConfig, logger *slog.Logger) *Loop {
	return &Loop{
		chatModel: chatModel,
		tools:     tools,
		cfg:       cfg,
		logger:    logger,
	}
}

// Stream starts an analysis run and returns its step stream. The run is
// produced on a goroutine; closing the stream cancels it. The stream ends
// with a Report step on success or an error from Recv on failure.
func (l *Loop) Stream(ctx context.Context, req AnalysisRequest) StepStream {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StreamDeadline)
	rs := newRunStream(cancel)
	go l.run(ctx, cancel, req, rs)
	return rs
}

func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, req AnalysisRequest, rs *runStream) {
	defer cancel()
	started := time.Now()

	l.logger.Info("starting analysis run",
		"thread_id", req.ThreadID, "regions", req.Regions)

	var toolsUsed usedSet
	ra, err := l.buildAgent(ctx)
	if err != nil {
		rs.finish(fmt.Errorf("build agent: %w", err))
		return
	}

	result, err := ra.Generate(ctx,
		[]*schema.Message{schema.UserMessage(analysisPrompt(req))},
		einoagent.WithComposeOptions(compose.WithCallbacks(l.stepHandler(ctx, rs, &toolsUsed))))
	if err != nil {
		rs.finish(fmt.Errorf("agent generate: %w", err))
		return
	}

	rep, err := report.Parse(result.Content)
	if err != nil {
		l.logger.Error("final answer rejected", "thread_id", req.ThreadID, "error", err)
		rs.finish(fmt.Errorf("final report: %w", err))
		return
	}
	if len(rep.Metadata.ToolsUsed) == 0 {
		rep.Metadata.ToolsUsed = toolsUsed.names()
	}
	if rep.Metadata.ExecutionTimeMs == 0 {
		rep.Metadata.ExecutionTimeMs = float64(time.Since(started).Milliseconds())
	}

	rs.emit(ctx, &Step{Report: rep})
	rs.finish(nil)

	l.logger.Info("analysis run completed",
		"thread_id", req.ThreadID, "report_id", rep.ReportID,
		"duration_ms", time.Since(started).Milliseconds())
}

// Quick runs a non-streaming single-region analysis.
func (l *Loop) Quick(ctx context.Context, region string) (*report.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QuickDeadline)
	defer cancel()

	ra, err := l.buildAgent(ctx)
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}

	req := AnalysisRequest{Regions: []string{region}}
	result, err := ra.Generate(ctx, []*schema.Message{schema.UserMessage(analysisPrompt(req))})
	if err != nil {
		return nil, fmt.Errorf("agent generate: %w", err)
	}

	rep, err := report.Parse(result.Content)
	if err != nil {
		return nil, fmt.Errorf("final report: %w", err)
	}
	return rep, nil
}

func (l *Loop) buildAgent(ctx context.Context) (*react.Agent, error) {
	return react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: l.chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: l.tools,
		},
		MessageModifier: func(ctx context.Context, input []*schema.Message) []*schema.Message {
			res := make([]*schema.Message, 0, len(input)+1)
			res = append(res, schema.SystemMessage(analystPrompt))
			res = append(res, input...)
			return res
		},
		MaxStep: l.cfg.MaxSteps,
	})
}

// stepHandler translates model and tool callbacks into Steps on rs.
func (l *Loop) stepHandler(ctx context.Context, rs *runStream, used *usedSet) callbacks.Handler {
	modelCb := &ub.ModelCallbackHandler{
		OnEnd: func(cbCtx context.Context, _ *callbacks.RunInfo, output *model.CallbackOutput) context.Context {
			if output == nil || output.Message == nil {
				return cbCtx
			}
			for _, step := range modelSteps(output.Message) {
				rs.emit(ctx, step)
			}
			return cbCtx
		},
	}
	toolCb := &ub.ToolCallbackHandler{
		OnEnd: func(cbCtx context.Context, info *callbacks.RunInfo, output *tool.CallbackOutput) context.Context {
			name := ""
			if info != nil {
				name = info.Name
			}
			content := ""
			if output != nil {
				content = output.Response
			}
			used.add(name)
			rs.emit(ctx, &Step{ToolResult: &ToolResult{Name: name, Content: content}})
			return cbCtx
		},
	}
	return ub.NewHandlerHelper().ChatModel(modelCb).Tool(toolCb).Handler()
}

// modelSteps translates one model message into steps. Tool calls and text
// content are independent: a message carrying both (Anthropic and Gemini
// emit text alongside tool-use blocks) yields a step for each, tool calls
// first.
func modelSteps(msg *schema.Message) []*Step {
	var steps []*Step
	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		steps = append(steps, &Step{ToolCalls: calls})
	}
	if msg.Content != "" {
		steps = append(steps, &Step{Thinking: msg.Content})
	}
	return steps
}

func analysisPrompt(req AnalysisRequest) string {
	dateRange := req.DateRange
	if dateRange == "" {
		dateRange = "next 30 days"
	}
	return fmt.Sprintf("Analyze food security for regions: %s. Date range: %s",
		strings.Join(req.Regions, ", "), dateRange)
}

// usedSet records which tools ran, in first-use order.
type usedSet struct {
	mu    sync.Mutex
	seen  map[string]bool
	order []string
}

func (u *usedSet) add(name string) {
	if name == "" {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.seen == nil {
		u.seen = make(map[string]bool)
	}
	if !u.seen[name] {
		u.seen[name] = true
		u.order = append(u.order, name)
	}
}

func (u *usedSet) names() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.order...)
}
