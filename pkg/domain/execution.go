package domain

// ExecutionResult is the terminal output of one workflow run. Every failure
// path still produces a well-formed result with a summary; callers never see
// a raw stack trace or a credential value.
type ExecutionResult struct {
	ExecutionID int64             `json:"executionId"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Data        any               `json:"data,omitempty"`
	Summary     *ExecutionSummary `json:"summary,omitempty"`
}

type ExecutionSummary struct {
	DurationMS           int64                `json:"durationMs"`
	LineCount            int                  `json:"lineCount"`
	BubbleExecutionCount int                  `json:"bubbleExecutionCount"`
	ErrorCount           int                  `json:"errorCount"`
	WarningCount         int                  `json:"warningCount"`
	TotalCostUSD         float64              `json:"totalCostUsd"`
	ServiceUsage         []ServiceUsageRecord `json:"serviceUsage"`
	CostByService        map[string]float64   `json:"costByService,omitempty"`
}

// EmptySummary is the zero-count summary attached to runs rejected before
// any bubble executed.
func EmptySummary() *ExecutionSummary {
	return &ExecutionSummary{
		ServiceUsage:  []ServiceUsageRecord{},
		CostByService: map[string]float64{},
	}
}

type PricingEntry struct {
	Unit        string  `json:"unit"`
	UnitCostUSD float64 `json:"unit_cost_usd"`
}

// PricingTable maps a billable service key to its unit price. Callers may
// pass their own table; DefaultPricingTable is used otherwise.
type PricingTable map[string]PricingEntry

func DefaultPricingTable() PricingTable {
	return PricingTable{
		"resend":     {Unit: "emails", UnitCostUSD: 0.001},
		"slack":      {Unit: "messages", UnitCostUSD: 0.0005},
		"telegram":   {Unit: "messages", UnitCostUSD: 0.0005},
		"postgresql": {Unit: "queries", UnitCostUSD: 0.0002},
		"redis":      {Unit: "commands", UnitCostUSD: 0.0001},
		"http":       {Unit: "requests", UnitCostUSD: 0.0001},
		"openai":     {Unit: "tokens", UnitCostUSD: 0.000002},
	}
}

// Cost prices a usage record, falling back to zero cost for services missing
// from the table.
func (t PricingTable) Cost(service string, units int64) float64 {
	entry, ok := t[service]
	if !ok {
		return 0
	}

	return entry.UnitCostUSD * float64(units)
}

// BubbleParameterInfo carries per-instantiation parameter overrides supplied
// by the caller (typically the parameter-configuration agent), keyed by
// variable id.
type BubbleParameterInfo struct {
	VariableID int            `json:"variable_id"`
	BubbleName BubbleName     `json:"bubble_name"`
	Params     map[string]any `json:"params"`
}

// StreamCallback receives ordered lifecycle events during a run. Delivery is
// fire-and-forget: a slow consumer never blocks the runner.
type StreamCallback func(event StreamEvent)

type RunWorkflowOptions struct {
	UserID          string
	AppType         string
	PricingTable    PricingTable
	StreamCallback  StreamCallback
	EvalPerformance bool
}

type RunWorkflowParams struct {
	ScriptSource     string
	BubbleParameters map[int]BubbleParameterInfo
	TriggerPayload   map[string]any
	Options          RunWorkflowOptions
}
