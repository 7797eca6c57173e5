package loom

import "time"

// Usage aggregates LLM token accounting and cost for a single node or an
// entire run, per spec.md §3.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
	APICalls         int     `json:"api_calls"`
	Model            string  `json:"model,omitempty"`
	Provider         string  `json:"provider,omitempty"`

	// ProviderRequestID is best-effort and empty when the provider does
	// not surface one; useful for correlating with provider-side logs,
	// never load-bearing for any invariant.
	ProviderRequestID string `json:"provider_request_id,omitempty"`
}

// Add accumulates other into u in place, summing every counter and taking
// the last non-empty Model/Provider seen — mirroring how the agent loop
// aggregates usage across rounds per spec.md §4.9 step 3.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Cost += other.Cost
	u.APICalls += other.APICalls
	if other.Model != "" {
		u.Model = other.Model
	}
	if other.Provider != "" {
		u.Provider = other.Provider
	}
	if other.ProviderRequestID != "" {
		u.ProviderRequestID = other.ProviderRequestID
	}
}

// NodeMetadata carries the descriptive fields attached to every
// NodeExecutionResult, per spec.md §3.
type NodeMetadata struct {
	NodeID    NodeID        `json:"node_id"`
	NodeType  string        `json:"node_type"`
	Name      string        `json:"name,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// RoundsExhausted is set by the ai/llm executor when an agent loop
	// reached max_rounds without an explicit final answer, per spec.md
	// §4.9 step 8.
	RoundsExhausted bool `json:"rounds_exhausted,omitempty"`

	// Branch records which side of a condition node ran ("true"/"false").
	Branch string `json:"branch,omitempty"`
}

// NodeExecutionResult is the uniform result every executor returns, per
// spec.md §3/§4.10.
type NodeExecutionResult struct {
	Success       bool         `json:"success"`
	Output        any          `json:"output,omitempty"`
	Error         string       `json:"error,omitempty"`
	ErrorKind     ErrorKind    `json:"error_kind,omitempty"`
	Metadata      NodeMetadata `json:"metadata"`
	Usage         *Usage       `json:"usage,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Fail is a convenience constructor for a failed NodeExecutionResult that
// keeps the metadata timing fields consistent.
func Fail(meta NodeMetadata, err error) NodeExecutionResult {
	meta.EndTime = time.Now()
	if meta.StartTime.IsZero() {
		meta.StartTime = meta.EndTime
	}
	meta.Duration = meta.EndTime.Sub(meta.StartTime)
	return NodeExecutionResult{
		Success:       false,
		Error:         err.Error(),
		ErrorKind:     Classify(err),
		Metadata:      meta,
		ExecutionTime: meta.Duration,
	}
}

// Succeed is a convenience constructor for a successful NodeExecutionResult.
func Succeed(meta NodeMetadata, output any, usage *Usage) NodeExecutionResult {
	meta.EndTime = time.Now()
	if meta.StartTime.IsZero() {
		meta.StartTime = meta.EndTime
	}
	meta.Duration = meta.EndTime.Sub(meta.StartTime)
	return NodeExecutionResult{
		Success:       true,
		Output:        output,
		Metadata:      meta,
		Usage:         usage,
		ExecutionTime: meta.Duration,
	}
}

// ExecutorOutput lets an Executor (loom/registry.Executor) report usage
// and metadata alongside its plain output value. The ai/llm, condition,
// nested_chain and loop executors return this wrapper; the tool executor
// returns its raw output value, for which the scheduler treats Usage as
// nil.
type ExecutorOutput struct {
	Value any
	Usage *Usage

	// Branch and RoundsExhausted feed straight into NodeMetadata, used
	// respectively by the condition executor and the ai/llm executor
	// when its agent loop hits max_rounds without a final answer.
	Branch          string
	RoundsExhausted bool
}

// RunResult is the top-level result of executing a whole chain, per
// spec.md §4.10.
type RunResult struct {
	Success bool                           `json:"success"`
	Output  map[NodeID]NodeExecutionResult `json:"output"`
	Error   string                         `json:"error,omitempty"`
	ErrorKind ErrorKind                    `json:"error_kind,omitempty"`
	Usage   Usage                          `json:"usage"`
}
