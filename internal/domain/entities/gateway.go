package entities

// Message is one role/content turn sent to the reasoning API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GatewayRequest is built fresh for every logical call.
type GatewayRequest struct {
	SystemPrompt    string
	Messages        []Message
	Model           string
	MaxOutputTokens int
	ThinkingBudget  int
	CachingEnabled  bool
	// Subsystem labels logs and metrics only.
	Subsystem Subsystem
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GatewayResponse is the non-streaming result of a reasoning call.
type GatewayResponse struct {
	Text       string
	Thinking   string
	Model      string
	StatusCode int
	StopReason string
	Usage      Usage
}

// StreamEventType tags an incremental generation event.
type StreamEventType string

const (
	StreamEventStatus   StreamEventType = "status"
	StreamEventThinking StreamEventType = "thinking"
	StreamEventToolUse  StreamEventType = "tool_use"
	StreamEventText     StreamEventType = "text"
	StreamEventError    StreamEventType = "error"
	StreamEventEnd      StreamEventType = "end"
)

// StreamEvent is one event of a streaming generation.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content"`
	// Err is set on terminal error events only.
	Err error `json:"-"`
}

// IsTerminalError reports whether the event ends the stream with a failure.
func (e StreamEvent) IsTerminalError() bool {
	return e.Type == StreamEventError || e.Err != nil
}
