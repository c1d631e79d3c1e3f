package domain

import "context"

type StreamEventType string

const (
	StreamEventTypeLine                    StreamEventType = "line"
	StreamEventTypeBubbleExecutionStart    StreamEventType = "bubble_execution_start"
	StreamEventTypeBubbleExecutionComplete StreamEventType = "bubble_execution_complete"
	StreamEventTypeWarn                    StreamEventType = "warn"
	StreamEventTypeError                   StreamEventType = "error"
	StreamEventTypeFatal                   StreamEventType = "fatal"
	StreamEventTypeExecutionComplete       StreamEventType = "execution_complete"
)

// StreamEvent is one ordered lifecycle event. Event order is assigned by the
// stream publisher at emission time and reflects actual execution order.
type StreamEvent interface {
	GetEventType() StreamEventType
	GetEventOrder() int
	SetEventOrder(order int)
}

// BaseEvent carries the fields shared by every stream event.
type BaseEvent struct {
	ExecutionID int64 `json:"execution_id"`
	Timestamp   int64 `json:"timestamp"`
	EventOrder  int   `json:"event_order"`
}

func (e *BaseEvent) GetEventOrder() int      { return e.EventOrder }
func (e *BaseEvent) SetEventOrder(order int) { e.EventOrder = order }

type LineEvent struct {
	BaseEvent
	LineNumber int    `json:"line_number"`
	Message    string `json:"message,omitempty"`
}

func (e *LineEvent) GetEventType() StreamEventType { return StreamEventTypeLine }

type BubbleExecutionStartEvent struct {
	BaseEvent
	VariableID   int    `json:"variable_id"`
	BubbleName   string `json:"bubbleName"`
	InvocationID string `json:"invocation_id"`
	LineNumber   int    `json:"line_number,omitempty"`
}

func (e *BubbleExecutionStartEvent) GetEventType() StreamEventType {
	return StreamEventTypeBubbleExecutionStart
}

type BubbleExecutionCompleteEvent struct {
	BaseEvent
	VariableID    int                  `json:"variable_id"`
	BubbleName    string               `json:"bubbleName"`
	InvocationID  string               `json:"invocation_id"`
	Success       bool                 `json:"success"`
	Message       string               `json:"message,omitempty"`
	ExecutionTime int64                `json:"executionTime"`
	ServiceUsage  []ServiceUsageRecord `json:"service_usage,omitempty"`
}

func (e *BubbleExecutionCompleteEvent) GetEventType() StreamEventType {
	return StreamEventTypeBubbleExecutionComplete
}

type WarnEvent struct {
	BaseEvent
	Message string `json:"message"`
}

func (e *WarnEvent) GetEventType() StreamEventType { return StreamEventTypeWarn }

type ErrorEvent struct {
	BaseEvent
	Message string `json:"message"`
}

func (e *ErrorEvent) GetEventType() StreamEventType { return StreamEventTypeError }

// FatalEvent aborts the execution; it is always followed by a terminal
// ExecutionCompleteEvent.
type FatalEvent struct {
	BaseEvent
	Message string `json:"message"`
}

func (e *FatalEvent) GetEventType() StreamEventType { return StreamEventTypeFatal }

type ExecutionCompleteEvent struct {
	BaseEvent
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	ExecutionTime int64  `json:"executionTime"`
}

func (e *ExecutionCompleteEvent) GetEventType() StreamEventType {
	return StreamEventTypeExecutionComplete
}

type ExecutionObserver interface {
	Subscribe(handler ExecutionEventHandler)
	Notify(ctx context.Context, event StreamEvent) error
}

type ExecutionEventHandler interface {
	HandleEvent(ctx context.Context, event StreamEvent) error
}
