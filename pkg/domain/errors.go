package domain

import (
	"fmt"
	"strings"
)

// ParseError means the script does not conform to the expected structural
// shape. Fatal, raised before any credential or quota work.
type ParseError struct {
	Message string
	Line    int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
	}

	return fmt.Sprintf("parse error: %s", e.Message)
}

// CredentialInjectionError means one or more required credentials could not
// be resolved. Fatal, raised before execution.
type CredentialInjectionError struct {
	Errors []string
}

func (e *CredentialInjectionError) Error() string {
	return fmt.Sprintf("credential injection failed: %s", strings.Join(e.Errors, "; "))
}

type QuotaKind string

const (
	QuotaKindExecutions QuotaKind = "executions"
	QuotaKindCredits    QuotaKind = "credits"
)

// QuotaExceededError rejects an execution before any bubble runs. For the
// credits kind, Services names the system-backed services that would have
// been billed.
type QuotaExceededError struct {
	Kind     QuotaKind
	Used     float64
	Limit    float64
	Services []string
}

func (e *QuotaExceededError) Error() string {
	switch e.Kind {
	case QuotaKindCredits:
		return fmt.Sprintf("monthly credit limit reached (%.2f of %.2f used); system-provided credentials required for: %s",
			e.Used, e.Limit, strings.Join(e.Services, ", "))
	default:
		return fmt.Sprintf("monthly execution limit reached (%d of %d used)", int(e.Used), int(e.Limit))
	}
}

// BubbleActionError records one bubble's action() failure. Whether it aborts
// the run is up to the workflow body; the summary records it either way.
type BubbleActionError struct {
	VariableID int
	BubbleName string
	Message    string
}

func (e *BubbleActionError) Error() string {
	return fmt.Sprintf("bubble %s (variable %d) failed: %s", e.BubbleName, e.VariableID, e.Message)
}

// UnhandledExecutionError wraps any other exception raised while driving the
// entry method. The message is sanitized of secret material before it is
// surfaced or streamed.
type UnhandledExecutionError struct {
	Message string
}

func (e *UnhandledExecutionError) Error() string {
	return fmt.Sprintf("workflow execution failed: %s", e.Message)
}
