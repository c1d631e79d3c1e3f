package runtime

import (
	"context"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/credentials"
	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/quota"
	"github.com/bubblelabai/bubblelab/pkg/script"

	"github.com/rs/zerolog/log"
)

type FlowServiceDeps struct {
	Registry          domain.BubbleRegistry
	CredentialStore   domain.CredentialStore
	SystemCredentials domain.SystemCredentials
	Gate              *quota.Gate
	Accountant        *quota.Accountant
}

// FlowService runs the full execution pipeline for one workflow: parse,
// credential discovery, quota gating, injection, VM execution and usage
// accounting. It is stateless across runs and safe for concurrent use.
type FlowService struct {
	registry          domain.BubbleRegistry
	credentialStore   domain.CredentialStore
	systemCredentials domain.SystemCredentials
	gate              *quota.Gate
	accountant        *quota.Accountant
}

func NewFlowService(deps FlowServiceDeps) *FlowService {
	return &FlowService{
		registry:          deps.Registry,
		credentialStore:   deps.CredentialStore,
		systemCredentials: deps.SystemCredentials,
		gate:              deps.Gate,
		accountant:        deps.Accountant,
	}
}

// RunWorkflow executes one BubbleFlow end to end. Every outcome, including
// rejections before any bubble ran, yields a well-formed result with a
// summary and a terminal execution_complete event on the stream.
func (s *FlowService) RunWorkflow(ctx context.Context, p domain.RunWorkflowParams) domain.ExecutionResult {
	executionID := time.Now().UnixNano()
	started := time.Now()

	observer := NewObserver()
	collector := NewSummaryCollector()
	observer.Subscribe(collector)

	if p.Options.StreamCallback != nil {
		broadcaster := NewStreamBroadcaster(p.Options.StreamCallback)
		observer.Subscribe(broadcaster)
		defer broadcaster.Close()
	}

	base := func() domain.BaseEvent {
		return domain.BaseEvent{ExecutionID: executionID, Timestamp: time.Now().UnixMilli()}
	}

	fail := func(err error) domain.ExecutionResult {
		message := err.Error()
		// Summary is snapshotted before the failure events so a run rejected
		// before any bubble executed reports clean zero counts.
		summary := collector.BuildSummary(time.Since(started).Milliseconds())

		_ = observer.Notify(ctx, &domain.FatalEvent{BaseEvent: base(), Message: message})
		_ = observer.Notify(ctx, &domain.ExecutionCompleteEvent{
			BaseEvent:     base(),
			Success:       false,
			Message:       message,
			ExecutionTime: summary.DurationMS,
		})

		log.Info().
			Int64("execution_id", executionID).
			Str("user_id", p.Options.UserID).
			Str("error", message).
			Msg("workflow execution failed")

		return domain.ExecutionResult{
			ExecutionID: executionID,
			Success:     false,
			Error:       message,
			Summary:     summary,
		}
	}

	model, err := script.Parse(p.ScriptSource, s.registry)
	if err != nil {
		return fail(err)
	}

	requirements := credentials.FindCredentials(model, s.registry)

	periodKey, err := s.gate.PeriodKey(ctx, p.Options.UserID)
	if err != nil {
		return fail(err)
	}

	if err := s.gate.CheckExecutionCount(ctx, p.Options.UserID, periodKey); err != nil {
		return fail(err)
	}

	// Credentials are loaded fresh per execution so revocations apply
	// immediately.
	userCredentials, err := s.credentialStore.ListUserCredentials(ctx, p.Options.UserID)
	if err != nil {
		return fail(err)
	}

	sanitizer := credentials.NewExecutionSanitizer(userCredentials, s.systemCredentials)
	observer.SetSanitizer(sanitizer)

	injection, bindings := credentials.Inject(credentials.InjectParams{
		Model:             model,
		Requirements:      requirements,
		UserCredentials:   userCredentials,
		SystemCredentials: s.systemCredentials,
		Registry:          s.registry,
	})
	if !injection.Success {
		return fail(&domain.CredentialInjectionError{Errors: injection.Errors})
	}

	if err := s.gate.CheckCredits(ctx, p.Options.UserID, periodKey, injection.SystemServices()); err != nil {
		return fail(err)
	}

	runner := NewRunner(RunnerDeps{
		ExecutionID:      executionID,
		Model:            model,
		Registry:         s.registry,
		Bindings:         bindings,
		Injected:         injection.Injected,
		BubbleParameters: p.BubbleParameters,
		Pricing:          p.Options.PricingTable,
		Observer:         observer,
		Sanitizer:        sanitizer,
	})

	data, runErr := runner.Run(ctx, p.TriggerPayload)
	durationMS := time.Since(started).Milliseconds()

	if runErr != nil {
		message := sanitizer.SanitizeError(runErr)

		// The fatal event is published before the summary snapshot so the
		// failure that ended the run counts into ErrorCount.
		_ = observer.Notify(ctx, &domain.FatalEvent{BaseEvent: base(), Message: message})

		summary := collector.BuildSummary(durationMS)


		_ = observer.Notify(ctx, &domain.ExecutionCompleteEvent{
			BaseEvent:     base(),
			Success:       false,
			Message:       message,
			ExecutionTime: durationMS,
		})

		log.Info().
			Int64("execution_id", executionID).
			Str("user_id", p.Options.UserID).
			Str("error", message).
			Msg("workflow execution failed")

		return domain.ExecutionResult{
			ExecutionID: executionID,
			Success:     false,
			Error:       message,
			Summary:     summary,
		}
	}

	summary := collector.BuildSummary(durationMS)

	// Usage is only committed for successful executions; rejected or failed
	// runs never consume quota.
	if s.accountant != nil {
		err := s.accountant.RecordExecution(ctx, quota.RecordExecutionParams{
			UserID:       p.Options.UserID,
			PeriodKey:    periodKey,
			ExecutionID:  executionID,
			ServiceUsage: collector.ServiceUsage(),
		})
		if err != nil {
			log.Error().Err(err).
				Int64("execution_id", executionID).
				Str("user_id", p.Options.UserID).
				Msg("failed to record execution usage")
		}
	}

	_ = observer.Notify(ctx, &domain.ExecutionCompleteEvent{
		BaseEvent:     base(),
		Success:       true,
		ExecutionTime: durationMS,
	})

	log.Info().
		Int64("execution_id", executionID).
		Str("user_id", p.Options.UserID).
		Str("app_type", p.Options.AppType).
		Int("bubble_executions", summary.BubbleExecutionCount).
		Float64("total_cost_usd", summary.TotalCostUSD).
		Msg("workflow execution completed")

	if p.Options.EvalPerformance {
		log.Debug().
			Int64("execution_id", executionID).
			Int64("duration_ms", durationMS).
			Int("line_count", summary.LineCount).
			Interface("cost_by_service", summary.CostByService).
			Msg("execution performance")
	}

	return domain.ExecutionResult{
		ExecutionID: executionID,
		Success:     true,
		Data:        data,
		Summary:     summary,
	}
}
