// Package runtime executes a parsed, credential-injected BubbleFlow inside a
// sandboxed JavaScript VM and streams ordered lifecycle events while it runs.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/credentials"
	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/script"

	"github.com/dop251/goja"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type RunnerState string

const (
	RunnerStateInitialized RunnerState = "initialized"
	RunnerStateRunning     RunnerState = "running"
	RunnerStateCompleted   RunnerState = "completed"
	RunnerStateFailed      RunnerState = "failed"
)

// baseClassSource defines the BubbleFlow base class inside the VM. Bubble
// classes are bound as native constructors, so this is the only JS-side
// scaffolding the script environment needs.
const baseClassSource = `class ` + script.BaseClassName + ` {
	constructor() {}
}`

type RunnerDeps struct {
	ExecutionID      int64
	Model            *script.ScriptModel
	Registry         domain.BubbleRegistry
	Bindings         credentials.SecretBindings
	Injected         map[int]domain.InjectedCredential
	BubbleParameters map[int]domain.BubbleParameterInfo
	Pricing          domain.PricingTable
	Observer         domain.ExecutionObserver
	Sanitizer        *credentials.Sanitizer
}

// Runner drives one workflow execution. It is single-use: construct, Run
// once, discard. The VM itself is single-threaded; bubble actions launched
// through parallel() run on Go goroutines outside the VM.
type Runner struct {
	executionID      int64
	model            *script.ScriptModel
	registry         domain.BubbleRegistry
	bindings         credentials.SecretBindings
	injected         map[int]domain.InjectedCredential
	bubbleParameters map[int]domain.BubbleParameterInfo
	pricing          domain.PricingTable
	observer         domain.ExecutionObserver
	sanitizer        *credentials.Sanitizer

	vm    *goja.Runtime
	state RunnerState

	mu                sync.Mutex
	invocations       []*bubbleInvocation
	occurrenceByClass map[string]int
	occurrenceByLine  map[lineKey]int
}

// lineKey tracks constructor-call order when several instantiations of one
// class share a source line.
type lineKey struct {
	className string
	line      int
}

// bubbleInvocation is one constructed bubble instance awaiting (or having
// completed) its action call.
type bubbleInvocation struct {
	id         string
	variableID int
	line       int
	def        domain.BubbleDefinition
	bubble     domain.Bubble
}

func NewRunner(deps RunnerDeps) *Runner {
	pricing := deps.Pricing
	if pricing == nil {
		pricing = domain.DefaultPricingTable()
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = credentials.NewSanitizer()
	}

	return &Runner{
		executionID:       deps.ExecutionID,
		model:             deps.Model,
		registry:          deps.Registry,
		bindings:          deps.Bindings,
		injected:          deps.Injected,
		bubbleParameters:  deps.BubbleParameters,
		pricing:           pricing,
		observer:          deps.Observer,
		sanitizer:         sanitizer,
		state:             RunnerStateInitialized,
		occurrenceByClass: map[string]int{},
		occurrenceByLine:  map[lineKey]int{},
	}
}

func (r *Runner) State() RunnerState { return r.state }

// Run executes the flow's entry method against the trigger payload and
// returns its exported return value. Script exceptions and VM panics come
// back as sanitized UnhandledExecutionErrors, never as raw stack traces.
func (r *Runner) Run(ctx context.Context, payload map[string]any) (data any, runErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.state = RunnerStateFailed
			data = nil
			runErr = &domain.UnhandledExecutionError{
				Message: r.sanitizer.Sanitize(fmt.Sprintf("execution panic: %v", rec)),
			}
		}
	}()

	r.vm = goja.New()
	r.state = RunnerStateRunning

	if _, err := r.vm.RunString(baseClassSource); err != nil {
		return nil, r.failf("failed to install base class: %v", err)
	}

	for _, def := range r.registry.List() {
		r.vm.Set(def.ClassName, r.newConstructor(ctx, def))
	}
	r.vm.Set("parallel", r.newParallel(ctx))

	program, err := goja.Compile(script.ScriptFilename, r.model.Source, false)
	if err != nil {
		return nil, &domain.ParseError{Message: r.sanitizer.Sanitize(err.Error())}
	}

	if _, err := r.vm.RunProgram(program); err != nil {
		return nil, r.scriptError(err)
	}

	flowValue, err := r.vm.RunString("new " + r.model.ClassName + "()")
	if err != nil {
		return nil, r.scriptError(err)
	}

	flow := flowValue.ToObject(r.vm)
	handle, ok := goja.AssertFunction(flow.Get(script.EntryMethodName))
	if !ok {
		return nil, r.failf("entry method %s is not callable", script.EntryMethodName)
	}

	result, err := handle(flow, r.vm.ToValue(payload))
	if err != nil {
		return nil, r.scriptError(err)
	}

	r.state = RunnerStateCompleted

	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}

	return result.Export(), nil
}

func (r *Runner) failf(format string, args ...any) error {
	r.state = RunnerStateFailed

	return &domain.UnhandledExecutionError{
		Message: r.sanitizer.Sanitize(fmt.Sprintf(format, args...)),
	}
}

// scriptError converts a goja error into a sanitized domain error. Only the
// thrown value's message survives; stack traces stay inside the runtime.
func (r *Runner) scriptError(err error) error {
	r.state = RunnerStateFailed

	message := err.Error()
	if exc, ok := err.(*goja.Exception); ok && exc.Value() != nil {
		message = exc.Value().String()
	}

	return &domain.UnhandledExecutionError{Message: r.sanitizer.Sanitize(message)}
}

// newConstructor binds one bubble class as a native JS constructor. The
// constructor validates parameters, builds the credential-injected bubble
// instance and exposes an action() method on the new object.
func (r *Runner) newConstructor(ctx context.Context, def domain.BubbleDefinition) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		inst := r.correlate(def)

		params := map[string]any{}
		for key, value := range inst.Args {
			if _, dynamic := value.(script.ExprRef); dynamic {
				continue
			}
			params[key] = value
		}
		if len(call.Arguments) > 0 {
			if live, ok := call.Argument(0).Export().(map[string]any); ok {
				for key, value := range live {
					params[key] = value
				}
			}
		}
		if override, ok := r.bubbleParameters[inst.VariableID]; ok {
			for key, value := range override.Params {
				params[key] = value
			}
		}

		if err := r.registry.ValidateParams(def.Name, params); err != nil {
			panic(r.vm.NewGoError(fmt.Errorf("invalid parameters for %s: %s", def.Name, r.sanitizer.SanitizeError(err))))
		}

		creds := r.bindings[inst.VariableID]
		if def.RequiresCredential() && len(creds) == 0 {
			panic(r.vm.NewGoError(fmt.Errorf("no credential injected for %s (variable %d)", def.Name, inst.VariableID)))
		}

		bubble, err := def.NewBubble(ctx, domain.NewBubbleParams{
			VariableID:  inst.VariableID,
			Params:      params,
			Credentials: creds,
		})
		if err != nil {
			panic(r.vm.NewGoError(fmt.Errorf("failed to initialize %s: %s", def.Name, r.sanitizer.SanitizeError(err))))
		}

		inv := &bubbleInvocation{
			id:         xid.New().String(),
			variableID: inst.VariableID,
			line:       inst.Line,
			def:        def,
			bubble:     bubble,
		}

		r.mu.Lock()
		index := len(r.invocations)
		r.invocations = append(r.invocations, inv)
		r.mu.Unlock()

		if inst.Line > 0 {
			r.notify(ctx, &domain.LineEvent{
				BaseEvent:  r.base(),
				LineNumber: inst.Line,
				Message:    fmt.Sprintf("instantiated %s", def.Name),
			})
		}

		this := call.This
		this.Set("__invocation", index)
		this.Set("bubbleName", string(def.Name))
		this.Set("variableId", inst.VariableID)
		this.Set("action", func(goja.FunctionCall) goja.Value {
			result := r.runAction(ctx, inv)

			return r.vm.ToValue(actionResultValue(result))
		})

		// Returning nil keeps the object goja allocated for `this`.
		return nil
	}
}

// correlate maps a live constructor call back to its parsed instantiation.
// The primary signal is the VM call stack position against the parsed source;
// when positions are unavailable the per-class occurrence order is used.
func (r *Runner) correlate(def domain.BubbleDefinition) script.ParsedBubbleInstantiation {
	for _, frame := range r.vm.CaptureCallStack(0, nil) {
		position := frame.Position()
		if position.Line <= 0 {
			continue
		}

		insts := r.model.InstantiationsAt(def.ClassName, position.Line)
		if len(insts) == 0 {
			continue
		}
		if len(insts) == 1 {
			return insts[0]
		}

		// Several instantiations of this class share the line; constructor
		// calls arrive in left-to-right evaluation order, so take them in
		// column order.
		r.mu.Lock()
		key := lineKey{className: def.ClassName, line: position.Line}
		occurrence := r.occurrenceByLine[key]
		r.occurrenceByLine[key]++
		r.mu.Unlock()

		return insts[occurrence%len(insts)]
	}

	r.mu.Lock()
	occurrence := r.occurrenceByClass[def.ClassName]
	r.occurrenceByClass[def.ClassName]++
	r.mu.Unlock()

	insts := r.model.InstantiationsOf(def.ClassName)
	if len(insts) > 0 {
		return insts[occurrence%len(insts)]
	}

	return script.ParsedBubbleInstantiation{
		BubbleName: def.Name,
		ClassName:  def.ClassName,
	}
}

// runAction executes one bubble action between its start/complete events,
// pricing and attributing the usage it reports.
func (r *Runner) runAction(ctx context.Context, inv *bubbleInvocation) domain.BubbleActionResult {
	started := time.Now()

	r.notify(ctx, &domain.BubbleExecutionStartEvent{
		BaseEvent:    r.base(),
		VariableID:   inv.variableID,
		BubbleName:   string(inv.def.Name),
		InvocationID: inv.id,
		LineNumber:   inv.line,
	})

	result, err := inv.bubble.Action(ctx)
	if err != nil {
		actionErr := &domain.BubbleActionError{
			VariableID: inv.variableID,
			BubbleName: string(inv.def.Name),
			Message:    r.sanitizer.SanitizeError(err),
		}
		result = domain.BubbleActionResult{
			Success: false,
			Error:   actionErr.Error(),
		}
	}
	result.Error = r.sanitizer.Sanitize(result.Error)

	injected := r.injected[inv.variableID]
	for i := range result.ServiceUsage {
		usage := &result.ServiceUsage[i]
		if usage.BubbleName == "" {
			usage.BubbleName = string(inv.def.Name)
		}
		if len(inv.def.CredentialOptions) == 0 {
			// No credential involved means nothing billed to the platform.
			usage.IsUserCredential = true
		} else {
			usage.IsUserCredential = injected.IsUserCredential
		}
		if usage.CostUSD == 0 {
			if _, priced := r.pricing[usage.Service]; priced {
				usage.CostUSD = r.pricing.Cost(usage.Service, usage.Units)
			} else {
				r.notify(ctx, &domain.WarnEvent{
					BaseEvent: r.base(),
					Message:   fmt.Sprintf("no pricing entry for service %s, recording zero cost", usage.Service),
				})
			}
		}
	}

	r.notify(ctx, &domain.BubbleExecutionCompleteEvent{
		BaseEvent:     r.base(),
		VariableID:    inv.variableID,
		BubbleName:    string(inv.def.Name),
		InvocationID:  inv.id,
		Success:       result.Success,
		Message:       result.Error,
		ExecutionTime: time.Since(started).Milliseconds(),
		ServiceUsage:  result.ServiceUsage,
	})

	if !result.Success {
		r.notify(ctx, &domain.ErrorEvent{
			BaseEvent: r.base(),
			Message:   result.Error,
		})
	}

	return result
}

// newParallel binds the parallel([...]) global: it takes an array of bubble
// instances and runs their actions concurrently on goroutines, returning the
// results in input order once all complete.
func (r *Runner) newParallel(ctx context.Context) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		elements, ok := call.Argument(0).Export().([]any)
		if !ok {
			panic(r.vm.NewGoError(fmt.Errorf("parallel expects an array of bubbles")))
		}

		invs := make([]*bubbleInvocation, 0, len(elements))
		for _, element := range elements {
			obj, ok := element.(map[string]any)
			if !ok {
				panic(r.vm.NewGoError(fmt.Errorf("parallel expects an array of bubbles")))
			}

			index, ok := invocationIndex(obj["__invocation"])
			if !ok {
				panic(r.vm.NewGoError(fmt.Errorf("parallel expects an array of bubbles")))
			}

			r.mu.Lock()
			inv := r.invocations[index]
			r.mu.Unlock()

			invs = append(invs, inv)
		}

		results := make([]domain.BubbleActionResult, len(invs))
		group, groupCtx := errgroup.WithContext(ctx)

		for i, inv := range invs {
			group.Go(func() error {
				results[i] = r.runAction(groupCtx, inv)

				return nil
			})
		}
		_ = group.Wait()

		values := make([]any, len(results))
		for i, result := range results {
			values[i] = actionResultValue(result)
		}

		return r.vm.ToValue(values)
	}
}

func invocationIndex(value any) (int, bool) {
	switch v := value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func actionResultValue(result domain.BubbleActionResult) map[string]any {
	value := map[string]any{
		"success": result.Success,
	}
	if result.Data != nil {
		value["data"] = result.Data
	}
	if result.Error != "" {
		value["error"] = result.Error
	}

	return value
}

func (r *Runner) base() domain.BaseEvent {
	return domain.BaseEvent{
		ExecutionID: r.executionID,
		Timestamp:   time.Now().UnixMilli(),
	}
}

func (r *Runner) notify(ctx context.Context, event domain.StreamEvent) {
	if r.observer == nil {
		return
	}

	if err := r.observer.Notify(ctx, event); err != nil {
		log.Error().Err(err).
			Str("event_type", string(event.GetEventType())).
			Msg("event handler failed")
	}
}
