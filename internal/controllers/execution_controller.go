package controllers

import (
	"bufio"
	"context"
	"encoding/json"

	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/runtime"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type ExecutionControllerDependencies struct {
	FlowService *runtime.FlowService
}

type ExecutionController struct {
	flowService *runtime.FlowService
}

func NewExecutionController(deps ExecutionControllerDependencies) *ExecutionController {
	return &ExecutionController{
		flowService: deps.FlowService,
	}
}

type RunWorkflowRequest struct {
	Script           string                       `json:"script"`
	UserID           string                       `json:"user_id"`
	TriggerPayload   map[string]any               `json:"trigger_payload"`
	BubbleParameters []domain.BubbleParameterInfo `json:"bubble_parameters"`
	Stream           bool                         `json:"stream"`
}

// streamLine is one NDJSON line on a streaming response: every lifecycle
// event as it happens, then a final line carrying the execution result.
type streamLine struct {
	Type   string                  `json:"type"`
	Event  domain.StreamEvent      `json:"event,omitempty"`
	Result *domain.ExecutionResult `json:"result,omitempty"`
}

// RunWorkflow executes a BubbleFlow. With "stream": true the response is
// NDJSON, one event per line, terminated by the result line; otherwise the
// result is returned as a single JSON document.
func (c *ExecutionController) RunWorkflow(ctx *fiber.Ctx) error {
	var req RunWorkflowRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if req.Script == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing workflow script")
	}
	if req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing user id")
	}

	params := domain.RunWorkflowParams{
		ScriptSource:     req.Script,
		TriggerPayload:   req.TriggerPayload,
		BubbleParameters: bubbleParametersByVariable(req.BubbleParameters),
		Options: domain.RunWorkflowOptions{
			UserID: req.UserID,
		},
	}

	if !req.Stream {
		result := c.flowService.RunWorkflow(ctx.UserContext(), params)

		return ctx.Status(fiber.StatusOK).JSON(result)
	}

	ctx.Set(fiber.HeaderContentType, "application/x-ndjson")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		encoder := json.NewEncoder(w)

		params.Options.StreamCallback = func(event domain.StreamEvent) {
			if err := encoder.Encode(streamLine{
				Type:  string(event.GetEventType()),
				Event: event,
			}); err != nil {
				log.Debug().Err(err).Msg("failed to write stream event")

				return
			}

			_ = w.Flush()
		}

		// The request context ends when the handler returns; the execution
		// outlives it inside this stream writer.
		result := c.flowService.RunWorkflow(context.Background(), params)

		if err := encoder.Encode(streamLine{Type: "result", Result: &result}); err != nil {
			log.Debug().Err(err).Msg("failed to write stream result")
		}
		_ = w.Flush()
	}))

	return nil
}

func bubbleParametersByVariable(infos []domain.BubbleParameterInfo) map[int]domain.BubbleParameterInfo {
	if len(infos) == 0 {
		return nil
	}

	byVariable := make(map[int]domain.BubbleParameterInfo, len(infos))
	for _, info := range infos {
		byVariable[info.VariableID] = info
	}

	return byVariable
}
