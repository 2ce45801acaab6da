package copilot

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/tenant"
)

// Orchestrator errors.
var (
	// ErrEmptyMessage indicates an empty user message.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrModelFailure indicates the language model was unreachable or
	// returned a malformed response. The session is left retry-able: the
	// user turn stays in history and no assistant turn is appended.
	ErrModelFailure = errors.New("language model failure")

	// ErrToolRoundsExceeded indicates the model kept requesting tools past
	// the configured bound.
	ErrToolRoundsExceeded = errors.New("maximum tool-call rounds exceeded")
)

// fallbackReply is returned when the model produces an empty final answer.
const fallbackReply = "I wasn't able to process your request."

// Orchestrator drives the request/response/tool-call cycle between a
// session and the language model.
//
// Each Process call appends the user message, then loops: the model either
// answers in plain text (done) or requests tool calls, which are dispatched
// through the registry and fed back as tool-result turns. The loop is
// bounded by MaxToolRounds so a misbehaving model cannot spin forever.
type Orchestrator struct {
	model    llms.Model
	registry *Registry
	logger   *zap.Logger

	maxToolRounds int
}

// OrchestratorConfig holds orchestrator configuration.
type OrchestratorConfig struct {
	// MaxToolRounds bounds tool-call rounds per user message. Default: 5.
	MaxToolRounds int
}

// ApplyDefaults sets default values for unset fields.
func (c *OrchestratorConfig) ApplyDefaults() {
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = 5
	}
}

// NewOrchestrator creates a conversation orchestrator.
func NewOrchestrator(model llms.Model, registry *Registry, cfg OrchestratorConfig, logger *zap.Logger) (*Orchestrator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	return &Orchestrator{
		model:         model,
		registry:      registry,
		logger:        logger,
		maxToolRounds: cfg.MaxToolRounds,
	}, nil
}

// Process handles one user message and returns the assistant's final
// answer.
//
// The session mutex is held for the whole cycle, so sessions are processed
// strictly sequentially. Tool side effects commit independently per round;
// a failure later in the cycle never rolls them back.
func (o *Orchestrator) Process(ctx context.Context, sess *Session, userMessage string) (string, error) {
	if userMessage == "" {
		return "", ErrEmptyMessage
	}

	ctx = tenant.ContextWithTenant(ctx, sess.TenantID())

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.appendLocked(llms.TextParts(llms.ChatMessageTypeHuman, userMessage))

	o.logger.Debug("processing user message",
		zap.String("tenant_id", sess.TenantID()),
		zap.String("session_id", sess.ID()),
		zap.Int("history_len", len(sess.turns)),
	)

	tools := o.registry.LLMTools()

	for round := 0; round < o.maxToolRounds; round++ {
		resp, err := o.model.GenerateContent(ctx, sess.turns, llms.WithTools(tools))
		if err != nil {
			o.logger.Error("model call failed",
				zap.String("session_id", sess.ID()),
				zap.Int("round", round),
				zap.Error(err),
			)
			return "", fmt.Errorf("%w: %v", ErrModelFailure, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: response contained no choices", ErrModelFailure)
		}

		choice := resp.Choices[0]

		if len(choice.ToolCalls) == 0 {
			answer := choice.Content
			if answer == "" {
				answer = fallbackReply
			}
			sess.appendLocked(llms.TextParts(llms.ChatMessageTypeAI, answer))
			return answer, nil
		}

		// Record the assistant's tool-call turn, then dispatch each call
		// and append its result so the model sees the outcomes on
		// resubmission.
		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, tc := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		sess.appendLocked(assistant)

		for _, tc := range choice.ToolCalls {
			name := tc.FunctionCall.Name
			result, ok := o.registry.Dispatch(ctx, name, tc.FunctionCall.Arguments)

			o.logger.Info("dispatched tool call",
				zap.String("session_id", sess.ID()),
				zap.String("tool", name),
				zap.Bool("ok", ok),
				zap.Int("round", round),
			)

			sess.appendLocked(llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       name,
						Content:    result,
					},
				},
			})
		}
	}

	o.logger.Error("tool-call rounds exhausted",
		zap.String("session_id", sess.ID()),
		zap.Int("max_rounds", o.maxToolRounds),
	)
	return "", ErrToolRoundsExceeded
}
