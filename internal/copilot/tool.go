package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// Sentinel errors for tool dispatch.
var (
	// ErrUnknownTool is returned when the model names an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMalformedArguments is returned when tool arguments are not a JSON object.
	ErrMalformedArguments = errors.New("malformed tool arguments")

	// ErrMissingParameter is returned when a required parameter is absent.
	ErrMissingParameter = errors.New("missing required parameter")
)

// Parameter describes one tool parameter in the schema exposed to the model.
type Parameter struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"-"`
}

// Tool is a named operation the conversational model may request.
//
// Parameters are a flat name→descriptor map; Execute receives the model's
// best-effort arguments as a loosely-typed map and returns a textual result
// that is fed back into the conversation.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]Parameter
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry is the catalog of tools exposed to the conversation loop.
// Tool names are stable identifiers referenced by the model's tool-call
// payloads; unknown names are rejected, never silently ignored.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(t Tool) {
	if t == nil || t.Name() == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// LLMTools exports the registered tools in the schema format the model
// expects, ordered by name so prompts are reproducible across runs.
func (r *Registry) LLMTools() []llms.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]llms.Tool, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		properties := make(map[string]any, len(t.Parameters()))
		required := make([]string, 0)
		for name, p := range t.Parameters() {
			properties[name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, name)
			}
		}
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return out
}

// Dispatch validates and executes a tool call, returning the textual result
// surfaced back into the conversation.
//
// Failures never abort the conversation: an unknown name, malformed
// arguments, or a handler error all come back as a descriptive failure
// string with ok=false so the model can self-correct.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) (result string, ok bool) {
	t, found := r.Get(name)
	if !found {
		r.logger.Warn("tool call for unregistered tool", zap.String("tool", name))
		return fmt.Sprintf("error: %v: %q", ErrUnknownTool, name), false
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			r.logger.Warn("malformed tool arguments",
				zap.String("tool", name),
				zap.Error(err),
			)
			return fmt.Sprintf("error: %v: %v", ErrMalformedArguments, err), false
		}
	}

	for pname, p := range t.Parameters() {
		if !p.Required {
			continue
		}
		if v, present := args[pname]; !present || v == "" {
			return fmt.Sprintf("error: %v: %q", ErrMissingParameter, pname), false
		}
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		r.logger.Error("tool execution failed",
			zap.String("tool", name),
			zap.Error(err),
		)
		return fmt.Sprintf("error: %s failed: %v", name, err), false
	}
	return out, true
}
