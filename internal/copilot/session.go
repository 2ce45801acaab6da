// Package copilot drives the equipment assistant: per-tenant conversation
// sessions, the tool registry the model may call into, and the
// orchestration loop between the two.
package copilot

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// SystemInstruction is the fixed behavioral contract seeded into every
// session. The ask-until-enough-information and approve-before-saving
// policy lives in this text, not in code; treat changes as contract
// changes, covered by the orchestrator's behavioral tests.
const SystemInstruction = `You are EquipmentCopilot, a friendly assistant who likes to follow the rules. You will complete required steps
 and request approval before taking any consequential actions, such as saving the request to the database.
 If the user doesn't provide enough information for you to complete a task, you will keep asking questions
 until you have enough information to complete the task. Once the request has been saved to the database,
 inform the user that the equipment has been added to the inventory database.`

// Session is the append-only conversation history for one logical chat.
//
// A session is not reentrant: the orchestrator serializes Process calls
// through the session mutex, so two tool-call cycles for the same session
// never run concurrently. Different sessions are fully independent.
type Session struct {
	id       string
	tenantID string

	mu    sync.Mutex
	turns []llms.MessageContent
}

// NewSession creates a session seeded with the system instruction.
func NewSession(tenantID string) *Session {
	return &Session{
		id:       uuid.NewString(),
		tenantID: tenantID,
		turns: []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, SystemInstruction),
		},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TenantID returns the tenant this session belongs to.
func (s *Session) TenantID() string { return s.tenantID }

// Reset discards all turns except the seeded system instruction.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemInstruction),
	}
}

// Turns returns a copy of the conversation history.
func (s *Session) Turns() []llms.MessageContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llms.MessageContent, len(s.turns))
	copy(out, s.turns)
	return out
}

// appendLocked adds a turn. Callers must hold s.mu.
func (s *Session) appendLocked(turn llms.MessageContent) {
	s.turns = append(s.turns, turn)
}

// Sessions manages one live session per tenant conversation.
type Sessions struct {
	mu       sync.Mutex
	byTenant map[string]*Session
}

// NewSessions creates an empty session manager.
func NewSessions() *Sessions {
	return &Sessions{byTenant: make(map[string]*Session)}
}

// GetOrCreate returns the tenant's session, creating it on first use.
func (m *Sessions) GetOrCreate(tenantID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byTenant[tenantID]
	if !ok {
		sess = NewSession(tenantID)
		m.byTenant[tenantID] = sess
	}
	return sess
}

// Clear resets the tenant's session back to the system instruction only.
// A tenant with no session is a no-op.
func (m *Sessions) Clear(tenantID string) {
	m.mu.Lock()
	sess, ok := m.byTenant[tenantID]
	m.mu.Unlock()
	if ok {
		sess.Reset()
	}
}
