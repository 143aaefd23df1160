// Package intake drives the AI-assisted conversation that substitutes
// for a human answer: it greets the caller, asks only for the structured
// fields still missing, answers questions from the business profile and
// retrieved knowledge snippets, and recognizes requests to reach a
// human. Turns are strictly sequential per call; all conversation state
// is serialized into the session row between webhooks.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/callgreet/callgreet/internal/ai"
)

// Field is one structured datum the intake loop tries to capture.
type Field struct {
	Name   string
	Prompt string
}

// fieldOrder is the capture priority. A field already captured is never
// asked for again.
var fieldOrder = []Field{
	{"name", "May I have your name, please?"},
	{"callback_number", "What is the best number to reach you on?"},
	{"email", "Could I get your email address?"},
	{"preferred_time", "When would be a good time for us to get back to you?"},
	{"note", "Is there anything else you'd like us to know?"},
}

// NextMissingField returns the highest-priority field not yet captured.
func NextMissingField(fields map[string]string) (Field, bool) {
	for _, f := range fieldOrder {
		if strings.TrimSpace(fields[f.Name]) == "" {
			return f, true
		}
	}
	return Field{}, false
}

// handoffPattern recognizes an explicit request for a human. Checked
// locally before the completion call so a handoff request works even
// when the completion service is down.
var handoffPattern = regexp.MustCompile(`(?i)\b(human|agent|operator|representative|real person|someone|transfer me|speak to (a|the|your))\b`)

// WantsHandoff reports whether the utterance asks for a human.
func WantsHandoff(utterance string) bool {
	return handoffPattern.MatchString(utterance)
}

// escalationReply is the static fallback spoken when a turn cannot be
// completed; the caller is never left waiting on a slow dependency.
const escalationReply = "I'm sorry, I'm having trouble right now. Let me connect you with someone who can help."

// Profile is the business profile assisted answers are grounded in.
type Profile struct {
	BusinessName string
	Greeting     string   // optional custom greeting
	Facts        []string // hours, address, services, policies
}

// State is the per-call conversation state, serialized as JSON into the
// session row between webhook turns.
type State struct {
	History    []ai.Message `json:"history"`
	EmptyTurns int          `json:"empty_turns"`
	Greeted    bool         `json:"greeted"`
}

// DecodeState parses serialized conversation state. Empty or blank input
// yields a fresh state.
func DecodeState(s string) (*State, error) {
	st := &State{}
	if strings.TrimSpace(s) == "" || s == "{}" {
		return st, nil
	}
	if err := json.Unmarshal([]byte(s), st); err != nil {
		return nil, fmt.Errorf("decoding intake state: %w", err)
	}
	return st, nil
}

// Encode serializes the state for storage.
func (s *State) Encode() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Reply   string
	Fields  map[string]string // full captured set after this turn
	Handoff bool
	Forced  bool // escalation forced by empty-turn budget or turn failure
}

// Engine runs assisted-intake turns.
type Engine struct {
	completion    ai.CompletionClient
	knowledge     ai.KnowledgeClient
	profile       Profile
	maxEmptyTurns int
	turnTimeout   time.Duration
	logger        *slog.Logger
}

// NewEngine creates an intake engine. maxEmptyTurns bounds how many
// consecutive turns may pass without a new field or handoff signal
// before escalation is forced; turnTimeout is the hard budget for one
// completion call.
func NewEngine(completion ai.CompletionClient, knowledge ai.KnowledgeClient, profile Profile, maxEmptyTurns int, turnTimeout time.Duration, logger *slog.Logger) *Engine {
	if maxEmptyTurns <= 0 {
		maxEmptyTurns = 3
	}
	if turnTimeout <= 0 {
		turnTimeout = 8 * time.Second
	}
	return &Engine{
		completion:    completion,
		knowledge:     knowledge,
		profile:       profile,
		maxEmptyTurns: maxEmptyTurns,
		turnTimeout:   turnTimeout,
		logger:        logger.With("component", "intake"),
	}
}

// Greeting is the opening line of the assisted conversation.
func (e *Engine) Greeting() string {
	if e.profile.Greeting != "" {
		return e.profile.Greeting
	}
	return fmt.Sprintf("Hello, you've reached %s. I'm the virtual assistant. How can I help you today?", e.profile.BusinessName)
}

// turnReply is the structured output requested from the completion
// service.
type turnReply struct {
	Reply   string            `json:"reply"`
	Fields  map[string]string `json:"fields"`
	Handoff bool              `json:"handoff"`
}

// ProcessTurn runs one conversation turn. callID is used only for
// logging. The returned result carries the full captured-field set; the
// state is mutated in place and must be persisted by the caller.
func (e *Engine) ProcessTurn(ctx context.Context, callID string, st *State, fields map[string]string, utterance string) TurnResult {
	if fields == nil {
		fields = map[string]string{}
	}
	utterance = strings.TrimSpace(utterance)

	// Explicit handoff request ends the loop immediately.
	if utterance != "" && WantsHandoff(utterance) {
		st.History = append(st.History, ai.Message{Role: "user", Content: utterance})
		return TurnResult{
			Reply:   "Of course, one moment while I connect you.",
			Fields:  fields,
			Handoff: true,
		}
	}

	// Silent turn: nothing to extract, just reprompt within budget.
	if utterance == "" {
		return e.emptyTurn(st, fields)
	}

	st.History = append(st.History, ai.Message{Role: "user", Content: utterance})

	if e.completion == nil {
		e.logger.Warn("no completion client configured, forcing escalation", "call_id", callID)
		return TurnResult{Reply: escalationReply, Fields: fields, Handoff: true, Forced: true}
	}

	turnCtx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	reply, err := e.completion.Complete(turnCtx, e.buildMessages(turnCtx, st, fields, utterance))
	if err != nil {
		// Conversation timeout or service failure is recovered locally by
		// forcing escalation rather than blocking the caller.
		e.logger.Warn("intake turn failed, forcing escalation", "call_id", callID, "error", err)
		return TurnResult{Reply: escalationReply, Fields: fields, Handoff: true, Forced: true}
	}

	parsed := parseTurnReply(reply)

	captured := false
	for name, value := range parsed.Fields {
		value = strings.TrimSpace(value)
		if value == "" || !knownField(name) {
			continue
		}
		if strings.TrimSpace(fields[name]) != "" {
			continue // captured fields are never overwritten
		}
		fields[name] = value
		captured = true
	}

	st.History = append(st.History, ai.Message{Role: "assistant", Content: parsed.Reply})
	trimHistory(st)

	if parsed.Handoff {
		return TurnResult{Reply: parsed.Reply, Fields: fields, Handoff: true}
	}

	if captured {
		st.EmptyTurns = 0
		return TurnResult{Reply: parsed.Reply, Fields: fields}
	}

	st.EmptyTurns++
	if st.EmptyTurns >= e.maxEmptyTurns {
		e.logger.Info("intake empty-turn budget exhausted, forcing escalation",
			"call_id", callID, "empty_turns", st.EmptyTurns)
		return TurnResult{Reply: escalationReply, Fields: fields, Handoff: true, Forced: true}
	}
	return TurnResult{Reply: parsed.Reply, Fields: fields}
}

// emptyTurn handles a gather timeout: reprompt for the next missing
// field, escalating once the budget runs out.
func (e *Engine) emptyTurn(st *State, fields map[string]string) TurnResult {
	st.EmptyTurns++
	if st.EmptyTurns >= e.maxEmptyTurns {
		return TurnResult{Reply: escalationReply, Fields: fields, Handoff: true, Forced: true}
	}
	if f, ok := NextMissingField(fields); ok {
		return TurnResult{Reply: "Sorry, I didn't catch that. " + f.Prompt, Fields: fields}
	}
	return TurnResult{Reply: "Sorry, I didn't catch that. Is there anything else I can help with?", Fields: fields}
}

// buildMessages assembles the system prompt, grounding snippets, and
// recent history for one completion call.
func (e *Engine) buildMessages(ctx context.Context, st *State, fields map[string]string, utterance string) []ai.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the phone receptionist for %s. ", e.profile.BusinessName)
	sb.WriteString("Answer only from the business facts and knowledge snippets below; if the answer is not there, say you don't know and offer to take a message. Never invent facts. ")
	sb.WriteString("Respond with a JSON object: {\"reply\": spoken reply, \"fields\": any of the requested details the caller just provided, \"handoff\": true only if the caller asks for a human}.\n")

	if len(e.profile.Facts) > 0 {
		sb.WriteString("\nBusiness facts:\n")
		for _, fact := range e.profile.Facts {
			sb.WriteString("- " + fact + "\n")
		}
	}

	if e.knowledge != nil {
		snippets, err := e.knowledge.Search(ctx, utterance, 3)
		if err != nil {
			// Answers degrade to profile-only grounding.
			e.logger.Debug("knowledge search failed", "error", err)
		}
		if len(snippets) > 0 {
			sb.WriteString("\nKnowledge snippets:\n")
			for _, s := range snippets {
				fmt.Fprintf(&sb, "- %s: %s\n", s.Title, s.Content)
			}
		}
	}

	if f, ok := NextMissingField(fields); ok {
		fmt.Fprintf(&sb, "\nStill needed from the caller, in order: ")
		var missing []string
		for _, mf := range fieldOrder {
			if strings.TrimSpace(fields[mf.Name]) == "" {
				missing = append(missing, mf.Name)
			}
		}
		sb.WriteString(strings.Join(missing, ", "))
		fmt.Fprintf(&sb, ". After answering, ask for %q. Do not ask for anything already provided.", f.Name)
	} else {
		sb.WriteString("\nAll details are captured; wrap up politely.")
	}

	msgs := []ai.Message{{Role: "system", Content: sb.String()}}
	return append(msgs, recentHistory(st.History, 12)...)
}

// recentHistory returns the last n messages of the stored history.
func recentHistory(history []ai.Message, n int) []ai.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// trimHistory caps stored history so the session row stays small.
func trimHistory(st *State) {
	const maxMessages = 24
	if len(st.History) > maxMessages {
		st.History = st.History[len(st.History)-maxMessages:]
	}
}

// parseTurnReply extracts the structured reply, tolerating prose around
// the JSON object. A reply with no parseable object becomes plain spoken
// text with no captured fields.
func parseTurnReply(raw string) turnReply {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var out turnReply
		if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err == nil && out.Reply != "" {
			return out
		}
	}
	return turnReply{Reply: strings.TrimSpace(raw)}
}

func knownField(name string) bool {
	for _, f := range fieldOrder {
		if f.Name == name {
			return true
		}
	}
	return false
}
