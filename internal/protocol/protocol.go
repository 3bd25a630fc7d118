// Package protocol defines the JSON wire format spoken with the text2cypher
// service: one outbound request shape and a small set of inbound events
// discriminated by a type tag.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Question is the outbound request emitted when the user submits text.
// APIKey is attached only when the service indicated it needs one and a
// stored token exists.
type Question struct {
	Type      string `json:"type"`
	Question  string `json:"question"`
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key,omitempty"`
}

// NewQuestion builds the outbound request for a submitted question. It is a
// pure function of its inputs; handing the value to the transport is the
// caller's business.
func NewQuestion(text, model, apiKey string) Question {
	return Question{
		Type:      "question",
		Question:  text,
		ModelName: model,
		APIKey:    apiKey,
	}
}

// Event is an inbound service event. Exactly one concrete type below
// implements it per wire tag; Decode returns an error for anything else so
// callers can drop malformed frames without guessing.
type Event interface {
	eventTag() string
}

// Debug is a diagnostic line from the service. It never changes
// conversation state.
type Debug struct {
	Detail string
}

// ErrorEvent reports a failed turn. The detail is shown to the user while
// the conversation sits in its error excursion.
type ErrorEvent struct {
	Detail string
}

// Start announces that assistant output is about to stream.
type Start struct{}

// Stream carries one incremental content delta.
type Stream struct {
	Output string
}

// End terminates a turn, carrying the Cypher statement the service
// generated for the question.
type End struct {
	Output          string
	GeneratedCypher string
}

func (Debug) eventTag() string      { return "debug" }
func (ErrorEvent) eventTag() string { return "error" }
func (Start) eventTag() string      { return "start" }
func (Stream) eventTag() string     { return "stream" }
func (End) eventTag() string        { return "end" }

// envelope is the superset of all inbound event fields.
type envelope struct {
	Type            string `json:"type"`
	Detail          string `json:"detail"`
	Output          string `json:"output"`
	GeneratedCypher string `json:"generated_cypher"`
}

// Decode parses one inbound frame into its Event. Unknown tags and invalid
// JSON both return an error; the frame carries nothing actionable in either
// case.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch env.Type {
	case "debug":
		return Debug{Detail: env.Detail}, nil
	case "error":
		return ErrorEvent{Detail: env.Detail}, nil
	case "start":
		return Start{}, nil
	case "stream":
		return Stream{Output: env.Output}, nil
	case "end":
		return End{Output: env.Output, GeneratedCypher: env.GeneratedCypher}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
