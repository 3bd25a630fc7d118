package models

// Origin identifies which side of the conversation produced an entry.
type Origin string

// Kind identifies the content kind of an entry. Only textual content is
// modeled today; the field is kept so future kinds (tables, graphs) don't
// need a transcript migration.
type Kind string

const (
	// OriginUser marks an entry typed by the user.
	OriginUser Origin = "user"
	// OriginAssistant marks an entry produced by the chatbot service.
	OriginAssistant Origin = "assistant"

	// KindInput is the kind of user-typed entries.
	KindInput Kind = "input"
	// KindText is the kind of assistant text entries.
	KindText Kind = "text"
)

// ChatEntry is one row of the conversation transcript. Assistant entries are
// appended empty and grow as stream deltas arrive; Complete stays false until
// the turn's end event, which also attaches the Cypher statement the service
// generated for the question.
type ChatEntry struct {
	SequenceID      int64
	Origin          Origin
	Kind            Kind
	Content         string
	Complete        bool
	GeneratedCypher string
}

// ConversationState is the single conversation-wide state. Exactly one value
// is active at any instant.
type ConversationState string

const (
	// StateReady accepts user submissions.
	StateReady ConversationState = "ready"
	// StateWaiting means a question was sent and no response arrived yet.
	StateWaiting ConversationState = "waiting"
	// StateStreaming means assistant output is arriving.
	StateStreaming ConversationState = "streaming"
	// StateError is the transient error excursion; it auto-recovers to
	// StateReady after the recovery delay.
	StateError ConversationState = "error"
)
