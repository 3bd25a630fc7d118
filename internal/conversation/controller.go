// Package conversation implements the client side of one chatbot
// conversation: an append-only transcript, the four-state lifecycle that
// gates user input, the folding of streamed service events into the open
// transcript entry, and the timed recovery from failed turns.
package conversation

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphtalk/cypher-web-ui/internal/models"
	"github.com/graphtalk/cypher-web-ui/internal/protocol"
)

// RecoveryDelay is the cool-down after a failed turn before the
// conversation accepts input again.
const RecoveryDelay = time.Second

const errLoggerKey = "err"

// Sender delivers an outbound request to the chatbot service.
type Sender interface {
	Send(v any) error
}

// Snapshot is a read-only view of the conversation handed to the
// presentation layer. The entries slice is a copy; rendering code may hold
// it across events.
type Snapshot struct {
	Entries     []models.ChatEntry
	State       models.ConversationState
	ErrorDetail string
}

// Controller owns a single conversation: it validates user submissions
// against the current state, emits the outbound question, folds inbound
// service events into the transcript, and arms the recovery timer on failed
// turns. All state is guarded by one mutex; events are processed one at a
// time in arrival order.
type Controller struct {
	mu         sync.Mutex
	transcript *Transcript
	state      models.ConversationState
	errDetail  string
	turnID     string

	model      string
	credential func() string

	sender    Sender
	scheduler Scheduler
	recovery  Timer

	onChange func()
	logger   *slog.Logger
}

// NewController creates a conversation controller. credential returns the
// API key to attach to outbound questions, or an empty string when none is
// needed; a nil credential never attaches one.
func NewController(sender Sender, model string, credential func() string, scheduler Scheduler, logger *slog.Logger) *Controller {
	if credential == nil {
		credential = func() string { return "" }
	}
	return &Controller{
		transcript: NewTranscript(),
		state:      models.StateReady,
		model:      model,
		credential: credential,
		sender:     sender,
		scheduler:  scheduler,
		logger:     logger.With(slog.String("module", "conversation")),
	}
}

// OnChange registers a callback invoked after every transcript or state
// change, outside the controller lock. The presentation layer uses it to
// republish snapshots.
func (c *Controller) OnChange(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = f
}

// Snapshot returns a copy of the current transcript and state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Entries:     c.transcript.Snapshot(),
		State:       c.state,
		ErrorDetail: c.errDetail,
	}
}

// Submit starts a new turn with the user's question. Submissions are
// ignored unless the conversation is ready and the text is non-empty; the
// return value reports whether the turn was started.
func (c *Controller) Submit(text string) bool {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if c.state != models.StateReady || text == "" {
		c.mu.Unlock()
		return false
	}

	// A turn that failed mid-stream leaves its assistant entry open; close
	// it before the new user entry so the open slot stays at the tail.
	if c.transcript.HasOpenEntry() {
		_ = c.transcript.UpdateLast(func(e *models.ChatEntry) {
			e.Complete = true
		})
	}

	if _, err := c.transcript.Append(models.ChatEntry{
		Origin:   models.OriginUser,
		Kind:     models.KindInput,
		Content:  text,
		Complete: true,
	}); err != nil {
		c.logger.Error("Failed to append user entry", slog.String(errLoggerKey, err.Error()))
		c.mu.Unlock()
		return false
	}

	c.turnID = uuid.New().String()
	c.state = models.StateWaiting
	req := protocol.NewQuestion(text, c.model, c.credential())
	turnID := c.turnID
	c.mu.Unlock()

	c.logger.Info("Submitting question", slog.String("turnID", turnID))

	if err := c.sender.Send(req); err != nil {
		c.logger.Error("Failed to send question",
			slog.String("turnID", turnID),
			slog.String(errLoggerKey, err.Error()))
		c.mu.Lock()
		c.enterErrorLocked("could not reach the service, please try again")
		c.mu.Unlock()
	}

	c.notify()
	return true
}

// HandleFrame processes one raw inbound frame from the transport. Malformed
// frames are logged and dropped without touching conversation state.
func (c *Controller) HandleFrame(data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		c.logger.Error("Dropping malformed event", slog.String(errLoggerKey, err.Error()))
		return
	}
	c.handleEvent(ev)
}

func (c *Controller) handleEvent(ev protocol.Event) {
	c.mu.Lock()
	changed := false

	switch e := ev.(type) {
	case protocol.Debug:
		c.logger.Debug("Service debug message",
			slog.String("turnID", c.turnID),
			slog.String("detail", e.Detail))

	case protocol.Start:
		if c.state != models.StateWaiting {
			c.logOutOfOrderLocked("start")
			break
		}
		if _, err := c.transcript.Append(models.ChatEntry{
			Origin: models.OriginAssistant,
			Kind:   models.KindText,
		}); err != nil {
			c.logger.Error("Failed to open assistant entry", slog.String(errLoggerKey, err.Error()))
			break
		}
		c.state = models.StateStreaming
		changed = true

	case protocol.Stream:
		if c.state != models.StateStreaming || !c.transcript.HasOpenEntry() {
			c.logOutOfOrderLocked("stream")
			break
		}
		_ = c.transcript.UpdateLast(func(entry *models.ChatEntry) {
			entry.Content += e.Output
		})
		changed = true

	case protocol.End:
		if c.state != models.StateStreaming || !c.transcript.HasOpenEntry() {
			c.logOutOfOrderLocked("end")
			break
		}
		_ = c.transcript.UpdateLast(func(entry *models.ChatEntry) {
			entry.Complete = true
			entry.GeneratedCypher = e.GeneratedCypher
		})
		c.state = models.StateReady
		c.logger.Info("Turn complete", slog.String("turnID", c.turnID))
		changed = true

	case protocol.ErrorEvent:
		// A second error while already recovering restarts the delay.
		if c.state != models.StateWaiting && c.state != models.StateStreaming && c.state != models.StateError {
			c.logOutOfOrderLocked("error")
			break
		}
		c.logger.Error("Turn failed",
			slog.String("turnID", c.turnID),
			slog.String("detail", e.Detail))
		c.enterErrorLocked(e.Detail)
		changed = true
	}

	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// HandleTransportStatus reacts to transport connectivity changes. A
// reconnect while a turn is in flight fails that turn: the service keeps no
// memory of it across connections, so its terminal event will never arrive.
func (c *Controller) HandleTransportStatus(connected bool) {
	if !connected {
		return
	}

	c.mu.Lock()
	if c.state != models.StateWaiting && c.state != models.StateStreaming {
		c.mu.Unlock()
		return
	}
	c.logger.Warn("Reconnected mid-turn, failing the turn", slog.String("turnID", c.turnID))
	c.enterErrorLocked("connection to the service was lost")
	c.mu.Unlock()

	c.notify()
}

// enterErrorLocked moves the conversation into the error excursion and arms
// the recovery timer. The open entry, if any, is left untouched; the next
// Submit finalizes it. Caller holds c.mu.
func (c *Controller) enterErrorLocked(detail string) {
	c.state = models.StateError
	c.errDetail = detail
	if c.recovery != nil {
		c.recovery.Stop()
	}
	c.recovery = c.scheduler.AfterFunc(RecoveryDelay, c.recover)
}

// recover is the recovery timer callback. A fire after the state already
// moved on is a no-op.
func (c *Controller) recover() {
	c.mu.Lock()
	if c.state != models.StateError {
		c.mu.Unlock()
		return
	}
	c.state = models.StateReady
	c.errDetail = ""
	c.recovery = nil
	c.mu.Unlock()

	c.logger.Info("Recovered from error, conversation ready")
	c.notify()
}

func (c *Controller) logOutOfOrderLocked(eventType string) {
	c.logger.Warn("Ignoring out-of-order event",
		slog.String("eventType", eventType),
		slog.String("state", string(c.state)))
}

func (c *Controller) notify() {
	c.mu.Lock()
	f := c.onChange
	c.mu.Unlock()
	if f != nil {
		f()
	}
}
