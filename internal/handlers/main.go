package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"

	cypherwebui "github.com/graphtalk/cypher-web-ui"
	"github.com/graphtalk/cypher-web-ui/internal/conversation"
	"github.com/graphtalk/cypher-web-ui/internal/models"
	"github.com/graphtalk/cypher-web-ui/internal/services"
)

const errLoggerKey = "err"

const conversationSSETopic = "conversation"

var transcriptSSEType = sse.Type("transcript")

// Config carries the startup data the presentation layer displays but never
// changes: the sample questions fetched from the service, whether requests
// must carry an API key, and whether the service's HTTP API answered at all.
type Config struct {
	Suggestions      []models.Suggestion
	KeyRequired      bool
	ServiceAvailable bool
}

// Main glues the conversation controller to the browser: it serves the chat
// page, accepts submissions, and pushes freshly rendered transcript
// snapshots over Server-Sent Events whenever the conversation changes.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	controller *conversation.Controller
	store      services.BoltDB
	cfg        Config

	connected *atomic.Bool

	logger *slog.Logger
}

// NewMain creates a Main instance around the given controller and settings
// store. It parses the embedded HTML templates and configures the SSE
// server so every browser session subscribes to the conversation topic.
func NewMain(
	controller *conversation.Controller,
	store services.BoltDB,
	cfg Config,
	logger *slog.Logger,
) (Main, error) {
	tmpl, err := template.ParseFS(
		cypherwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
			),
		),
	)

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, conversationSSETopic},
				}, true
			},
		},
		templates:  tmpl,
		markdown:   md,
		controller: controller,
		store:      store,
		cfg:        cfg,
		connected:  &atomic.Bool{},
		logger:     logger.With(slog.String("module", "handlers")),
	}, nil
}

// PublishSnapshot renders the current transcript partial and pushes it to
// all connected browsers. Registered as the controller's change callback.
func (m Main) PublishSnapshot() {
	html, err := m.renderTranscript()
	if err != nil {
		m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := &sse.Message{Type: transcriptSSEType}
	msg.AppendData(html)
	if err := m.sseSrv.Publish(msg, conversationSSETopic); err != nil {
		m.logger.Error("Failed to publish transcript", slog.String(errLoggerKey, err.Error()))
	}
}

// SetConnected records the transport's connectivity and republishes so the
// page indicator updates. Registered as the transport's status callback.
func (m Main) SetConnected(connected bool) {
	m.connected.Store(connected)
	m.PublishSnapshot()
}

// Shutdown gracefully terminates the SSE server, broadcasting a close
// message and waiting up to 5 seconds for clients to disconnect.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// The SSE spec requires a data field even on close.
	e.AppendData("bye")
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

func (m Main) renderTranscript() (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, "transcript", m.transcriptData()); err != nil {
		return "", fmt.Errorf("failed to execute transcript template: %w", err)
	}
	return buf.String(), nil
}
