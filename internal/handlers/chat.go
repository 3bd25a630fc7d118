package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/graphtalk/cypher-web-ui/internal/models"
)

// entry is the template-facing view of one transcript row. Content is
// already-rendered HTML; Streaming flags the open assistant entry so the
// page can show a typing indicator on it.
type entry struct {
	SequenceID      int64
	Origin          string
	Content         template.HTML
	GeneratedCypher template.HTML
	Streaming       bool
}

type transcriptData struct {
	Entries     []entry
	State       string
	ErrorDetail string
	Connected   bool
}

type homePageData struct {
	Transcript transcriptData

	Suggestions      []models.Suggestion
	KeyRequired      bool
	ServiceAvailable bool
}

// HandleHome serves the chat page with the current transcript snapshot, the
// sample questions, and the service availability flags.
func (m Main) HandleHome(w http.ResponseWriter, _ *http.Request) {
	data := homePageData{
		Transcript:       m.transcriptData(),
		Suggestions:      m.cfg.Suggestions,
		KeyRequired:      m.cfg.KeyRequired,
		ServiceAvailable: m.cfg.ServiceAvailable,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleChat accepts a user submission. Submissions arriving while a turn
// is already in flight are ignored; either way the response carries no
// body, because transcript updates reach the page over SSE.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	if !m.controller.Submit(msg) {
		m.logger.Warn("Ignored submission, conversation is not ready")
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE upgrades the request to a Server-Sent Events stream.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// HandleAPIKey stores the API key the user entered in the settings form.
// This is the settings collaborator's write path; the conversation core
// only ever reads the stored key.
func (m Main) HandleAPIKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.store.SetAPIKey(r.FormValue("api_key")); err != nil {
		m.logger.Error("Failed to store api key", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m Main) transcriptData() transcriptData {
	snap := m.controller.Snapshot()

	entries := make([]entry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		entries = append(entries, entry{
			SequenceID:      e.SequenceID,
			Origin:          string(e.Origin),
			Content:         m.renderContent(e),
			GeneratedCypher: m.renderCypher(e.GeneratedCypher),
			Streaming:       e.Origin == models.OriginAssistant && !e.Complete,
		})
	}

	return transcriptData{
		Entries:     entries,
		State:       string(snap.State),
		ErrorDetail: snap.ErrorDetail,
		Connected:   m.connected.Load(),
	}
}

// renderContent converts assistant markdown to HTML; user input is escaped
// verbatim.
func (m Main) renderContent(e models.ChatEntry) template.HTML {
	if e.Origin == models.OriginUser {
		return template.HTML(template.HTMLEscapeString(e.Content))
	}

	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(e.Content), &buf); err != nil {
		m.logger.Error("Failed to render markdown", slog.String(errLoggerKey, err.Error()))
		return template.HTML(template.HTMLEscapeString(e.Content))
	}
	return template.HTML(buf.String())
}

// renderCypher renders the generated Cypher statement as a highlighted code
// block.
func (m Main) renderCypher(cypher string) template.HTML {
	if cypher == "" {
		return ""
	}

	fenced := fmt.Sprintf("```cypher\n%s\n```", cypher)
	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(fenced), &buf); err != nil {
		m.logger.Error("Failed to render cypher", slog.String(errLoggerKey, err.Error()))
		return template.HTML(template.HTMLEscapeString(cypher))
	}
	return template.HTML(buf.String())
}
