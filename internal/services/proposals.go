package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/graphtalk/cypher-web-ui/internal/models"
)

// The service numbers its proposed questions ("3. What is ..."); the prefix
// is presentation noise and gets stripped before display.
var ordinalPrefix = regexp.MustCompile(`^\d{1,2}\w*[.)\-]?\w*\s*`)

// StripOrdinalPrefix removes a leading numeric ordinal (one or two digits,
// optional word characters and punctuation) from a proposed question.
// Strings without a numeric prefix are returned unchanged.
func StripOrdinalPrefix(s string) string {
	return ordinalPrefix.ReplaceAllString(s, "")
}

// ProposalClient talks to the chatbot service's auxiliary HTTP endpoints:
// the sample-question proposals and the check for whether the service
// already holds an API key.
type ProposalClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewProposalClient creates a client for the service's HTTP API at baseURL.
func NewProposalClient(baseURL string, logger *slog.Logger) ProposalClient {
	return ProposalClient{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "proposals")),
	}
}

// Proposals fetches the sample questions suggested for the current
// database. This is best-effort startup data: any network, HTTP, or parse
// failure is logged and degrades to an empty list, never an error.
func (p ProposalClient) Proposals(ctx context.Context) []models.Suggestion {
	var body struct {
		Output []string `json:"output"`
	}
	if err := p.getJSON(ctx, "/questionProposalsForCurrentDb", &body); err != nil {
		p.logger.Warn("Failed to fetch question proposals", slog.String("err", err.Error()))
		return nil
	}

	suggestions := make([]models.Suggestion, 0, len(body.Output))
	for _, q := range body.Output {
		suggestions = append(suggestions, models.Suggestion{Text: StripOrdinalPrefix(q)})
	}
	return suggestions
}

// HasAPIKey reports whether the service already holds an API key of its
// own, meaning requests need not carry one. Unlike Proposals, a failure
// here means the service itself is unreachable and is returned to the
// caller.
func (p ProposalClient) HasAPIKey(ctx context.Context) (bool, error) {
	var body struct {
		Output bool `json:"output"`
	}
	if err := p.getJSON(ctx, "/hasapikey", &body); err != nil {
		return false, err
	}
	return body.Output, nil
}

func (p ProposalClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
