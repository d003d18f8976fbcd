// Package understanding implements the analyzer's Understanding dependency
// with an LLM call through Genkit: one generation that classifies intent and
// extracts entities/concepts as JSON.
//
// The client is rate limited and caps response size; parse failures are
// returned to the analyzer, which falls back to its rule-based classifier.
package understanding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
	"github.com/koopa0/rae/internal/retrieval/analyzer"
)

// maxResponseBytes caps the model response before parsing.
const maxResponseBytes = 8 * 1024

// maxConversationTurns bounds how much recent context enters the prompt.
const maxConversationTurns = 6

const classifyPrompt = `You classify a search query against an agent's memory store.

Query: %q
%s
Classify the query's intent as exactly one of:
- "factual": asks for a specific recorded fact
- "conceptual": asks what something is or means
- "exploratory": open-ended browsing, no sharp target
- "temporal": anchored to a time or ordering of events
- "relational": asks how people/things are connected
- "aggregative": asks to enumerate or summarize many items

Also extract:
- "entities": proper names of people, projects, systems mentioned
- "concepts": the topical terms the query is about
- "confidence": your confidence in the intent label, 0.0-1.0

Respond with a single JSON object and nothing else.
Example: {"intent":"relational","confidence":0.85,"entities":["Alice"],"concepts":["deployment"]}`

// Client calls the model and parses its classification. It implements
// analyzer.Understanding.
type Client struct {
	g       *genkit.Genkit
	model   string
	limiter *rate.Limiter
	logger  log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit bounds model calls to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithLogger injects the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the given Genkit instance and model name.
func New(g *genkit.Genkit, model string, opts ...Option) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	c := &Client{
		g:       g,
		model:   model,
		limiter: rate.NewLimiter(10, 30),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Analyze implements analyzer.Understanding.
func (c *Client) Analyze(ctx context.Context, text string, conversation []string) (analyzer.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return analyzer.Result{}, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(fmt.Sprintf(classifyPrompt, text, conversationBlock(conversation))),
	)
	if err != nil {
		return analyzer.Result{}, fmt.Errorf("generating classification: %w", err)
	}

	return parseResponse(resp.Text())
}

// conversationBlock renders recent turns for the prompt, newest last.
func conversationBlock(conversation []string) string {
	if len(conversation) == 0 {
		return ""
	}
	if len(conversation) > maxConversationTurns {
		conversation = conversation[len(conversation)-maxConversationTurns:]
	}
	return "Recent conversation:\n" + strings.Join(conversation, "\n") + "\n"
}

// classification mirrors the JSON shape the prompt requests.
type classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []string `json:"entities"`
	Concepts   []string `json:"concepts"`
}

// parseResponse validates and decodes the model output.
func parseResponse(text string) (analyzer.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return analyzer.Result{}, fmt.Errorf("empty classification response")
	}
	if len(text) > maxResponseBytes {
		return analyzer.Result{}, fmt.Errorf("classification response too large: %d bytes", len(text))
	}
	text = stripCodeFences(text)

	var c classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return analyzer.Result{}, fmt.Errorf("parsing classification: %w", err)
	}

	intent := retrieval.Intent(strings.ToLower(strings.TrimSpace(c.Intent)))
	if !intent.Valid() {
		return analyzer.Result{}, fmt.Errorf("unknown intent %q", c.Intent)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		c.Confidence = 0.5
	}

	return analyzer.Result{
		Intent:     intent,
		Confidence: c.Confidence,
		Entities:   c.Entities,
		Concepts:   c.Concepts,
	}, nil
}

// stripCodeFences removes a surrounding markdown code fence, which models
// add despite instructions.
func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
