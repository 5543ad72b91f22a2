// Package answer builds grounded prompts from retrieved documents and turns
// them into the final answer text through a chat model.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/rag"
)

// Input is everything needed to answer one question.
type Input struct {
	Question  string
	Documents []rag.Document
	Role      access.Role

	// History holds earlier user and assistant turns, oldest first. A
	// non-empty History selects the history-aware prompt.
	History []*schema.Message

	// TextOnly keeps image chunks out of the user message. Their extracted
	// text still reaches the model through the context block.
	TextOnly bool
}

// Generator produces answers with a chat model.
type Generator struct {
	model   model.BaseChatModel
	timeout time.Duration
	images  bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithImages controls whether image chunks are attached as image parts.
// Text-only models reject such messages, so callers disable it for them.
func WithImages(enabled bool) Option {
	return func(g *Generator) { g.images = enabled }
}

// New returns a Generator. timeout bounds each model call; zero disables it.
// Images are attached unless WithImages(false) is given.
func New(chatModel model.BaseChatModel, timeout time.Duration, opts ...Option) (*Generator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("answer: chat model must not be nil")
	}
	g := &Generator{model: chatModel, timeout: timeout, images: true}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate asks the model for an answer grounded in in.Documents.
func (g *Generator) Generate(ctx context.Context, in Input) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if !g.images {
		in.TextOnly = true
	}
	msgs := BuildMessages(in)
	logging.FromContext(ctx).Debug("answer: generating",
		slog.String("role", in.Role.String()),
		slog.Int("documents", len(in.Documents)),
		slog.Int("history", len(in.History)),
		slog.Int("images", countImages(in.Documents)),
		slog.Bool("text_only", in.TextOnly),
	)

	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("answer: model call failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("answer: model returned no message")
	}
	return strings.TrimSpace(resp.Content), nil
}

// BuildMessages assembles the model input. The first-turn and history-aware
// variants differ in their system message and in whether prior turns are
// prepended to the question.
func BuildMessages(in Input) []*schema.Message {
	contextText := FormatContext(in.Documents)
	user := schema.UserMessage(in.Question)
	if !in.TextOnly {
		user = userMessage(in.Question, in.Documents)
	}

	if len(in.History) == 0 {
		return []*schema.Message{
			schema.SystemMessage(firstTurnPrompt(in.Role, contextText)),
			user,
		}
	}

	msgs := make([]*schema.Message, 0, len(in.History)+2)
	msgs = append(msgs, schema.SystemMessage(historyPrompt(in.Role, contextText)))
	msgs = append(msgs, in.History...)
	msgs = append(msgs, user)
	return msgs
}

// userMessage attaches image chunks as inline data URLs next to the question.
func userMessage(question string, docs []rag.Document) *schema.Message {
	if countImages(docs) == 0 {
		return schema.UserMessage(question)
	}

	parts := []schema.ChatMessagePart{{Type: schema.ChatMessagePartTypeText, Text: question}}
	for _, d := range docs {
		if !d.HasImage() {
			continue
		}
		parts = append(parts, schema.ChatMessagePart{
			Type:     schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{URL: "data:image/jpeg;base64," + d.Metadata.Image},
		})
	}
	return &schema.Message{Role: schema.User, MultiContent: parts}
}

func countImages(docs []rag.Document) int {
	n := 0
	for _, d := range docs {
		if d.HasImage() {
			n++
		}
	}
	return n
}
