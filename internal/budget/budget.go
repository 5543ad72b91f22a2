// Package budget estimates token usage and trims checkpointed conversation
// threads before the routing model call. Backends use different tokenizers,
// so estimation is a conservative character heuristic (1 token per 4
// characters) with fixed costs for message overhead and inline images.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead is the per-message framing cost most chat APIs charge.
	messageOverhead = 4

	// imageTokens is the flat cost charged for one inline image part.
	imageTokens = 85

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models while leaving room for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessage returns the estimated token count of one message: role,
// content, multi-part text, images, and tool call arguments.
func EstimateMessage(m *schema.Message) int {
	if m == nil {
		return 0
	}
	total := messageOverhead + Estimate(string(m.Role)) + Estimate(m.Content)
	for _, part := range m.MultiContent {
		switch part.Type {
		case schema.ChatMessagePartTypeImageURL:
			total += imageTokens
		default:
			total += Estimate(part.Text)
		}
	}
	for _, tc := range m.ToolCalls {
		total += Estimate(tc.Function.Name) + Estimate(tc.Function.Arguments)
	}
	return total
}

// EstimateMessages returns the estimated total token count for msgs.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}

// TrimHistory removes the oldest messages from history until fixed + history
// fits within maxTokens. fixed holds messages that are never trimmed (system
// prompt, current question). If fixed alone exceeds the budget an empty
// history is returned.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	remaining := maxTokens - EstimateMessages(fixed)
	total := EstimateMessages(history)
	for len(history) > 0 && total > remaining {
		total -= EstimateMessage(history[0])
		history = history[1:]
	}
	return history
}

// TrimThread trims a checkpointed thread like TrimHistory and then drops
// leading messages until the first user message, so the result never opens
// with a tool result whose tool call was trimmed away.
func TrimThread(fixed, thread []*schema.Message, maxTokens int) []*schema.Message {
	trimmed := TrimHistory(fixed, thread, maxTokens)
	for i, m := range trimmed {
		if m != nil && m.Role == schema.User {
			return trimmed[i:]
		}
	}
	return nil
}
