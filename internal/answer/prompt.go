package answer

import (
	"fmt"
	"strings"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/rag"
)

// Fixed user-facing texts. These are returned verbatim and never passed
// through the model.
const (
	// NoKnowledgeText answers queries the knowledge base cannot cover.
	NoKnowledgeText = "Maaf, saya tidak memiliki informasi tentang itu dalam knowledge base saya. " +
		"Saya hanya bisa menjawab pertanyaan terkait IT support yang ada di sistem kami. " +
		"\n\nJika Anda memerlukan bantuan lebih lanjut, silakan hubungi IT support resmi."

	// DeflectionText is the wording the model must use when the context is
	// insufficient, and the answer emitted when retrieval itself failed.
	DeflectionText = "Maaf, knowledge base saya tidak memiliki informasi lengkap untuk menjawab ini. " +
		"Silakan hubungi IT support untuk bantuan lebih lanjut."
)

// roleGuidance adapts tone and verbosity to the caller.
var roleGuidance = map[access.Role]string{
	access.RoleStudent: `- Professional but friendly and approachable
- Explain technical terms when first mentioned
- Use analogies for complex concepts
- Encourage questions and provide helpdesk contact
- Assume beginner-level IT knowledge`,

	access.RoleLecturer: `- Professional and balanced tone
- Use technical terms appropriately without over-explaining
- Focus on efficient solutions
- Assume moderate IT literacy
- Provide both quick fixes and proper solutions`,

	access.RoleAdmin: `- Concise and technical
- Skip basic explanations, focus on system details
- Include configuration specifics and technical parameters
- Assume advanced IT knowledge`,

	access.RoleAnonymous: `- Professional but welcoming
- Explain terms clearly for non-technical users
- Encourage registration for better support
- Provide public contact info prominently
- Assume minimal IT knowledge`,
}

// guidanceFor falls back to the student tone for unknown roles.
func guidanceFor(role access.Role) string {
	if g, ok := roleGuidance[role]; ok {
		return g
	}
	return roleGuidance[access.RoleStudent]
}

const answerRules = `# RESPONSE RULES

## Source constraint
- Use ONLY information from the retrieved context below
- If the context is insufficient, reply exactly: "` + DeflectionText + `"
- Never supplement with external knowledge or assumptions
- Images attached to this message are part of the context

## Answer quality
- 2-4 sentences for simple questions, longer for step-by-step procedures
- Answer in Bahasa Indonesia unless the user writes in English
- Be specific: cite steps, error codes, and configuration names from the context
- Numbered lists for sequential steps, bullet points for options
- Partial match: say "Saya menemukan informasi terkait..." and give only what the context supports`

// firstTurnPrompt is the system message for a question with no prior history.
func firstTurnPrompt(role access.Role, contextText string) string {
	var sb strings.Builder
	sb.WriteString("You are an IT support assistant generating answers from retrieved documents.\n\n")
	sb.WriteString(answerRules)
	fmt.Fprintf(&sb, "\n\n## Tone\n%s\n\n# RETRIEVED CONTEXT\n\n%s\n", guidanceFor(role), contextText)
	return sb.String()
}

// historyPrompt is the system message when earlier turns are prepended. It
// tells the model to resolve references against that history while still
// taking facts only from the retrieved context.
func historyPrompt(role access.Role, contextText string) string {
	var sb strings.Builder
	sb.WriteString("You are an IT support assistant continuing a conversation. ")
	sb.WriteString("The previous messages are the conversation so far. Use them only to resolve ")
	sb.WriteString("references such as \"that\", \"it\", \"itu\" or \"tadi\" in the latest question; ")
	sb.WriteString("facts must still come from the retrieved context.\n\n")
	sb.WriteString(answerRules)
	fmt.Fprintf(&sb, "\n\n## Tone\n%s\n\n# RETRIEVED CONTEXT\n\n%s\n", guidanceFor(role), contextText)
	return sb.String()
}

// FormatContext renders documents as "Source: name\nContent: text" blocks
// separated by blank lines. It is shared by the answer prompt and the
// retrieve tool result.
func FormatContext(docs []rag.Document) string {
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		name := d.Metadata.DocumentName
		if name == "" {
			name = "Unknown"
		}
		blocks = append(blocks, fmt.Sprintf("Source: %s\nContent: %s", name, d.Content))
	}
	return strings.Join(blocks, "\n\n")
}
