package answer

import (
	"regexp"
	"strings"
)

var smalltalkRe = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`\b(hai|halo|hello|hi)\b`,
	`\b(selamat\s+(pagi|siang|sore|malam))\b`,
	`\b(terima\s?kasi?h|makasih|thanks|thank\s+you)\b`,
	`\b(oke|okey|ok|sip|siap|noted)\b`,
	`\b(maaf|sorry)\b`,
	`\b(lanjut|lanjutan|follow\s*up)\b$`,
}, "|"))

var questionKeywords = []string{
	"?", "apa", "bagaimana", "gimana", "mengapa", "kenapa", "dimana", "kapan", "berapa",
	"what", "how", "why", "where", "when", "which",
}

var sourceKeywords = []string{
	"sumber", "referensi", "link", "tautan", "source", "citation", "bukti",
	"lihat dokumen", "lampiran", "dokumen",
}

// maxSmalltalkLen is the longest message still treated as small talk.
const maxSmalltalkLen = 80

// IsSmalltalk reports whether text is a short greeting, thanks, or
// acknowledgement rather than an information request.
func IsSmalltalk(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" || len(s) > maxSmalltalkLen {
		return false
	}
	if containsAny(s, questionKeywords) {
		return false
	}
	return smalltalkRe.MatchString(s)
}

// WantsSources reports whether text explicitly asks for sources or links.
func WantsSources(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	return s != "" && containsAny(s, sourceKeywords)
}

// Citations appends a "Sumber:" block listing links to answer when sources
// were requested explicitly or by wording, unless question is small talk.
// Links are deduplicated in order; empty links are skipped.
func Citations(answer, question string, links []string, includeSources bool) string {
	if !(includeSources || WantsSources(question)) || IsSmalltalk(question) {
		return answer
	}
	seen := make(map[string]struct{}, len(links))
	var lines []string
	for _, l := range links {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		lines = append(lines, "- "+l)
	}
	if len(lines) == 0 {
		return answer
	}
	return answer + "\n\nSumber:\n" + strings.Join(lines, "\n")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
