package ingestion

import (
	"regexp"
	"sort"
	"strings"
)

// InferredMetadata holds the category, platform and keywords inferred from a
// chunk's text. Values present on the record take precedence; inference only
// fills the gaps.
type InferredMetadata struct {
	// Category is one of vpn, network, email, hardware, software, security, other.
	Category string
	// Platform is one of windows, mac, linux, android, ios, all.
	Platform string
	// Keywords are up to maxKeywords matched technical terms.
	Keywords []string
}

const maxKeywords = 5

// categoryTerms maps each category to the terms that signal it. Categories
// are scored by hit count; ties go to the earlier entry in categoryOrder.
var categoryTerms = map[string][]string{
	"vpn":      {"vpn", "forticlient", "openvpn", "anyconnect", "wireguard", "tunnel"},
	"network":  {"wifi", "wi-fi", "wireless", "eduroam", "ethernet", "lan", "dns", "proxy", "hotspot", "ip address"},
	"email":    {"email", "e-mail", "outlook", "gmail", "mailbox", "smtp", "imap", "thunderbird"},
	"hardware": {"printer", "projector", "laptop", "monitor", "keyboard", "usb", "scanner", "webcam"},
	"software": {"install", "installation", "license", "office", "zoom", "teams", "update", "antivirus"},
	"security": {"password", "reset password", "2fa", "mfa", "otp", "phishing", "malware", "sso", "login"},
}

var categoryOrder = []string{"vpn", "network", "email", "hardware", "software", "security"}

// platformPatterns are checked in order. The first match wins unless more
// than one platform matches, which yields "all".
var platformPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"windows", regexp.MustCompile(`\bwindows\b|\bwin ?1[01]\b`)},
	{"mac", regexp.MustCompile(`\bmac ?os\b|\bmacbook\b|\bmac\b|\bosx\b`)},
	{"linux", regexp.MustCompile(`\blinux\b|\bubuntu\b|\bdebian\b|\bfedora\b`)},
	{"android", regexp.MustCompile(`\bandroid\b`)},
	{"ios", regexp.MustCompile(`\bios\b|\biphone\b|\bipad\b`)},
}

// InferMetadata inspects chunk text and returns best-effort metadata. Text
// matching nothing yields category "other", platform "all" and no keywords.
func InferMetadata(text string) InferredMetadata {
	lower := strings.ToLower(text)
	m := InferredMetadata{Category: "other", Platform: "all"}

	best := 0
	var hits []string
	for _, cat := range categoryOrder {
		n := 0
		for _, term := range categoryTerms[cat] {
			if containsTerm(lower, term) {
				n++
				hits = append(hits, term)
			}
		}
		if n > best {
			best = n
			m.Category = cat
		}
	}

	var platforms []string
	for _, p := range platformPatterns {
		if p.re.MatchString(lower) {
			platforms = append(platforms, p.name)
		}
	}
	if len(platforms) == 1 {
		m.Platform = platforms[0]
	}

	m.Keywords = topKeywords(hits)
	return m
}

// containsTerm reports whether term occurs in text on word boundaries.
func containsTerm(text, term string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], term)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(term)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			return true
		}
		i = start + 1
	}
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

// topKeywords dedupes hits, prefers longer terms and caps the result.
func topKeywords(hits []string) []string {
	if len(hits) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}
