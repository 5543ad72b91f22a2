package agent

import (
	"regexp"
	"strings"
)

// GreetingText is the fixed reply to a pure greeting.
const GreetingText = "Halo! Saya asisten IT support yang siap membantu Anda. " +
	"Ada masalah IT atau pertanyaan yang bisa saya bantu hari ini? " +
	"Saya bisa membantu dengan VPN, jaringan, software, dan topik IT lainnya."

// standaloneGreetings match a whole message that is only a greeting, thanks,
// acknowledgement or apology, with optional trailing punctuation.
var standaloneGreetings = compileAll(
	`^(hai|halo|hello|hi|hey|hallo|haloo)[\s,!.?]*$`,
	`^(terima\s+kasih|thanks?|thx|thank\s+you)[\s,!.?]*$`,
	`^(oke|ok|okay|baik|siap|yes|ya)[\s,!.?]*$`,
	`^(selamat\s+(pagi|siang|sore|malam|datang))[\s,!.?]*$`,
	`^(maaf|sorry|excuse\s+me|permisi|pardon)[\s,!.?]*$`,
)

// contextualGreetings match a greeting followed by small talk.
var contextualGreetings = compileAll(
	`^(hai|halo|hello|hi|hey|haloo|hallo)\s*,?\s*(apa\s+kabar|bagaimana\s+kabar|how\s+are\s+you|what's\s+up)`,
	`^(apa\s+kabar|how\s+are\s+you|bagaimana\s+kabar)`,
	`^(nice\s+to\s+meet\s+you|senang\s+bertemu)`,
)

// itKeywords mark a message as an IT question. Matched as substrings.
var itKeywords = []string{
	"install", "setup", "konfigurasi", "configure", "config", "setting",
	"error", "troubleshoot", "masalah", "problem", "issue", "bug",
	"vpn", "firewall", "wifi", "network", "jaringan", "internet",
	"software", "hardware", "aplikasi", "program", "sistem", "system",
	"cara", "kenapa", "mengapa", "apa itu", "what is",
	"eap", "tls", "ssl", "certificate", "sertifikat",
	"password", "login", "akses", "access", "user", "admin",
	"download", "upload", "file", "folder", "direktori",
	"server", "client", "database", "backup", "restore",
	"update", "upgrade", "patch", "security", "keamanan",
}

// IsPureGreeting reports whether query is a greeting with no IT content.
// Standalone and contextual greeting patterns are checked first; only when
// neither matches do IT keywords come into play, and those always mean the
// message is not a greeting.
func IsPureGreeting(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))

	for _, re := range standaloneGreetings {
		if re.MatchString(q) {
			return true
		}
	}
	for _, re := range contextualGreetings {
		if re.MatchString(q) {
			return true
		}
	}
	for _, kw := range itKeywords {
		if strings.Contains(q, kw) {
			return false
		}
	}
	return false
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
