package engine

import "regexp"

// Secret patterns scanned against the raw attribute payload. The signal only
// records which pattern matched, never the matched text.
var secretPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"openai_api_key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`)},
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._\-]{20,}\b`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{"password_assignment", regexp.MustCompile(`(?i)\bpassword\s*[=:]\s*\S+`)},
}

// scrubForSecrets returns the name of the first secret pattern found in the
// payload, or an empty string.
func scrubForSecrets(attributesJSON string) string {
	if attributesJSON == "" {
		return ""
	}
	for _, candidate := range secretPatterns {
		if candidate.pattern.MatchString(attributesJSON) {
			return candidate.name
		}
	}
	return ""
}
