package sanitize

import (
	"html"
	"regexp"
)

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+(?:all\s+)?select\b`),
	regexp.MustCompile(`(?i)\bselect\b.+\bfrom\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\bupdate\s+\w+\s+set\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\bdrop\s+(?:table|database|schema)\b`),
	regexp.MustCompile(`(?i)\b(?:exec|execute)\s*\(|\bxp_cmdshell\b`),
	regexp.MustCompile(`(?i)'\s*(?:or|and)\s+'?\w+'?\s*=\s*'?\w+`),
	regexp.MustCompile(`(?i)\b(?:or|and)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`;\s*--|'\s*--|/\*.*?\*/`),
	regexp.MustCompile(`(?i)\b(?:sleep|benchmark|pg_sleep)\s*\(|\bwaitfor\s+delay\b`),
}

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*/?\s*(?:script|iframe|object|embed|link|meta|style|svg|base)\b`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)vbscript\s*:`),
	regexp.MustCompile(`(?i)data\s*:\s*text/html`),
	regexp.MustCompile(`(?i)<[^>]*\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?i)\bexpression\s*\(`),
}

// DetectSQLInjection reports whether s contains a common SQL injection
// shape. False positives are expected on prose about SQL.
func DetectSQLInjection(s string) bool {
	return matchAny(sqlPatterns, s)
}

// DetectXSS reports whether s, raw or after entity decoding, contains
// script-capable markup.
func DetectXSS(s string) bool {
	if matchAny(xssPatterns, s) {
		return true
	}
	if decoded := html.UnescapeString(s); decoded != s {
		return matchAny(xssPatterns, decoded)
	}
	return false
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
