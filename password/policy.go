package password

import "strings"

const (
	// MinLength and MaxLength bound acceptable passwords in characters.
	MinLength = 8
	MaxLength = 128

	// Symbols is the punctuation set that satisfies the symbol class.
	// Generate draws from the same set.
	Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Violation identifies one failed strength rule.
type Violation string

// Violations are reported in this order.
const (
	ViolationTooShort   Violation = "too_short"
	ViolationTooLong    Violation = "too_long"
	ViolationNoUpper    Violation = "missing_uppercase"
	ViolationNoLower    Violation = "missing_lowercase"
	ViolationNoDigit    Violation = "missing_digit"
	ViolationNoSymbol   Violation = "missing_symbol"
	ViolationCommon     Violation = "common_password"
	ViolationRepeated   Violation = "repeated_characters"
	ViolationSequential Violation = "sequential_characters"
)

var violationMessages = map[Violation]string{
	ViolationTooShort:   "password must be at least 8 characters",
	ViolationTooLong:    "password must be at most 128 characters",
	ViolationNoUpper:    "password must contain an uppercase letter",
	ViolationNoLower:    "password must contain a lowercase letter",
	ViolationNoDigit:    "password must contain a digit",
	ViolationNoSymbol:   "password must contain a symbol",
	ViolationCommon:     "password is too common",
	ViolationRepeated:   "password must not repeat a character three times in a row",
	ViolationSequential: "password must not contain sequential characters",
}

// Message returns a human readable description of v.
func (v Violation) Message() string {
	if msg, ok := violationMessages[v]; ok {
		return msg
	}
	return string(v)
}

// Strength is a coarse label derived from Score.
type Strength string

const (
	StrengthVeryWeak   Strength = "very_weak"
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

// commonPasswords is compared case-insensitively against the whole input.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"p@ssw0rd": {}, "p@ssword1": {}, "123456": {}, "12345678": {},
	"123456789": {}, "1234567890": {}, "qwerty": {}, "qwerty123": {},
	"qwertyuiop": {}, "abc123": {}, "admin": {}, "admin123": {},
	"letmein": {}, "welcome": {}, "welcome1": {}, "monkey": {},
	"iloveyou": {}, "111111": {}, "000000": {}, "dragon": {},
	"football": {}, "baseball": {}, "sunshine": {}, "princess": {},
	"changeme": {}, "trustno1": {}, "master": {}, "superman": {},
}

var sequentialRuns = buildSequentialRuns("1234567890", "abcdefghijklmnopqrstuvwxyz")

func buildSequentialRuns(sources ...string) map[string]struct{} {
	runs := make(map[string]struct{})
	for _, src := range sources {
		for i := 0; i+3 <= len(src); i++ {
			runs[src[i:i+3]] = struct{}{}
		}
	}
	return runs
}

type classes struct {
	upper, lower, digit, symbol bool
}

// classify counts ASCII letters and digits only; Generate never emits
// anything else.
func classify(password string) classes {
	var c classes
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= '0' && r <= '9':
			c.digit = true
		case strings.ContainsRune(Symbols, r):
			c.symbol = true
		}
	}
	return c
}

func (c classes) count() int {
	n := 0
	for _, ok := range []bool{c.upper, c.lower, c.digit, c.symbol} {
		if ok {
			n++
		}
	}
	return n
}

// IsCommon reports whether password appears in the built-in blocklist.
func IsCommon(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}

// HasRepeatedRun reports whether any character occurs three times in a row.
func HasRepeatedRun(password string) bool {
	runes := []rune(password)
	for i := 0; i+2 < len(runes); i++ {
		if runes[i] == runes[i+1] && runes[i+1] == runes[i+2] {
			return true
		}
	}
	return false
}

// HasSequentialRun reports whether the password contains three consecutive
// digits or letters ("123", "890", "abc"), ignoring case.
func HasSequentialRun(password string) bool {
	lower := strings.ToLower(password)
	for i := 0; i+3 <= len(lower); i++ {
		if _, ok := sequentialRuns[lower[i:i+3]]; ok {
			return true
		}
	}
	return false
}

// ValidateStrength checks password against every rule. It reports whether
// the password is acceptable together with all failures in a fixed order.
func ValidateStrength(password string) (bool, []Violation) {
	var violations []Violation

	length := len([]rune(password))
	if length < MinLength {
		violations = append(violations, ViolationTooShort)
	}
	if length > MaxLength {
		violations = append(violations, ViolationTooLong)
	}

	c := classify(password)
	if !c.upper {
		violations = append(violations, ViolationNoUpper)
	}
	if !c.lower {
		violations = append(violations, ViolationNoLower)
	}
	if !c.digit {
		violations = append(violations, ViolationNoDigit)
	}
	if !c.symbol {
		violations = append(violations, ViolationNoSymbol)
	}
	if IsCommon(password) {
		violations = append(violations, ViolationCommon)
	}
	if HasRepeatedRun(password) {
		violations = append(violations, ViolationRepeated)
	}
	if HasSequentialRun(password) {
		violations = append(violations, ViolationSequential)
	}

	return len(violations) == 0, violations
}

// Score rates password on a 0..100 scale. It is advisory and independent of
// ValidateStrength.
func Score(password string) int {
	length := len([]rune(password))
	score := 0

	if length >= 8 {
		score += 20
	}
	if length >= 12 {
		score += 10
	}
	if length >= 16 {
		score += 10
	}
	if length > 20 {
		score += 10
	}
	score += 10 * classify(password).count()

	if IsCommon(password) {
		score -= 30
	}
	if HasRepeatedRun(password) || HasSequentialRun(password) {
		score -= 20
	}

	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// StrengthOf buckets a score in steps of 20.
func StrengthOf(score int) Strength {
	switch {
	case score < 20:
		return StrengthVeryWeak
	case score < 40:
		return StrengthWeak
	case score < 60:
		return StrengthMedium
	case score < 80:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}
