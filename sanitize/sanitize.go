package sanitize

import (
	"html"
	"reflect"
	"regexp"
	"strings"
	"unicode"
)

// maxStripPasses bounds the strip loop; removing one match can splice a new
// one together ("javajavascript:script:").
const maxStripPasses = 8

// stripPatterns run after HTML escaping, so tag patterns match the escaped
// form (&lt;script ...&gt;).
var stripPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)&lt;script\b.*?&gt;.*?&lt;/script\s*&gt;`),
	regexp.MustCompile(`(?is)&lt;style\b.*?&gt;.*?&lt;/style\s*&gt;`),
	regexp.MustCompile(`(?is)&lt;/?(?:script|style|iframe|object|embed|link|meta)\b.*?&gt;`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)vbscript\s*:`),
	regexp.MustCompile(`(?i)data\s*:\s*text/html`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
}

// String escapes s for HTML, strips injection patterns and control
// characters other than newline and tab, and trims surrounding space.
func String(s string) string {
	out := html.EscapeString(s)

	for pass := 0; pass < maxStripPasses; pass++ {
		before := out
		for _, re := range stripPatterns {
			out = re.ReplaceAllString(out, "")
		}
		if out == before {
			break
		}
	}

	out = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, out)

	return strings.TrimSpace(out)
}

// Sanitize returns a same-shaped copy of v with every string leaf passed
// through [String]. It descends into slices, arrays and maps with string
// keys of any element type, including values held in interfaces. Map keys,
// pointers, structs and non-string scalars are returned unchanged.
func Sanitize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return String(t)
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = String(s)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Sanitize(e)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = String(s)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Sanitize(e)
		}
		return out
	default:
		return sanitizeValue(reflect.ValueOf(v)).Interface()
	}
}

// sanitizeValue rebuilds rv with the same type. Named types survive, so
// url.Values stays url.Values.
func sanitizeValue(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.String:
		return reflect.ValueOf(String(rv.String())).Convert(rv.Type())

	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(sanitizeValue(rv.Elem()))
		return out

	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(sanitizeValue(rv.Index(i)))
		}
		return out

	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(sanitizeValue(rv.Index(i)))
		}
		return out

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), sanitizeValue(iter.Value()))
		}
		return out

	default:
		return rv
	}
}
