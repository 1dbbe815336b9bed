package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	errx "github.com/datasense-ai/server/internal/core/error"
	logx "github.com/datasense-ai/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 256 * 1024 // 256KB
	maxErrSnippet = 200        // limit error snippet size
)

var (
	// ErrNoJSONObject is returned when a reply holds no decodable JSON object.
	ErrNoJSONObject = errors.New("no json object in model output")

	fencedPython = regexp.MustCompile("(?s)```python\\n(.*?)```")
	fencedAny    = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\n(.*?)```")
)

func clip(content string) string {
	if len(content) <= maxContentLen {
		return content
	}
	logx.Warn().
		Str("component", "output_parser").
		Int("max_len", maxContentLen).
		Int("orig_len", len(content)).
		Msg("content truncated due to size limit")
	content = content[:maxContentLen]
	// never split a multi-byte rune
	for !utf8.ValidString(content) && len(content) > 0 {
		content = content[:len(content)-1]
	}
	return content
}

func snippet(s string) string {
	if len(s) > maxErrSnippet {
		return s[:maxErrSnippet] + "..."
	}
	return s
}

// ParseJSONObject returns the first JSON object found in a model reply.
// Markdown fences and surrounding prose are tolerated.
func ParseJSONObject(content string) (obj map[string]any, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "output_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("output parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			obj = nil
		}
	}()

	content = strings.TrimSpace(clip(content))
	if m := fencedAny.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}

	for start := strings.IndexByte(content, '{'); start >= 0; {
		dec := json.NewDecoder(strings.NewReader(content[start:]))
		dec.UseNumber()
		var m map[string]any
		if derr := dec.Decode(&m); derr == nil {
			return normalizeNumbers(m).(map[string]any), nil
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, fmt.Errorf("%w: %q", ErrNoJSONObject, snippet(content))
}

// normalizeNumbers turns json.Number into float64 so callers see the same
// shapes encoding/json would produce without UseNumber.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = normalizeNumbers(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = normalizeNumbers(vv)
		}
		return t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	default:
		return v
	}
}

// ExtractCode returns the body of the first ```python fenced block. When no
// such block is present the whole text is treated as code.
func ExtractCode(content string) string {
	content = clip(content)
	if m := fencedPython.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}
