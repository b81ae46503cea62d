package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ExtractJSONObject returns the substring between the first "{" and the last
// "}" of a response, code fences stripped. Models wrap JSON in prose and
// markdown often enough that strict whole-body unmarshal is a losing game.
func ExtractJSONObject(response string) (string, error) {
	response = StripCodeFences(response)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return response[start : end+1], nil
}

// ExtractJSONArray returns the substring between the first "[" and the last
// "]" of a response, code fences stripped.
func ExtractJSONArray(response string) (string, error) {
	response = StripCodeFences(response)
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON array found in response")
	}
	return response[start : end+1], nil
}

// StripCodeFences removes markdown code fences (```json ... ```) from a
// response, leaving the fenced content in place.
func StripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	var sb strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

var scoreFieldRe = regexp.MustCompile(`"score"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
var scoreLooseRe = regexp.MustCompile(`(?i)\bscore\b\D{0,10}?([0-9]+(?:\.[0-9]+)?)`)

// ExtractScore is the last-resort numeric extraction for sufficiency
// responses: a quoted "score" JSON field first, then any number trailing the
// word score. Values are clamped to 0–100.
func ExtractScore(response string) (float64, bool) {
	for _, re := range []*regexp.Regexp{scoreFieldRe, scoreLooseRe} {
		if m := re.FindStringSubmatch(response); len(m) == 2 {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if v < 0 {
				v = 0
			} else if v > 100 {
				v = 100
			}
			return v, true
		}
	}
	return 0, false
}
