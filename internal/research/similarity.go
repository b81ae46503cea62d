package research

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for deduplication: lower-cased host,
// leading "www." stripped, trailing slash stripped from the path. Inputs that
// fail to parse fall back to a trimmed lower-cased string so dedup still has
// something stable to key on.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		// scheme-less inputs land here; they still get the www. strip so
		// "www.example.com/a" and "example.com/a" dedup together
		s := strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "/"))
		return strings.TrimPrefix(s, "www.")
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	path := strings.TrimRight(u.Path, "/")
	var sb strings.Builder
	if u.Scheme != "" {
		sb.WriteString(strings.ToLower(u.Scheme))
		sb.WriteString("://")
	}
	sb.WriteString(host)
	sb.WriteString(path)
	if u.RawQuery != "" {
		sb.WriteString("?")
		sb.WriteString(u.RawQuery)
	}
	return sb.String()
}

// tokenSet lowercases text and keeps words longer than two characters.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	}) {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

func isWordRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}

// JaccardSimilarity returns |A∩B| / |A∪B| over the word sets of a and b.
// Two empty texts are identical (1); one empty text matches nothing (0).
func JaccardSimilarity(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}
