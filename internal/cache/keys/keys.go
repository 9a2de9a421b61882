// Package keys builds the cache keys shared by the raw-response and aggregated-page caches.
package keys

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxTextLen = 160

// URL keys a raw upstream response. Query parameter order and empty values do not matter.
func URL(raw string) string {
	canon := canonicalURL(raw)
	safe := sanitizeForKey(canon)
	if len(safe) > maxTextLen {
		safe = safe[:maxTextLen]
	}
	return fmt.Sprintf("url:%s:f=%016x", safe, xxhash.Sum64String(canon))
}

// Page keys one aggregated client page of a resource.
func Page(resource string, filters map[string]string, page, size int) string {
	filterText := normalizeFilters(filters)
	filterSafe := sanitizeForKey(filterText)
	if len(filterSafe) > maxTextLen {
		filterSafe = filterSafe[:maxTextLen]
	}
	sum := xxhash.Sum64String(filterText)
	return fmt.Sprintf("page:%s:%d:%d:filters=%s:f=%016x",
		sanitizeForKey(strings.TrimSpace(resource)), page, size, filterSafe, sum)
}

func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	q := u.Query()
	for k, vs := range q {
		if len(vs) == 0 || (len(vs) == 1 && strings.TrimSpace(vs[0]) == "") {
			q.Del(k)
		}
	}
	// Encode sorts by key
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeFilters(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(filters)) {
		v := collapseASCIIWhitespace(filters[k])
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(strings.ToLower(strings.TrimSpace(k)))
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=' || r == '.':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
