package keys

import (
	"regexp"
	"testing"
	"unicode"
)

var allowed = regexp.MustCompile(`^[A-Za-z0-9:_=.\-]+$`)

func TestURL_QueryOrderAndEmptyParamsIgnored(t *testing.T) {
	k1 := URL("https://PHIMAPI.com/v1/api/the-loai/hanh-dong?page=2&limit=10&sort_lang=")
	k2 := URL("https://phimapi.com/v1/api/the-loai/hanh-dong?limit=10&page=2")
	if k1 != k2 {
		t.Fatalf("canonical keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !allowed.MatchString(k1) {
		t.Fatalf("key contains disallowed characters: %s", k1)
	}
}

func TestURL_DifferentPagesDiffer(t *testing.T) {
	if URL("https://x/v1/api/nam/2024?page=1") == URL("https://x/v1/api/nam/2024?page=2") {
		t.Fatal("different pages must produce different keys")
	}
}

func TestPage_DeterministicAndFilterSensitive(t *testing.T) {
	f := map[string]string{"category": "hanh-dong", "sort_field": "modified.time", "year": ""}
	k1 := Page("category", f, 1, 20)
	k2 := Page("category", map[string]string{"sort_field": "modified.time", "category": "hanh-dong"}, 1, 20)
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if k1 == Page("category", f, 2, 20) {
		t.Fatal("page number must be part of the key")
	}
	if k1 == Page("category", f, 1, 24) {
		t.Fatal("page size must be part of the key")
	}
	if k1 == Page("category", map[string]string{"category": "tinh-cam"}, 1, 20) {
		t.Fatal("filters must be part of the key")
	}
}

func TestUnicodeSafety_NoPanicAndHashSuffixPresent(t *testing.T) {
	k := Page("search", map[string]string{"keyword": "người nhện  雪"}, 1, 20)
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if !regexp.MustCompile(`:f=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing or invalid :f=<hex64> suffix in key: %s", k)
	}
}
