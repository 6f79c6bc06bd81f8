package normalize

import (
	"strings"
	"testing"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

func dentalFixtureSnapshot() lexicon.LexiconSnapshot {
	snap := lexicon.Empty("admin-1")
	snap.CustomPatterns["karius"] = "cariës"
	snap.ProtectedWords["pocket"] = struct{}{}
	snap.CanonicalHyphenated["peri-apicaal"] = struct{}{}
	return snap
}

func TestNormalizeEndToEndScenarios(t *testing.T) {
	n := New()
	snap := dentalFixtureSnapshot()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"hyphenated element pair", "1-4", "element 14"},
		{"element pair with article cleanup", "cariës distaal van de 1-4", "cariës distaal van element 14"},
		{"dutch words already behind trigger", "element een vier distaal", "element 14 distaal"},
		{"custom pattern plus trigger combine", "karius op kies twee zes", "cariës op kies 26"},
		{"comma separated digits not combined", "1, 2, 3", "1, 2, 3"},
		{"unit compaction", "15 mm pocket", "15mm pocket"},
		{"decimal preserved", "1,5 jaar", "1,5 jaar"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := n.Normalize(tc.in, snap, 0.8)
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := New()
	snap := dentalFixtureSnapshot()

	inputs := []string{
		"1-4",
		"cariës distaal van de 1-4",
		"element een vier distaal",
		"karius op kies twee zes",
		"1, 2, 3",
		"15 mm pocket",
		"1,5 jaar",
	}

	for _, in := range inputs {
		once := n.Normalize(in, snap, 0.8)
		twice := n.Normalize(once, snap, 0.8)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first=%q second=%q", in, once, twice)
		}
	}
}

func TestNormalizePreservesDecimals(t *testing.T) {
	n := New()
	snap := dentalFixtureSnapshot()

	decimals := []string{"1,5", "3.25", "0,75"}
	for _, d := range decimals {
		in := "patient meldt " + d + " jaar klachten"
		got := n.Normalize(in, snap, 0.8)
		if !strings.Contains(got, d) {
			t.Errorf("Normalize(%q) = %q, lost decimal %q", in, got, d)
		}
	}
}

func TestNormalizePreservesProtectedAndCanonicalHyphenated(t *testing.T) {
	n := New()
	snap := dentalFixtureSnapshot()

	got := n.Normalize("pocket peri-apicaal zichtbaar", snap, 0.8)
	if !strings.Contains(got, "pocket") {
		t.Errorf("Normalize dropped protected word: %q", got)
	}
	if !strings.Contains(got, "peri-apicaal") {
		t.Errorf("Normalize dropped canonical hyphenated term: %q", got)
	}
}
