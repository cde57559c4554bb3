package candidate

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// sentenceOfLength builds a sentence containing the keyword "risk" with the
// exact rune length n.
func sentenceOfLength(n int) string {
	base := "The risk "
	return base + strings.Repeat("x", n-len(base)-1) + "."
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First one. Second one!  Third one? Trailing")
	want := []string{"First one.", "Second one!", "Third one?", "Trailing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences = %q, want %q", got, want)
	}
}

func TestSplitSentencesKeepsInnerPunctuation(t *testing.T) {
	got := SplitSentences("Revenue grew 3.5% in Q2. Margins fell.")
	if len(got) != 2 || got[0] != "Revenue grew 3.5% in Q2." {
		t.Errorf("unexpected split %q", got)
	}
}

func TestSelectLengthBounds(t *testing.T) {
	s := New(20, 500)

	for _, tc := range []struct {
		length int
		want   bool
	}{
		{19, false},
		{20, true},
		{500, true},
		{501, false},
	} {
		sentence := sentenceOfLength(tc.length)
		if utf8.RuneCountInString(sentence) != tc.length {
			t.Fatalf("helper produced length %d, want %d", utf8.RuneCountInString(sentence), tc.length)
		}
		got := len(s.Select(sentence)) == 1
		if got != tc.want {
			t.Errorf("length %d: included=%v, want %v", tc.length, got, tc.want)
		}
	}
}

func TestSelectCountsRunesNotBytes(t *testing.T) {
	// 20 runes, more than 20 bytes.
	sentence := "Risk: élan ünïcødé ."
	if utf8.RuneCountInString(sentence) != 20 {
		t.Fatalf("test sentence has %d runes", utf8.RuneCountInString(sentence))
	}
	if len(New(20, 20).Select(sentence)) != 1 {
		t.Error("expected rune-length 20 sentence inside [20, 20]")
	}
}

func TestSelectRequiresKeyword(t *testing.T) {
	text := "Revenue grew steadily across every region this year. " +
		"Firms face a severe SHORTAGE of qualified engineers today."
	got := New(20, 500).Select(text)
	want := []string{"Firms face a severe SHORTAGE of qualified engineers today."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select = %q, want %q", got, want)
	}
}

func TestSelectDeduplicatesPreservingOrder(t *testing.T) {
	a := "Supply chain risk is rising for small importers."
	b := "Hospitals struggle to staff night shifts reliably."
	text := strings.Join([]string{a, b, a, b, a}, " ")

	got := New(20, 500).Select(text)
	if !reflect.DeepEqual(got, []string{a, b}) {
		t.Errorf("Select = %q", got)
	}
}

func TestSelectNoCandidates(t *testing.T) {
	if got := New(20, 500).Select("Nothing to see here at all today. Everything is fine."); len(got) != 0 {
		t.Errorf("expected no candidates, got %q", got)
	}
	if got := New(20, 500).Select(""); len(got) != 0 {
		t.Errorf("expected no candidates for empty text, got %q", got)
	}
}

func TestHasKeywordEveryKeyword(t *testing.T) {
	for _, k := range Keywords {
		sentence := fmt.Sprintf("There is a %s here.", strings.ToUpper(k))
		if !HasKeyword(sentence) {
			t.Errorf("expected keyword %q to match", k)
		}
	}
}
