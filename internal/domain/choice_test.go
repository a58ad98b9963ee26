package domain

import (
	"errors"
	"testing"
)

func TestSelectionRoundTrip(t *testing.T) {
	sel, err := DecodeSelection(EncodeAnswer(12, 3))
	if err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if sel.Kind != SelectAnswer || sel.QuestionIndex != 12 || sel.OptionIndex != 3 {
		t.Fatalf("unexpected selection %+v", sel)
	}

	sel, err = DecodeSelection(EncodeVariant("python"))
	if err != nil {
		t.Fatalf("decode variant: %v", err)
	}
	if sel.Kind != SelectVariant || sel.Variant != "python" {
		t.Fatalf("unexpected selection %+v", sel)
	}
}

func TestDecodeSelectionRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"answer_",
		"answer_1",
		"answer_1_",
		"answer_-1_0",
		"answer_1_x",
		"answer_1_2_3",
		"answer_+1_2",
		"variant_",
		"vote_1_2",
	} {
		if _, err := DecodeSelection(raw); !errors.Is(err, ErrMalformedSelection) {
			t.Fatalf("%q: expected malformed selection, got %v", raw, err)
		}
		if _, err := DecodeSelection(raw); !errors.Is(err, ErrStaleEvent) {
			t.Fatalf("%q: malformed selection should classify as stale event", raw)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if _, err := NormalizeName("  Jo "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	name, err := NormalizeName("  Jo Smith ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if name != "Jo Smith" {
		t.Fatalf("expected trimmed name, got %q", name)
	}
	if _, err := NormalizeName("Юля"); err != nil {
		t.Fatalf("names are measured in characters, got %v", err)
	}
}

func TestPercent(t *testing.T) {
	cases := []struct{ score, total, want int }{
		{0, 0, 0},
		{2, 3, 67},
		{1, 3, 33},
		{30, 30, 100},
		{24, 30, 80},
	}
	for _, tc := range cases {
		if got := Percent(tc.score, tc.total); got != tc.want {
			t.Fatalf("Percent(%d, %d) = %d, want %d", tc.score, tc.total, got, tc.want)
		}
	}
}
