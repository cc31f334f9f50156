package llm

import "testing"

func TestParseSignedRating(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		wantRating int
		wantConf   float64
		wantOK     bool
	}{
		{"signed digit with confidence", "-2 0.8", -2, 0.8, true},
		{"positive digit with confidence", "2 0.95", 2, 0.95, true},
		{"zero word with confidence", "zero 0.7", 0, 0.7, true},
		{"negative word with confidence", "negative two 0.9", -2, 0.9, true},
		{"minus word with confidence", "minus one 0.6", -1, 0.6, true},
		{"bare digit, no confidence defaults to 1", "1", 1, 1, true},
		{"bare signed digit, no confidence defaults to 1", "-1", -1, 1, true},
		{"none is not a rating", "NONE", 0, 0, false},
		{"empty text is not a rating", "", 0, 0, false},
		{"out of range magnitude is rejected", "5 0.9", 0, 0, false},
		{"garbage text is not a rating", "uh what", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rating, confidence, ok := parseSignedRating(tc.text)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if rating != tc.wantRating {
				t.Errorf("rating = %d, want %d", rating, tc.wantRating)
			}
			if confidence != tc.wantConf {
				t.Errorf("confidence = %v, want %v", confidence, tc.wantConf)
			}
		})
	}
}

func TestParseCompletionVerdict(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		wantComp   bool
		wantConf   float64
	}{
		{"complete with confidence", "COMPLETE 0.92", true, 0.92},
		{"incomplete with confidence", "INCOMPLETE 0.4", false, 0.4},
		{"lowercase complete", "complete 0.8", true, 0.8},
		{"missing confidence defaults to zero", "COMPLETE", true, 0},
		{"garbage defaults to incomplete, zero confidence", "uh sure", false, 0},
		{"empty defaults to incomplete, zero confidence", "", false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			complete, confidence := parseCompletionVerdict(tc.text)
			if complete != tc.wantComp {
				t.Errorf("complete = %v, want %v", complete, tc.wantComp)
			}
			if confidence != tc.wantConf {
				t.Errorf("confidence = %v, want %v", confidence, tc.wantConf)
			}
		})
	}
}
