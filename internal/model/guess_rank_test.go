package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestGuessRankRoundTripThroughColumn(t *testing.T) {
	cases := []struct {
		name  string
		rank  GuessRank
		label string
	}{
		{"unset", GuessRankUnset, "unset"},
		{"new", GuessRankNew, "new"},
		{"not in top", GuessRankNotInTop, "not_in_top"},
		{"ranked", RankedAt(3), "3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := tc.rank.Value()
			if err != nil {
				t.Fatalf("Value: %v", err)
			}
			var got GuessRank
			if err := got.Scan(v); err != nil {
				t.Fatalf("Scan(%v): %v", v, err)
			}
			if got != tc.rank {
				t.Fatalf("got %+v, want %+v", got, tc.rank)
			}
			if got.Label() != tc.label {
				t.Fatalf("label %q, want %q", got.Label(), tc.label)
			}
		})
	}
}

func TestGuessRankScanDriverBytes(t *testing.T) {
	var g GuessRank
	if err := g.Scan([]byte("-1")); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if g.Kind != GuessNew {
		t.Fatalf("got %+v, want new", g)
	}
	if err := g.Scan([]byte("x")); err == nil {
		t.Fatalf("expected error for non numeric column")
	}
}

func TestRankedAtBelowOneIsNotInTop(t *testing.T) {
	if got := RankedAt(0); got != GuessRankNotInTop {
		t.Fatalf("RankedAt(0) = %+v", got)
	}
}

func TestDaysBetweenIgnoresClock(t *testing.T) {
	a := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 3, 4, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 3 {
		t.Fatalf("DaysBetween = %d, want 3", got)
	}
	if got := DaysBetween(b, a); got != -3 {
		t.Fatalf("DaysBetween reversed = %d, want -3", got)
	}
}

func TestReleasedAfter(t *testing.T) {
	day := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	same := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	next := same.AddDate(0, 0, 1)
	if (Movie{}).ReleasedAfter(day) {
		t.Fatalf("movie without release date must not count as upcoming")
	}
	if (Movie{ReleaseDate: &same}).ReleasedAfter(day) {
		t.Fatalf("same-day release is not strictly after")
	}
	if !(Movie{ReleaseDate: &next}).ReleasedAfter(day) {
		t.Fatalf("next-day release should be upcoming")
	}
}

func TestGuessRankJSON(t *testing.T) {
	cases := []struct {
		rank GuessRank
		want string
	}{
		{GuessRankUnset, `{"kind":"unset","position":null}`},
		{GuessRankNew, `{"kind":"new","position":null}`},
		{GuessRankNotInTop, `{"kind":"not_in_top","position":null}`},
		{RankedAt(2), `{"kind":"ranked","position":2}`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.rank)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(b) != tc.want {
			t.Fatalf("got %s, want %s", b, tc.want)
		}
		var back GuessRank
		if err := json.Unmarshal(b, &back); err != nil || back != tc.rank {
			t.Fatalf("Unmarshal(%s) = %+v, %v", b, back, err)
		}
	}
	var g GuessRank
	if err := json.Unmarshal([]byte(`{"kind":"ranked"}`), &g); err == nil {
		t.Fatalf("ranked without position must fail")
	}
}
