package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// GuessRankKind tags the state of a frozen guess rank.
type GuessRankKind uint8

const (
	// GuessUnset means no rank was computed (legacy rows, imports).
	GuessUnset GuessRankKind = iota
	// GuessNew means the movie was first seen with this hint, so no
	// earlier ranking could contain it.
	GuessNew
	// GuessNotInTopN means the ranking ran but did not list the movie.
	GuessNotInTopN
	// GuessRanked means the movie held Position in the ranking.
	GuessRanked
)

// GuessRank is the position a movie held in the confidence ranking of
// the reporting cinema when its hint was submitted.
//
// In the hints.guess_rank column it is stored as NULL (unset), -1 (new),
// 0 (not in top N) or the 1-based position.
type GuessRank struct {
	Kind     GuessRankKind
	Position int
}

// RankedAt builds a ranked guess.  Positions below 1 are not a ranking
// and collapse to NotInTopN.
func RankedAt(position int) GuessRank {
	if position < 1 {
		return GuessRank{Kind: GuessNotInTopN}
	}
	return GuessRank{Kind: GuessRanked, Position: position}
}

var (
	GuessRankUnset    = GuessRank{Kind: GuessUnset}
	GuessRankNew      = GuessRank{Kind: GuessNew}
	GuessRankNotInTop = GuessRank{Kind: GuessNotInTopN}
)

// Label is the stable string used in JSON payloads and audit reports.
func (g GuessRank) Label() string {
	switch g.Kind {
	case GuessNew:
		return "new"
	case GuessNotInTopN:
		return "not_in_top"
	case GuessRanked:
		return strconv.Itoa(g.Position)
	default:
		return "unset"
	}
}

func (g GuessRank) String() string { return g.Label() }

type guessRankJSON struct {
	Kind     string `json:"kind"`
	Position *int   `json:"position"`
}

// MarshalJSON renders {"kind": "ranked", "position": 2}.  Kinds are
// "unset", "new", "not_in_top" and "ranked"; position is null unless
// ranked.
func (g GuessRank) MarshalJSON() ([]byte, error) {
	out := guessRankJSON{Kind: g.kindName()}
	if g.Kind == GuessRanked {
		p := g.Position
		out.Position = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the form written by MarshalJSON.
func (g *GuessRank) UnmarshalJSON(b []byte) error {
	var in guessRankJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	switch in.Kind {
	case "", "unset":
		*g = GuessRankUnset
	case "new":
		*g = GuessRankNew
	case "not_in_top":
		*g = GuessRankNotInTop
	case "ranked":
		if in.Position == nil {
			return fmt.Errorf("guess rank: ranked without position")
		}
		*g = RankedAt(*in.Position)
	default:
		return fmt.Errorf("guess rank: unknown kind %q", in.Kind)
	}
	return nil
}

func (g GuessRank) kindName() string {
	switch g.Kind {
	case GuessNew:
		return "new"
	case GuessNotInTopN:
		return "not_in_top"
	case GuessRanked:
		return "ranked"
	default:
		return "unset"
	}
}

// Value implements driver.Valuer.
func (g GuessRank) Value() (driver.Value, error) {
	switch g.Kind {
	case GuessNew:
		return int64(-1), nil
	case GuessNotInTopN:
		return int64(0), nil
	case GuessRanked:
		return int64(g.Position), nil
	default:
		return nil, nil
	}
}

// Scan implements sql.Scanner.
func (g *GuessRank) Scan(src any) error {
	var n int64
	switch v := src.(type) {
	case nil:
		*g = GuessRankUnset
		return nil
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int:
		n = int64(v)
	case []byte:
		p, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("guess rank: %w", err)
		}
		n = p
	case string:
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("guess rank: %w", err)
		}
		n = p
	default:
		return fmt.Errorf("guess rank: unsupported type %T", src)
	}
	switch {
	case n < 0:
		*g = GuessRankNew
	case n == 0:
		*g = GuessRankNotInTop
	default:
		*g = RankedAt(int(n))
	}
	return nil
}
