package service

import (
	"context"
	"sort"

	"github.com/iliyamo/sneak-radar/internal/model"
)

// AuditBucket counts the hints that share one frozen guess rank.
type AuditBucket struct {
	Rank  model.GuessRank
	Count int
}

// AccuracyReport is the guess rank histogram over all hints.
type AccuracyReport struct {
	Buckets []AuditBucket
	Total   int
	// Ranked counts hints whose movie appeared in the ranking at all.
	Ranked int
	// Top1 counts hints whose movie was the top guess.
	Top1 int
}

// Counts renders the histogram as label -> count.
func (r AccuracyReport) Counts() map[string]int {
	out := make(map[string]int, len(r.Buckets))
	for _, b := range r.Buckets {
		out[b.Rank.Label()] += b.Count
	}
	return out
}

// AuditService reports how well past rankings predicted sneaks.
type AuditService struct {
	hints HintStore
}

func NewAuditService(hints HintStore) *AuditService {
	return &AuditService{hints: hints}
}

// Accuracy groups all hints by guess rank.  Hints without a rank are
// reported under the "unset" bucket.  It never writes.
func (s *AuditService) Accuracy(ctx context.Context) (AccuracyReport, error) {
	rows, err := s.hints.GuessRankCounts(ctx)
	if err != nil {
		return AccuracyReport{}, err
	}
	var rep AccuracyReport
	rep.Buckets = make([]AuditBucket, 0, len(rows))
	for _, row := range rows {
		rep.Buckets = append(rep.Buckets, AuditBucket{Rank: row.Rank, Count: row.Count})
		rep.Total += row.Count
		if row.Rank.Kind == model.GuessRanked {
			rep.Ranked += row.Count
			if row.Rank.Position == 1 {
				rep.Top1 += row.Count
			}
		}
	}
	sort.SliceStable(rep.Buckets, func(i, j int) bool { return bucketLess(rep.Buckets[i].Rank, rep.Buckets[j].Rank) })
	return rep, nil
}

// bucketLess orders ranked positions first, then not-in-top, new, unset.
func bucketLess(a, b model.GuessRank) bool {
	order := func(g model.GuessRank) int {
		switch g.Kind {
		case model.GuessRanked:
			return 0
		case model.GuessNotInTopN:
			return 1
		case model.GuessNew:
			return 2
		default:
			return 3
		}
	}
	if oa, ob := order(a), order(b); oa != ob {
		return oa < ob
	}
	return a.Position < b.Position
}
