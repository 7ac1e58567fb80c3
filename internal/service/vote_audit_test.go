package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/queue"
)

func TestVoteRoundTripRestoresScore(t *testing.T) {
	hints := newFakeHints(newFakeMovies())
	hints.seed(1, 10, "2024-05-01", 3)
	events := &recordingPublisher{}
	svc := NewVoteService(hints, events, quietLogger())

	h, err := svc.Vote(context.Background(), 1, true, 2)
	if err != nil || h.Score != 5 {
		t.Fatalf("upvote = %+v, %v", h, err)
	}
	h, err = svc.Vote(context.Background(), 1, false, 2)
	if err != nil || h.Score != 3 {
		t.Fatalf("downvote = %+v, %v", h, err)
	}
	if len(events.events) != 2 || events.events[1].Type != queue.EventHintVoted {
		t.Fatalf("events = %+v", events.events)
	}
}

func TestVoteScoreIsUnbounded(t *testing.T) {
	hints := newFakeHints(newFakeMovies())
	hints.seed(1, 10, "2024-05-01", 0)
	svc := NewVoteService(hints, nil, quietLogger())
	var h *model.Hint
	for i := 0; i < 3; i++ {
		var err error
		if h, err = svc.Vote(context.Background(), 1, false, 2); err != nil {
			t.Fatalf("Vote: %v", err)
		}
	}
	if h.Score != -6 {
		t.Fatalf("score = %d, want -6", h.Score)
	}
}

func TestVoteRejectsMagnitude(t *testing.T) {
	hints := newFakeHints(newFakeMovies())
	hints.seed(1, 10, "2024-05-01", 4)
	svc := NewVoteService(hints, nil, quietLogger())
	for _, m := range []int{0, 3, -1, 10} {
		if _, err := svc.Vote(context.Background(), 1, true, m); !errors.Is(err, ErrInvalidMagnitude) {
			t.Fatalf("magnitude %d: err = %v", m, err)
		}
	}
	h, _ := hints.GetByID(context.Background(), 1)
	if h.Score != 4 {
		t.Fatalf("rejected votes changed the score to %d", h.Score)
	}
}

func TestVoteUnknownHintIsNoop(t *testing.T) {
	events := &recordingPublisher{}
	svc := NewVoteService(newFakeHints(newFakeMovies()), events, quietLogger())
	h, err := svc.Vote(context.Background(), 404, true, 1)
	if err != nil || h != nil {
		t.Fatalf("Vote = %+v, %v; want nil, nil", h, err)
	}
	if len(events.events) != 0 {
		t.Fatalf("no-op vote published %+v", events.events)
	}
}

func TestAccuracyReport(t *testing.T) {
	hints := newFakeHints(newFakeMovies())
	ranks := []model.GuessRank{
		model.RankedAt(1), model.RankedAt(1), model.RankedAt(3),
		model.GuessRankNew, model.GuessRankNotInTop, model.GuessRankUnset,
	}
	for i, r := range ranks {
		h := &model.Hint{CinemaID: 1, MovieID: uint64(i + 1), ReportDate: day("2024-05-01"), GuessRank: r}
		if err := hints.Create(context.Background(), h); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rep, err := NewAuditService(hints).Accuracy(context.Background())
	if err != nil {
		t.Fatalf("Accuracy: %v", err)
	}
	if rep.Total != 6 || rep.Ranked != 3 || rep.Top1 != 2 {
		t.Fatalf("report = %+v", rep)
	}
	want := map[string]int{"1": 2, "3": 1, "new": 1, "not_in_top": 1, "unset": 1}
	got := rep.Counts()
	if len(got) != len(want) {
		t.Fatalf("counts = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("counts[%q] = %d, want %d", k, got[k], v)
		}
	}
	labels := make([]string, len(rep.Buckets))
	for i, b := range rep.Buckets {
		labels[i] = b.Rank.Label()
	}
	wantOrder := []string{"1", "3", "not_in_top", "new", "unset"}
	for i := range wantOrder {
		if labels[i] != wantOrder[i] {
			t.Fatalf("bucket order = %v, want %v", labels, wantOrder)
		}
	}
}

func TestReason(t *testing.T) {
	if Reason(nil) != "" || Reason(errBoom) != "" {
		t.Fatalf("non rejections must have no reason")
	}
	if Reason(ErrMovieTooOld) != "movie_too_old" || Reason(ErrUnknownCinema) != "unknown_cinema" {
		t.Fatalf("reason codes changed")
	}
}
