package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/metrics"
	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/queue"
	"github.com/iliyamo/sneak-radar/internal/repository"
)

// VoteService applies community votes to hints.
type VoteService struct {
	hints  HintStore
	events EventPublisher
	log    *logrus.Logger
}

func NewVoteService(hints HintStore, events EventPublisher, log *logrus.Logger) *VoteService {
	if events == nil {
		events = NopPublisher{}
	}
	return &VoteService{hints: hints, events: events, log: log}
}

// Vote moves a hint's score up or down by magnitude, which must be 1 or
// 2.  Voting on an unknown hint is a no-op and returns (nil, nil).  The
// score has no floor or ceiling.
func (s *VoteService) Vote(ctx context.Context, hintID uint64, up bool, magnitude int) (*model.Hint, error) {
	if magnitude != 1 && magnitude != 2 {
		return nil, ErrInvalidMagnitude
	}
	delta, direction := magnitude, "up"
	if !up {
		delta, direction = -magnitude, "down"
	}
	h, err := s.hints.AddScore(ctx, hintID, delta)
	if errors.Is(err, repository.ErrHintNotFound) {
		s.log.WithField("hint_id", hintID).Debug("vote on unknown hint ignored")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.Votes.WithLabelValues(direction).Inc()
	s.log.WithFields(logrus.Fields{"hint_id": hintID, "delta": delta, "score": h.Score}).Info("hint voted")
	publishHintEvent(ctx, s.events, s.log, queue.EventHintVoted, h)
	return h, nil
}
