package service

import (
	"context"
	"time"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/queue"
	"github.com/iliyamo/sneak-radar/internal/ranking"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/tmdb"
)

// CinemaStore is the read side of the cinema table the core needs.
type CinemaStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Cinema, error)
}

// MovieStore is the movie catalog.
type MovieStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
	GetByIMDbID(ctx context.Context, imdbID string) (*model.Movie, error)
	Upsert(ctx context.Context, m *model.Movie) (*model.Movie, error)
	ListStale(ctx context.Context, today time.Time) ([]model.Movie, error)
}

// MovieProvider is the external metadata source.
type MovieProvider interface {
	GetMovie(ctx context.Context, id uint64) (*tmdb.Movie, error)
	FindByIMDb(ctx context.Context, imdbID string) (uint64, error)
}

// HintTx is the view of the hint store inside a submission snapshot.
type HintTx interface {
	ranking.EvidenceSource
	// MovieHinted reports whether any hint exists for the movie.  It must
	// be the first read of the snapshot.
	MovieHinted(ctx context.Context, movieID uint64) (bool, error)
	Exists(ctx context.Context, cinemaID, movieID uint64, day time.Time) (bool, error)
	Create(ctx context.Context, h *model.Hint) error
}

// HintStore is the hint table.
type HintStore interface {
	Snapshot(ctx context.Context, fn func(HintTx) error) error
	GetByID(ctx context.Context, id uint64) (*model.Hint, error)
	AddScore(ctx context.Context, id uint64, delta int) (*model.Hint, error)
	ListByCinema(ctx context.Context, cinemaID uint64, from time.Time) ([]model.HintWithMovie, error)
	GuessRankCounts(ctx context.Context) ([]repository.GuessRankCount, error)
}

// EventPublisher delivers hint events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.HintEvent) error
}

// NopPublisher drops every event.  It is used when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.HintEvent) error { return nil }

type hintRepoStore struct {
	*repository.HintRepo
}

// NewHintStore adapts the MySQL hint repository to HintStore.
func NewHintStore(r *repository.HintRepo) HintStore {
	return hintRepoStore{r}
}

func (s hintRepoStore) Snapshot(ctx context.Context, fn func(HintTx) error) error {
	return s.HintRepo.Snapshot(ctx, func(tx *repository.HintRepo) error { return fn(tx) })
}
