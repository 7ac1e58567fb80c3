// Package tmdb is a small client for the parts of The Movie Database v3
// API the catalog needs: movie details with per-country release dates and
// the IMDb id lookup.
//
// Every call passes through a token bucket limiter and a circuit breaker.
// Callers only need to distinguish ErrNotFound from everything else; an
// open circuit, a timeout and a 5xx all surface as ErrUnavailable.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/iliyamo/sneak-radar/internal/metrics"
)

var (
	// ErrNotFound is returned when TMDB has no record for the id.
	ErrNotFound = errors.New("tmdb: not found")
	// ErrUnavailable wraps every other failure.
	ErrUnavailable = errors.New("tmdb: unavailable")
)

// Release types as defined by TMDB.
const (
	ReleasePremiere   = 1
	ReleaseLimited    = 2
	ReleaseTheatrical = 3
	ReleaseDigital    = 4
	ReleasePhysical   = 5
	ReleaseTV         = 6
)

const breakerName = "tmdb-api"

// Config configures a Client.
type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
	RPS      float64
	Burst    int
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type ReleaseDate struct {
	Certification string    `json:"certification"`
	Note          string    `json:"note"`
	ReleaseDate   time.Time `json:"release_date"`
	Type          int       `json:"type"`
}

// CountryReleases holds the release dates of one country.
type CountryReleases struct {
	Country      string        `json:"iso_3166_1"`
	ReleaseDates []ReleaseDate `json:"release_dates"`
}

// Movie is the subset of /movie/{id}?append_to_response=release_dates
// the catalog keeps.
type Movie struct {
	ID           uint64  `json:"id"`
	IMDbID       string  `json:"imdb_id"`
	Title        string  `json:"title"`
	VoteAverage  float64 `json:"vote_average"`
	Genres       []Genre `json:"genres"`
	ReleaseDates struct {
		Results []CountryReleases `json:"results"`
	} `json:"release_dates"`
}

type findResponse struct {
	MovieResults []struct {
		ID uint64 `json:"id"`
	} `json:"movie_results"`
}

// Client talks to the TMDB v3 API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     *logrus.Logger
}

// NewClient builds a Client.  A nil httpClient uses a client without its
// own timeout; per-call timeouts come from cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, log *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing movie is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cb:      cb,
		log:     log,
	}
}

// GetMovie fetches a movie with its release dates.
func (c *Client) GetMovie(ctx context.Context, id uint64) (*Movie, error) {
	q := url.Values{"append_to_response": {"release_dates"}}
	body, err := c.get(ctx, "movie", "/movie/"+strconv.FormatUint(id, 10), q)
	if err != nil {
		return nil, err
	}
	var m Movie
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: decode movie %d: %v", ErrUnavailable, id, err)
	}
	return &m, nil
}

// FindByIMDb maps an IMDb id (tt…) to a TMDB movie id.
func (c *Client) FindByIMDb(ctx context.Context, imdbID string) (uint64, error) {
	q := url.Values{"external_source": {"imdb_id"}}
	body, err := c.get(ctx, "find", "/find/"+url.PathEscape(imdbID), q)
	if err != nil {
		return 0, err
	}
	var fr findResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return 0, fmt.Errorf("%w: decode find %s: %v", ErrUnavailable, imdbID, err)
	}
	if len(fr.MovieResults) == 0 || fr.MovieResults[0].ID == 0 {
		return 0, ErrNotFound
	}
	return fr.MovieResults[0].ID, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "throttled").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	q.Set("api_key", c.cfg.APIKey)
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	target := c.cfg.BaseURL + path + "?" + q.Encode()

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, target)
	})
	switch {
	case err == nil:
		metrics.ProviderRequests.WithLabelValues(endpoint, "success").Inc()
		return body, nil
	case errors.Is(err, ErrNotFound):
		metrics.ProviderRequests.WithLabelValues(endpoint, "not_found").Inc()
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ProviderRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		metrics.ProviderRequests.WithLabelValues(endpoint, "failure").Inc()
		c.log.WithError(err).WithField("endpoint", endpoint).Warn("tmdb request failed")
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return body, nil
}
