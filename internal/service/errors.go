package service

import "errors"

// Rejections of a hint submission.  Each maps to a stable reason code
// the client can render.
var (
	ErrUnknownCinema     = errors.New("unknown cinema")
	ErrMalformedDate     = errors.New("malformed date")
	ErrMalformedMovie    = errors.New("malformed movie reference")
	ErrAlreadyRecorded   = errors.New("hint already recorded")
	ErrMovieUnresolvable = errors.New("could not resolve movie")
	ErrMovieTooOld       = errors.New("movie too old to submit")
)

// ErrInvalidMagnitude rejects votes other than 1 or 2.
var ErrInvalidMagnitude = errors.New("vote magnitude must be 1 or 2")

// ErrMovieUnavailable is returned by the Reconciler when the provider
// could not deliver the movie for any reason, timeouts included.
var ErrMovieUnavailable = errors.New("movie metadata unavailable")

var reasons = []struct {
	err  error
	code string
}{
	{ErrUnknownCinema, "unknown_cinema"},
	{ErrMalformedDate, "malformed_date"},
	{ErrMalformedMovie, "malformed_movie"},
	{ErrAlreadyRecorded, "already_recorded"},
	{ErrMovieUnresolvable, "movie_unresolvable"},
	{ErrMovieTooOld, "movie_too_old"},
	{ErrInvalidMagnitude, "invalid_magnitude"},
}

// Reason returns the reason code of a rejection, or "" when err is not a
// rejection (nil or an internal failure).
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ""
}
