// Package queue defines message payloads exchanged over the message broker
// and the consumer that reacts to them.
package queue

// Event types carried in HintEvent.Type.
const (
	EventHintRecorded = "hint.recorded"
	EventHintVoted    = "hint.voted"
)

// HintQueueName is the durable queue all hint events are routed to.
const HintQueueName = "sneak.hints"

// HintEvent is published after a hint was recorded or voted on.  It
// carries enough information for downstream consumers to log it and to
// invalidate cached rankings without querying the primary database.
type HintEvent struct {
	Type       string `json:"type"`
	HintID     uint64 `json:"hint_id"`
	CinemaID   uint64 `json:"cinema_id"`
	MovieID    uint64 `json:"movie_id"`
	MovieName  string `json:"movie_name,omitempty"`
	Score      int    `json:"score"`
	ReportDate string `json:"report_date"`          // YYYY-MM-DD
	GuessRank  string `json:"guess_rank,omitempty"` // label, e.g. "new", "3"
	OccurredAt string `json:"occurred_at"`          // RFC3339 UTC
}
