package domain

import "time"

// EpisodeWindow is the maximum span between the first and each subsequent
// document date within one care episode.
const EpisodeWindow = 30 * 24 * time.Hour

// Episode groups documents whose episode dates fall within one bounded
// time window. The clustering is an auxiliary index: the generation path
// does not consume it.
type Episode struct {
	// ID identifies the episode.
	ID string

	// Start is the earliest document date in the episode (YYYY-MM-DD).
	Start string

	// End is the latest document date in the episode (YYYY-MM-DD).
	End string

	// DocumentIDs lists the member documents in chronological order.
	DocumentIDs []string
}
