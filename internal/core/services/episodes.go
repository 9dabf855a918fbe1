package services

import (
	"sort"
	"time"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// AssignEpisodes orders the documents chronologically and clusters the
// dated ones into care episodes. An episode starts at its earliest
// document and absorbs every later document dated within the episode
// window of that start.
//
// The documents are mutated in place: ChronologicalOrder is assigned
// across all documents (dated first, then undated in ingestion order) and
// EpisodeID is set on episode members. The returned episodes are an
// auxiliary index; the generation path does not consume them.
func AssignEpisodes(docs []domain.SourceDocument) []domain.Episode {
	if len(docs) == 0 {
		return nil
	}

	order := make([]int, 0, len(docs))
	undated := make([]int, 0, len(docs))
	for i, d := range docs {
		if _, err := time.Parse("2006-01-02", d.EpisodeDate); err == nil {
			order = append(order, i)
		} else {
			undated = append(undated, i)
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return docs[order[a]].EpisodeDate < docs[order[b]].EpisodeDate
	})
	sort.SliceStable(undated, func(a, b int) bool {
		return docs[undated[a]].AddedAt.Before(docs[undated[b]].AddedAt)
	})

	position := 1
	for _, i := range order {
		docs[i].ChronologicalOrder = position
		position++
	}
	for _, i := range undated {
		docs[i].ChronologicalOrder = position
		docs[i].EpisodeID = ""
		position++
	}

	var episodes []domain.Episode
	var current *domain.Episode
	var windowStart time.Time

	for _, i := range order {
		date, _ := time.Parse("2006-01-02", docs[i].EpisodeDate)
		if current == nil || date.Sub(windowStart) > domain.EpisodeWindow {
			episodes = append(episodes, domain.Episode{
				ID:    "ep-" + docs[i].EpisodeDate,
				Start: docs[i].EpisodeDate,
			})
			current = &episodes[len(episodes)-1]
			windowStart = date
		}
		current.End = docs[i].EpisodeDate
		current.DocumentIDs = append(current.DocumentIDs, docs[i].ID)
		docs[i].EpisodeID = current.ID
	}
	return episodes
}
