package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

func TestQuestionRoundTrip(t *testing.T) {
	store := NewQuestionStore()
	ctx := context.Background()

	q := &domain.OpenQuestion{
		ID:        "q1",
		SectionID: "s1",
		Text:      "Has the patient trialled an SSRI before?",
		Status:    domain.StatusOpen,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Save(ctx, q))

	got, err := store.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, q.Text, got.Text)

	q.Status = domain.StatusAnswered
	require.NoError(t, store.Save(ctx, q))

	got, err = store.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnswered, got.Status)
}

func TestListOrderedByCreatedAt(t *testing.T) {
	store := NewQuestionStore()
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, &domain.OpenQuestion{ID: "q2", SectionID: "s1", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, store.Save(ctx, &domain.OpenQuestion{ID: "q1", SectionID: "s1", CreatedAt: base}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "q1", all[0].ID)

	bySection, err := store.ListBySection(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, bySection, 2)

	empty, err := store.ListBySection(ctx, "s9")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestQuestionDelete(t *testing.T) {
	store := NewQuestionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.OpenQuestion{ID: "q1", SectionID: "s1"}))
	require.NoError(t, store.Delete(ctx, "q1"))

	_, err := store.Get(ctx, "q1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
