package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryUserRepository(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	user := domain.NewUser("Ann", "ann@example.org")
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)

	dup := domain.NewUser("Other", "ann@example.org")
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrUserEmailExists)

	user.Name = "Annabel"
	require.NoError(t, repo.Update(ctx, user))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Annabel", got.Name)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, repo.Update(ctx, domain.NewUser("ghost", "")), ErrUserNotFound)
}

func TestInMemoryChatArchive(t *testing.T) {
	archive := NewInMemoryChatArchive()
	ctx := context.Background()

	sessionA := uuid.New()
	sessionB := uuid.New()

	first := &domain.ChatMessage{ID: uuid.New(), SessionID: sessionA, AuthorName: "Ann", Text: "one"}
	second := &domain.ChatMessage{ID: uuid.New(), SessionID: sessionA, AuthorName: "Bo", Text: "two"}
	other := &domain.ChatMessage{ID: uuid.New(), SessionID: sessionB, AuthorName: "Cy", Text: "elsewhere"}

	require.NoError(t, archive.Save(ctx, first))
	require.NoError(t, archive.Save(ctx, second))
	require.NoError(t, archive.Save(ctx, other))

	messages, err := archive.ListBySession(ctx, sessionA)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Text, "insertion order is preserved")
	assert.Equal(t, "two", messages[1].Text)

	require.NoError(t, archive.MarkDeleted(ctx, second.ID))
	messages, err = archive.ListBySession(ctx, sessionA)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "one", messages[0].Text)

	assert.ErrorIs(t, archive.MarkDeleted(ctx, uuid.New()), ErrMessageNotFound)
}

func TestInMemoryChatArchiveContextCancellation(t *testing.T) {
	archive := NewInMemoryChatArchive()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := archive.Save(ctx, &domain.ChatMessage{ID: uuid.New()})
	assert.ErrorIs(t, err, context.Canceled)
}
