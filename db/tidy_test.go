package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"frontpage/db"
	"frontpage/models"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneUnderCap(t *testing.T) {
	writer, reader := testStore(t)
	ctx := context.Background()

	seedItems(t, writer, testItem(1, 100), testItem(2, 200), testItem(3, 300))

	pruned, err := writer.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	items, err := reader.Newsfeed(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestPruneAtCap(t *testing.T) {
	writer, _ := testStore(t)
	ctx := context.Background()

	seedItems(t, writer, testItem(1, 100), testItem(2, 200))

	pruned, err := writer.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestPruneRemovesOldest(t *testing.T) {
	writer, reader := testStore(t)
	ctx := context.Background()

	seedItems(t, writer,
		testItem(1, 100), testItem(2, 200), testItem(3, 300),
		testItem(4, 400), testItem(5, 500), testItem(6, 600),
		testItem(7, 700))

	pruned, err := writer.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	items, err := reader.Newsfeed(ctx, 10)
	require.NoError(t, err)
	ids := lo.Map(items, func(item models.Item, _ int) int64 { return item.ID })
	assert.Equal(t, []int64{7, 6, 5, 4, 3}, ids)
}

func TestPruneTieBreaksOnID(t *testing.T) {
	writer, reader := testStore(t)
	ctx := context.Background()

	// Same publication time everywhere; the lowest ids must go first
	seedItems(t, writer,
		testItem(10, 100), testItem(11, 100), testItem(12, 100), testItem(13, 100))

	pruned, err := writer.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	items, err := reader.Newsfeed(ctx, 10)
	require.NoError(t, err)
	ids := lo.Map(items, func(item models.Item, _ int) int64 { return item.ID })
	assert.ElementsMatch(t, []int64{12, 13}, ids)
}

func TestPruneCascadesReactions(t *testing.T) {
	writer, reader := testStore(t)
	ctx := context.Background()

	seedItems(t, writer, testItem(1, 100), testItem(2, 200), testItem(3, 300))
	user := seedUser(t, writer, "reader@example.com")

	_, err := writer.React(ctx, user.ID, 1, models.IntentLike)
	require.NoError(t, err)

	// Pruning the liked item must sweep the membership row with it
	pruned, err := writer.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	liked, disliked, err := reader.Reactions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, liked)
	assert.Empty(t, disliked)
}

func TestTidyStandalone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontpage.db")
	require.NoError(t, db.Migrate(path))

	writer, err := db.NewWriter(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.SaveItems(ctx, []models.Item{
		testItem(1, 100), testItem(2, 200), testItem(3, 300),
	}))
	require.NoError(t, writer.Close())

	pruned, err := db.Tidy(ctx, path, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)
}
