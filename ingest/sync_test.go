package ingest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"frontpage/db"
	"frontpage/hackernews"
	"frontpage/ingest"
	"frontpage/models"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*db.Writer, *db.Reader) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "frontpage.db")
	require.NoError(t, db.Migrate(path))

	writer, err := db.NewWriter(path)
	require.NoError(t, err)
	t.Cleanup(func() { writer.Close() })

	reader, err := db.NewReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	return writer, reader
}

func storyBody(id int64, unix int64) string {
	return fmt.Sprintf(`{"id": %d, "by": "poster", "time": %d, "title": "Story %d", "url": "https://example.com/%d", "type": "story"}`, id, unix, id, id)
}

// newUpstream fakes the upstream API. Ids present in items are served;
// everything else answers 500. A literal "null" body is served verbatim.
func newUpstream(t *testing.T, index string, items map[int64]string) *hackernews.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		if index == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(index))
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/item/"), ".json")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		body, ok := items[id]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return hackernews.NewClient(server.URL, time.Second)
}

func storedIDs(t *testing.T, reader *db.Reader) []int64 {
	t.Helper()
	items, err := reader.Newsfeed(context.Background(), 1000)
	require.NoError(t, err)
	return lo.Map(items, func(item models.Item, _ int) int64 { return item.ID })
}

func TestSyncHappyPass(t *testing.T) {
	writer, reader := newStore(t)
	source := newUpstream(t, `[3, 1, 2]`, map[int64]string{
		1: storyBody(1, 100),
		2: storyBody(2, 200),
		3: storyBody(3, 300),
	})

	stats, err := ingest.Sync(context.Background(), source, writer, ingest.Options{FetchLimit: 50, Retain: 150})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Fetched)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.Pruned)
	assert.NotEmpty(t, stats.PassID)

	assert.Equal(t, []int64{3, 2, 1}, storedIDs(t, reader))
}

func TestSyncHonorsFetchLimit(t *testing.T) {
	writer, reader := newStore(t)
	source := newUpstream(t, `[5, 4, 3, 2, 1]`, map[int64]string{
		1: storyBody(1, 100),
		2: storyBody(2, 200),
		3: storyBody(3, 300),
		4: storyBody(4, 400),
		5: storyBody(5, 500),
	})

	stats, err := ingest.Sync(context.Background(), source, writer, ingest.Options{FetchLimit: 3, Retain: 150})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Fetched)
	// Only the top of the ranking was fetched
	assert.ElementsMatch(t, []int64{5, 4, 3}, storedIDs(t, reader))
}

func TestSyncIdempotentSecondPass(t *testing.T) {
	writer, reader := newStore(t)
	source := newUpstream(t, `[1, 2]`, map[int64]string{
		1: storyBody(1, 100),
		2: storyBody(2, 200),
	})

	opts := ingest.Options{FetchLimit: 50, Retain: 150}

	_, err := ingest.Sync(context.Background(), source, writer, opts)
	require.NoError(t, err)
	_, err = ingest.Sync(context.Background(), source, writer, opts)
	require.NoError(t, err)

	items, err := reader.Newsfeed(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSyncSkipsFailedItems(t *testing.T) {
	writer, reader := newStore(t)
	// Id 2 answers 500, id 4 answers a null body; both are per-item failures
	source := newUpstream(t, `[1, 2, 3, 4]`, map[int64]string{
		1: storyBody(1, 100),
		3: storyBody(3, 300),
		4: `null`,
	})

	stats, err := ingest.Sync(context.Background(), source, writer, ingest.Options{FetchLimit: 50, Retain: 150})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 2, stats.Skipped)
	assert.ElementsMatch(t, []int64{1, 3}, storedIDs(t, reader))
}

func TestSyncIndexFailureLeavesStoreUntouched(t *testing.T) {
	writer, reader := newStore(t)

	// Pre-existing content must survive an aborted pass unchanged
	require.NoError(t, writer.SaveItems(context.Background(), []models.Item{
		{ID: 7, By: "poster", Time: 700, Title: "Existing"},
	}))

	source := newUpstream(t, "", nil)

	_, err := ingest.Sync(context.Background(), source, writer, ingest.Options{FetchLimit: 50, Retain: 150})
	assert.Error(t, err)

	items, err := reader.Newsfeed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Existing", items[0].Title)
}

func TestSyncPrunesToRetentionCap(t *testing.T) {
	writer, reader := newStore(t)
	source := newUpstream(t, `[1, 2, 3, 4, 5]`, map[int64]string{
		1: storyBody(1, 100),
		2: storyBody(2, 200),
		3: storyBody(3, 300),
		4: storyBody(4, 400),
		5: storyBody(5, 500),
	})

	stats, err := ingest.Sync(context.Background(), source, writer, ingest.Options{FetchLimit: 50, Retain: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Pruned)
	assert.Equal(t, []int64{5, 4, 3}, storedIDs(t, reader))
}

func TestSyncCanceledContext(t *testing.T) {
	writer, _ := newStore(t)
	source := newUpstream(t, `[1]`, map[int64]string{1: storyBody(1, 100)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ingest.Sync(ctx, source, writer, ingest.Options{FetchLimit: 50, Retain: 150})
	assert.Error(t, err)
}

func TestRunTicksUntilCanceled(t *testing.T) {
	writer, reader := newStore(t)
	source := newUpstream(t, `[1, 2]`, map[int64]string{
		1: storyBody(1, 100),
		2: storyBody(2, 200),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ingest.Run(ctx, source, writer, ingest.Options{FetchLimit: 50, Retain: 150}, 5*time.Millisecond)
	}()

	// The first pass fires immediately, before the first tick
	require.Eventually(t, func() bool {
		items, err := reader.Newsfeed(context.Background(), 10)
		return err == nil && len(items) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
