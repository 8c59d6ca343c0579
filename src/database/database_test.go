package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/khabaroff/mockhook/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInstance(id string) *models.Instance {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Instance{
		ID:             id,
		Name:           "Sample",
		APIKey:         "temp_" + id,
		CreatedAt:      now,
		LastAccessedAt: now,
		UpdatedAt:      now,
		Items:          []models.Item{},
	}
}

// countingGateway records writes on top of another gateway
type countingGateway struct {
	Gateway
	mu     sync.Mutex
	writes int
}

func (c *countingGateway) Write(ctx context.Context, doc *Document) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Gateway.Write(ctx, doc)
}

func TestFileGateway_InitializesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "api.json")

	gw, err := NewFileGateway(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "document file should be created on first use")

	doc, err := gw.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Instances)
	assert.Empty(t, doc.Items)
	assert.Empty(t, doc.Logs)
}

func TestFileGateway_RoundTrip(t *testing.T) {
	ctx := context.Background()
	gw, err := NewFileGateway(filepath.Join(t.TempDir(), "api.json"))
	require.NoError(t, err)

	doc := NewDocument()
	doc.Instances["a"] = sampleInstance("a")
	doc.Logs["hook"] = []models.WebhookLog{{ID: "l1", Method: "POST", Timestamp: time.Now().UTC()}}
	require.NoError(t, gw.Write(ctx, doc))

	got, err := gw.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, got.Instances, "a")
	assert.Equal(t, "temp_a", got.Instances["a"].APIKey)
	assert.NotNil(t, got.Instances["a"].Items)
	require.Len(t, got.Logs["hook"], 1)
	assert.Equal(t, "l1", got.Logs["hook"][0].ID)
}

func TestFileGateway_CorruptFileYieldsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.json")
	gw, err := NewFileGateway(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	doc, err := gw.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Instances)
}

func TestFileGateway_MissingFileYieldsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.json")
	gw, err := NewFileGateway(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	doc, err := gw.Read(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Logs)
}

func TestSQLiteGateway_RoundTrip(t *testing.T) {
	ctx := context.Background()
	gw, err := NewSQLiteGateway(ctx, ":memory:")
	require.NoError(t, err)
	defer gw.Close()

	doc, err := gw.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Instances)

	doc.Instances["b"] = sampleInstance("b")
	require.NoError(t, gw.Write(ctx, doc))

	got, err := gw.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, got.Instances, "b")
	assert.Equal(t, "Sample", got.Instances["b"].Name)
}

func TestSQLiteGateway_CorruptRowYieldsEmptyDocument(t *testing.T) {
	ctx := context.Background()
	gw, err := NewSQLiteGateway(ctx, ":memory:")
	require.NoError(t, err)
	defer gw.Close()

	_, err = gw.db.ExecContext(ctx, "UPDATE documents SET body = 'garbage' WHERE id = 1")
	require.NoError(t, err)

	doc, err := gw.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Instances)
}

func TestOpenGateway_SelectsBackendByScheme(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		url     string
		backend string
	}{
		{"bare path", filepath.Join(dir, "a.json"), BackendFile},
		{"file scheme", "file://" + filepath.Join(dir, "b.json"), BackendFile},
		{"sqlite scheme", "sqlite://" + filepath.Join(dir, "c.db"), BackendSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, backend, err := OpenGateway(ctx, tt.url)
			require.NoError(t, err)
			defer gw.Close()
			assert.Equal(t, tt.backend, backend)
		})
	}

	t.Run("empty url", func(t *testing.T) {
		_, _, err := OpenGateway(ctx, "")
		assert.Error(t, err)
	})
}

func TestDatabase_UpdateWritesOnlyWhenChanged(t *testing.T) {
	ctx := context.Background()
	inner, err := NewFileGateway(filepath.Join(t.TempDir(), "api.json"))
	require.NoError(t, err)
	gw := &countingGateway{Gateway: inner}
	db := NewDatabaseFromGateway(gw, BackendFile)

	require.NoError(t, db.Update(ctx, func(doc *Document) (bool, error) {
		return false, nil
	}))
	assert.Equal(t, 0, gw.writes)

	require.NoError(t, db.Update(ctx, func(doc *Document) (bool, error) {
		doc.Instances["x"] = sampleInstance("x")
		return true, nil
	}))
	assert.Equal(t, 1, gw.writes)

	boom := errors.New("boom")
	err = db.Update(ctx, func(doc *Document) (bool, error) {
		delete(doc.Instances, "x")
		return true, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, gw.writes, "failed updates must not be written")

	require.NoError(t, db.View(ctx, func(doc *Document) error {
		assert.Contains(t, doc.Instances, "x")
		return nil
	}))
}

func TestDatabase_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	db := NewTestDatabase(t)

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("inst-%d", i)
			err := db.Update(ctx, func(doc *Document) (bool, error) {
				doc.Instances[id] = sampleInstance(id)
				return true, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.NoError(t, db.View(ctx, func(doc *Document) error {
		assert.Len(t, doc.Instances, writers)
		return nil
	}))
}

func TestDatabase_Health(t *testing.T) {
	db := NewTestDatabase(t)
	assert.NoError(t, db.Health(context.Background()))

	var nilDB *Database
	assert.Error(t, nilDB.Health(context.Background()))
}

func TestPostgresGateway_RoundTrip(t *testing.T) {
	WithTestPostgres(t, func(gw *PostgresGateway) {
		ctx := context.Background()

		doc, err := gw.Read(ctx)
		require.NoError(t, err)
		assert.Empty(t, doc.Instances)

		doc.Instances["pg"] = sampleInstance("pg")
		require.NoError(t, gw.Write(ctx, doc))

		got, err := gw.Read(ctx)
		require.NoError(t, err)
		assert.Contains(t, got.Instances, "pg")
	})
}

func TestRedisGateway_RoundTrip(t *testing.T) {
	redisURL := GetTestRedisURL()
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	gw, err := NewRedisGateway(ctx, redisURL)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer gw.Close()
	gw.key = fmt.Sprintf("mockhook:test:%d", time.Now().UnixNano())
	defer gw.client.Del(ctx, gw.key)

	doc, err := gw.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Instances)

	doc.Instances["r"] = sampleInstance("r")
	require.NoError(t, gw.Write(ctx, doc))

	got, err := gw.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, got.Instances, "r")
}
