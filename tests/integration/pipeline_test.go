// Package integration exercises the client and pipeline together against a
// mock Animal API.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/animal-etl/internal/testutil"
	"github.com/Sternrassler/animal-etl/pkg/client"
	"github.com/Sternrassler/animal-etl/pkg/pipeline"
)

func fastRetry() client.RetryPolicy {
	return client.RetryPolicy{
		MaxAttempts:   4,
		BaseDelay:     10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
}

func newTestClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()
	nop := zerolog.Nop()
	c, err := client.New(client.Config{
		BaseURL:   baseURL,
		UserAgent: "animal-etl-test/0.0.0",
		Timeout:   5 * time.Second,
		Retry:     fastRetry(),
		Logger:    &nop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func detailBody(id int64) string {
	return fmt.Sprintf(
		`{"id": %d, "name": "animal-%d", "friends": "Rex, Bella ", "born_at": "2020-01-02 15:04:05", "species": "dog"}`,
		id, id)
}

// Full run against the mock server: two pages of ids, one id missing
// upstream, transient 503s on the detail endpoint. All surviving records are
// normalized and delivered home.
func TestPipeline_EndToEnd(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	records := map[int64]string{
		1: detailBody(1),
		2: detailBody(2),
		4: detailBody(4),
	}

	mock.ServeAnimalList([][]int64{{1, 2}, {3, 4}})
	mock.ServeAnimalDetails(records)
	mock.ServeHome()

	// Animal 2 answers 503 twice before recovering; the client retries
	// through it. Animal 3 is permanently missing (404).
	mock.SetHandler("/animals/v1/animals/2", testutil.FailNTimes(2, http.StatusServiceUnavailable,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(records[2]))
		}))

	c := newTestClient(t, mock.URL())

	nop := zerolog.Nop()
	p, err := pipeline.New(c, pipeline.Config{
		Concurrency: 2,
		BatchSize:   100,
		PerPage:     2,
		Logger:      &nop,
	})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 3, stats.Transformed)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 3, mock.LoadedCount())

	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "animal 3")

	// The flaky detail endpoint was retried through; the 404 is a client
	// error and must not be retried.
	assert.Equal(t, 3, mock.RequestsFor("/animals/v1/animals/2"))
	assert.Equal(t, 1, mock.RequestsFor("/animals/v1/animals/3"))

	// Delivered records carry normalized fields.
	for _, batch := range mock.LoadedBatches() {
		for _, raw := range batch {
			s := string(raw)
			assert.Contains(t, s, `"friends":["Rex","Bella"]`)
			assert.Contains(t, s, `"born_at":"2020-01-02T15:04:05Z"`)
			assert.Contains(t, s, `"species":"dog"`)
		}
	}
}

// A listing endpoint that never recovers exhausts the retry budget; the run
// still completes and reports the failure.
func TestPipeline_ListingOutageReportedNotFatal(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetResponse("/animals/v1/animals", testutil.MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       `{"error": "upstream down"}`,
	})
	mock.ServeHome()

	c := newTestClient(t, mock.URL())

	nop := zerolog.Nop()
	p, err := pipeline.New(c, pipeline.Config{Concurrency: 2, Logger: &nop})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Loaded)
	require.NotEmpty(t, stats.Errors)
	assert.Contains(t, stats.Errors[0], "list page 1")

	// MaxAttempts requests before giving up.
	assert.Equal(t, fastRetry().MaxAttempts, mock.RequestsFor("/animals/v1/animals"))
}

func TestHealthCheck_AgainstMock(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetResponse("/docs", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/html"},
		Body:       "<html><body>Animal API</body></html>",
	})

	c := newTestClient(t, mock.URL())
	assert.True(t, c.HealthCheck(context.Background()))
}
