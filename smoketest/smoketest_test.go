package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		res, err := Run(context.Background(), Options{
			Points:  2000,
			Queries: 50,
			Seed:    42,
		})
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, uint32(42), res.Seed)
		require.Zero(t, res.Mismatches)
		require.Greater(t, res.Regions, 1)
		require.Empty(t, res.Error)
	})

	t.Run("same seed same tree", func(t *testing.T) {
		a, err := Run(context.Background(), Options{Points: 500, Queries: 1, Seed: 7})
		require.NoError(t, err)
		b, err := Run(context.Background(), Options{Points: 500, Queries: 1, Seed: 7})
		require.NoError(t, err)
		require.Equal(t, a.Regions, b.Regions)
		require.Equal(t, a.Levels, b.Levels)
	})

	t.Run("smoke test failed - canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := Run(ctx, Options{Points: 100, Queries: 10, Seed: 1})
		require.Error(t, err)
		require.Equal(t, StatusFailed, res.Status)
		require.NotEmpty(t, res.Error)
	})
}

func TestHandleSmokeTest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	smokeTest := HandleSmokeTest(ctx, Options{Points: 1000, Queries: 20})

	t.Run("options from body", func(t *testing.T) {
		body, err := json.Marshal(Options{Points: 300, Seed: 3})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localhost/smoke-test", bytes.NewReader(body))
		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, 300, res.Points)
		require.Equal(t, defaultQueries, res.Queries)
		require.Equal(t, uint32(3), res.Seed)
	})

	t.Run("defaults", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://localhost/smoke-test", nil)
		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, 1000, res.Points)
		require.Equal(t, 20, res.Queries)
	})

	t.Run("bad body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localhost/smoke-test", bytes.NewBufferString("{"))
		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
