package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

const shutdownTimeout = 10 * time.Second

// ListenAndServe runs the servers until ctx is done, then shuts them down.
// It returns the first error that stopped a server for another reason.
func ListenAndServe(ctx context.Context, servers ...*http.Server) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.Newf("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")

			default:
				err = errors.Newf("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err)
				logs.Warn(err)
				once.Do(func() { firstErr = err })
			}
		}(s)
	}

	wg.Wait()
	return firstErr
}

// MetricsPathFormatter returns empty string on HTTP 301, 400, 404 or 405
// statusCode. Index ids are replaced by a placeholder.
func MetricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}

	parts := strings.Split(path, "/")
	if len(parts) > 2 && parts[1] == "indexes" && parts[2] != "" && parts[2] != "points" && parts[2] != "mesh" {
		parts[2] = "{id}"
	}
	return strings.Join(parts, "/")
}
