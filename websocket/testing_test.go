package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kdlocator/dataset"
	httpcmn "github.com/aukilabs/kdlocator/http"
	"github.com/aukilabs/kdlocator/kdtree"
	"github.com/aukilabs/kdlocator/models"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

// newTestingEnv starts a stream server and returns a connected client.
func newTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	config, err := websocket.NewConfig(
		strings.ReplaceAll(server.URL, "http://", "ws://"),
		"http://localhost",
	)
	require.NoError(t, err)

	config.Header.Set("User-Agent", "ted")
	config.Header.Set(httpcmn.HeaderClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		server.Close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	}
}

func newTestStore(t *testing.T) (*models.IndexStore, string) {
	tree := kdtree.New(kdtree.WithMinCells(2))
	require.NoError(t, tree.BuildFromPoints(dataset.Points{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}}))

	store := &models.IndexStore{}
	idx, err := store.Add("test", tree)
	require.NoError(t, err)
	return store, idx.ID
}

func newTestHandler(store *models.IndexStore, ids *models.SequentialIDGenerator, idleTimeout time.Duration) func() Handler {
	return func() Handler {
		var h Handler = &QueryHandler{
			Store:             store,
			ClientIDs:         ids,
			ClientIdleTimeout: idleTimeout,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "test")
		return h
	}
}

func exchange(t *testing.T, conn *websocket.Conn, msg Msg) Msg {
	_, err := Send(conn, msg)
	require.NoError(t, err)
	return receive(t, conn)
}

func receive(t *testing.T, conn *websocket.Conn) Msg {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	res, _, err := Receive(conn)
	require.NoError(t, err)
	return res
}
