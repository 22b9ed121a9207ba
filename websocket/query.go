package websocket

import (
	"context"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	httpcmn "github.com/aukilabs/kdlocator/http"
	"github.com/aukilabs/kdlocator/models"
	"golang.org/x/net/websocket"
)

// QueryHandler answers index queries sent by a stream client. A
// QueryHandler serves a single connection.
type QueryHandler struct {
	// The indexes queried by the client.
	Store *models.IndexStore

	// Generates the numeric ids of connected clients. Ids are released
	// when clients disconnect.
	ClientIDs *models.SequentialIDGenerator

	// The time a client can stay without sending a message.
	ClientIdleTimeout time.Duration

	conn     *websocket.Conn
	clientID string
	numID    uint32
}

func (h *QueryHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if h.ClientIDs != nil {
		h.numID = h.ClientIDs.New()
	}

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(httpcmn.HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = strconv.FormatUint(uint64(h.numID), 10)
	}
}

func (h *QueryHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
		Time:      time.Now(),
	})
	return nil
}

func (h *QueryHandler) HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Query == nil {
		return errors.New("query message without query").
			WithType(ErrTypeNoQuery).
			WithTag("request_id", msg.RequestID)
	}

	q := *msg.Query
	if q.RequestID == 0 {
		q.RequestID = msg.RequestID
	}

	res, err := h.Store.Query(q)
	if err != nil {
		return err
	}

	respond.Send(Msg{
		Type:      MsgTypeResult,
		RequestID: msg.RequestID,
		Time:      time.Now(),
		Result:    &res,
	})
	return nil
}

func (h *QueryHandler) HandleDisconnect(err error) {
	if h.ClientIDs != nil && h.numID != 0 {
		h.ClientIDs.Reuse(h.numID)
		h.numID = 0
	}
}

func (h *QueryHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *QueryHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *QueryHandler) Close() {
}

func (h *QueryHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *QueryHandler) ClientID() string {
	return h.clientID
}
