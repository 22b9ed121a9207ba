package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/models"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeMsgDecode  = "stream-msg-decode"
	ErrTypeMsgEncode  = "stream-msg-encode"
	ErrTypeUnknownMsg = "stream-unknown-msg"
	ErrTypeNoQuery    = "stream-no-query"
)

type MsgType string

const (
	MsgTypePing   MsgType = "ping"
	MsgTypePong   MsgType = "pong"
	MsgTypeQuery  MsgType = "query"
	MsgTypeResult MsgType = "result"
	MsgTypeError  MsgType = "error"
)

// Msg is a message exchanged with a stream client. Queries and their
// results are correlated with RequestID.
type Msg struct {
	Type      MsgType        `json:"type"`
	RequestID uint32         `json:"request_id,omitempty"`
	Time      time.Time      `json:"time"`
	Query     *models.Query  `json:"query,omitempty"`
	Result    *models.Result `json:"result,omitempty"`
	Error     *ErrorMsg      `json:"error,omitempty"`
}

// TypeString returns the message type, suffixed with the query type for
// queries and results.
func (m Msg) TypeString() string {
	switch {
	case m.Query != nil:
		return string(m.Type) + "_" + string(m.Query.Type)
	case m.Result != nil:
		return string(m.Type) + "_" + string(m.Result.Type)
	default:
		return string(m.Type)
	}
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorMsg(requestID uint32, err error) Msg {
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Time:      time.Now(),
		Error: &ErrorMsg{
			Type:    errors.Type(err),
			Message: err.Error(),
		},
	}
}

// Receiver receives a message and returns it with the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to send to the client.
type ResponseSender interface {
	Send(Msg)
}

// Receive reads a JSON message from the connection.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeMsgDecode).
			Wrap(err)
	}
	return msg, len(b), nil
}

// Send writes a message to the connection as a JSON text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}
