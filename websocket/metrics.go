package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel   = "error_type"
	msgTypeLabel   = "msg_type"
	queryTypeLabel = "query_type"
	endpointLabel  = "endpoint"
)

var (
	streamConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_connected_clients",
		Help: "The number of connected stream clients.",
	}, []string{
		endpointLabel,
	})

	streamReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_received_msgs",
		Help: "The number of messages received from stream clients.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	streamReceivedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_received_bytes",
		Help: "The number of bytes received from stream clients.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	streamReceiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_receive_errors",
		Help: "The errors that occured while receiving a stream message.",
	}, []string{
		endpointLabel,
		errTypeLabel,
	})

	streamSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_sent_msgs",
		Help: "The number of messages sent to stream clients.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	streamSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_sent_bytes",
		Help: "The number of bytes sent to stream clients.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	streamSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_send_errors",
		Help: "The errors that occured while sending a stream message.",
	}, []string{
		endpointLabel,
		errTypeLabel,
		msgTypeLabel,
	})

	streamQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_queries",
		Help: "The number of queries answered over streams.",
	}, []string{
		endpointLabel,
		queryTypeLabel,
	})

	streamQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_query_errors",
		Help: "The number of stream queries that failed.",
	}, []string{
		endpointLabel,
		queryTypeLabel,
		errTypeLabel,
	})

	streamQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "stream_query_latency",
		Help: "The time to answer a stream query.",
	}, []string{
		endpointLabel,
		queryTypeLabel,
	})
)

// HandlerWithMetrics wraps h with prometheus metrics labelled with the
// given endpoint.
func HandlerWithMetrics(h Handler, endpoint string) Handler {
	return &handlerWithMetrics{
		Handler:  h,
		endpoint: endpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	endpoint string
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	streamConnectedClients.
		With(prometheus.Labels{endpointLabel: h.endpoint}).
		Inc()

	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	streamConnectedClients.
		With(prometheus.Labels{endpointLabel: h.endpoint}).
		Dec()

	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	queryType := "unknown"
	if msg.Query != nil {
		queryType = string(msg.Query.Type)
	}

	start := time.Now()
	err := h.Handler.HandleQuery(ctx, respond, msg)

	streamQueryLatency.With(prometheus.Labels{
		endpointLabel:  h.endpoint,
		queryTypeLabel: queryType,
	}).Observe(time.Since(start).Seconds())

	streamQueries.With(prometheus.Labels{
		endpointLabel:  h.endpoint,
		queryTypeLabel: queryType,
	}).Inc()

	if err != nil {
		streamQueryErrors.With(prometheus.Labels{
			endpointLabel:  h.endpoint,
			queryTypeLabel: queryType,
			errTypeLabel:   errors.Type(err),
		}).Inc()
	}
	return err
}

func (h *handlerWithMetrics) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil {
			streamReceiveErrors.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					errTypeLabel:  errors.Type(err),
				}).
				Inc()
		} else {
			streamReceivedMsgs.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msg.TypeString(),
				}).
				Inc()
		}

		if n != 0 {
			streamReceivedBytes.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msg.TypeString(),
				}).
				Add(float64(n))
		}

		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil {
			streamSendErrors.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msgType,
					errTypeLabel:  errors.Type(err),
				}).
				Inc()
		}

		if n != 0 {
			streamSentMsgs.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msgType,
				}).
				Inc()
			streamSentBytes.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msgType,
				}).
				Add(float64(n))
		}

		return n, err
	}
}
