package websocket

import (
	"testing"

	"github.com/aukilabs/kdlocator/models"
	"github.com/stretchr/testify/require"
)

func TestMsgTypeString(t *testing.T) {
	require.Equal(t, "ping", Msg{Type: MsgTypePing}.TypeString())
	require.Equal(t, "query_radius", Msg{
		Type:  MsgTypeQuery,
		Query: &models.Query{Type: models.QueryRadius},
	}.TypeString())
	require.Equal(t, "result_view_order", Msg{
		Type:   MsgTypeResult,
		Result: &models.Result{Type: models.QueryViewOrder},
	}.TypeString())
}
