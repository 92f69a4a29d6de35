// internal/app/features/live/conn.go
package live

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dalemusser/pickuphub/internal/app/core/registry"
	"github.com/google/uuid"
)

// wsConn adapts a websocket to the registry's Conn interface. The mutex
// serializes writers; the registry fans out broadcasts from many
// goroutines but the socket allows only one writer at a time.
type wsConn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), ws: ws}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(ctx context.Context, msg registry.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsjson.Write(ctx, c.ws, msg)
}
