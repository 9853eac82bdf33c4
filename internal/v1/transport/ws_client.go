package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nullcaster/videoroom-gateway/internal/v1/logging"
	"github.com/nullcaster/videoroom-gateway/internal/v1/videoroom"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsClient owns one WebSocket connection. Every reply — including the
// early ack for join/configure/start — is serialized through send, so a
// single writer goroutine is the only thing that ever calls WriteMessage,
// matching the ack-then-reply protocol's requirement that two frames on one
// connection never interleave with writes from elsewhere.
type wsClient struct {
	conn        wsConnection
	send        chan []byte
	transportID videoroom.TransportID
	engine      *videoroom.Engine
}

func newWSClient(conn wsConnection, engine *videoroom.Engine) *wsClient {
	return &wsClient{
		conn:        conn,
		send:        make(chan []byte, 256),
		transportID: videoroom.TransportID(newTransportID()),
		engine:      engine,
	}
}

func (c *wsClient) serve() {
	go c.writePump()
	c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn(context.Background(), "websocket read error", zap.Error(err))
			}
			return
		}
		c.handleFrame(raw)
	}
}

func (c *wsClient) handleFrame(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(context.Background(), "panic handling websocket frame", zap.Any("recover", r))
		}
	}()

	var req videoroom.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.writeReply(&videoroom.Reply{Janus: "error", Error: &videoroom.WireError{
			Code: videoroom.ErrJSONParse, Reason: "JSON parse failed",
		}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ackWriter := func(ack *videoroom.Reply) {
		c.writeReply(ack)
	}
	reply := c.engine.Dispatch(ctx, c.transportID, &req, ackWriter)
	c.writeReply(reply)
}

func (c *wsClient) writeReply(reply *videoroom.Reply) {
	raw, err := json.Marshal(reply)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal reply", zap.Error(err))
		return
	}
	select {
	case c.send <- raw:
	default:
		logging.Warn(context.Background(), "dropping reply: send buffer full")
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
