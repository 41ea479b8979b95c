package hub

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bjwdenbesten/Graphical/internal/logger"
	"github.com/bjwdenbesten/Graphical/internal/party"
	"github.com/bjwdenbesten/Graphical/internal/protocol"
	"github.com/bjwdenbesten/Graphical/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16

	sendBuffer = 256
)

// Client is one websocket connection. Inbound events pass the rate
// limiter before reaching the manager; outbound events flow through a
// buffered send channel so broadcasts never block on a slow socket.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	manager *party.Manager
	limiter *ratelimit.Limiter

	// partyID is only touched from the read pump and disconnect path,
	// both on the same goroutine.
	partyID string
}

func NewClient(conn *websocket.Conn, m *party.Manager) *Client {
	return &Client{
		id:      newConnID(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		manager: m,
		limiter: ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow),
	}
}

// newConnID generates the connection identity. Each physical
// reconnect gets a fresh one, so a reconnecting client re-joins as an
// ordinary new member.
func newConnID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) PartyID() string {
	return c.partyID
}

func (c *Client) BindParty(id string) {
	c.partyID = id
}

// Emit queues an event for this connection. A full send buffer means
// the consumer is hopelessly behind; the message is dropped and the
// socket torn down by the write pump's next failure.
func (c *Client) Emit(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Error("emit marshal failure", map[string]any{"event": event, "error": err.Error()})
		return
	}
	env := protocol.Envelope{Event: event, Data: raw}
	msg, err := json.Marshal(env)
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
		logger.Warn("send buffer full, dropping connection", map[string]any{"conn": c.id})
		c.conn.Close()
	}
}

// Serve runs the write pump in the background and the read pump on the
// calling goroutine; it returns when the connection is gone.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	// send is never closed: a concurrent Broadcast may still Emit after
	// the room snapshot. The done channel stops the write pump instead.
	defer func() {
		// Fresh context: the membership update must persist even when
		// the connection's own context is already being torn down.
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.manager.Disconnect(dctx, c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("read failure", map[string]any{"conn": c.id, "error": err.Error()})
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}

		c.dispatch(ctx, env)
	}
}

// dispatch gates every inbound event through the rate limiter, then
// routes it to the matching manager handler. Malformed payloads are
// dropped without a reply.
func (c *Client) dispatch(ctx context.Context, env protocol.Envelope) {
	if !c.limiter.Allow() {
		logger.Debug("rate limit hit", map[string]any{"conn": c.id, "event": env.Event})
		c.Emit(protocol.EventRateLimit, protocol.RateLimit{Event: env.Event})
		return
	}

	switch env.Event {
	case protocol.EventCreateParty:
		var p protocol.CreateParty
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.CreateParty(ctx, c, p)
		}
	case protocol.EventJoinParty:
		// The client sends the bare party id, not an object.
		var id string
		if json.Unmarshal(env.Data, &id) == nil {
			c.manager.JoinParty(ctx, c, protocol.JoinParty{PartyID: id})
		}
	case protocol.EventCreateNode:
		var p protocol.CreateNode
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.CreateNode(ctx, c, p)
		}
	case protocol.EventNodeMoved:
		var p protocol.NodeMoved
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.NodeMoved(ctx, c, p)
		}
	case protocol.EventCreateEdge:
		var p protocol.CreateEdge
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.CreateEdge(ctx, c, p)
		}
	case protocol.EventDeleteNode:
		var p protocol.DeleteNode
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.DeleteNode(ctx, c, p)
		}
	case protocol.EventDeleteEdge:
		var p protocol.DeleteEdge
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.DeleteEdge(ctx, c, p)
		}
	case protocol.EventChangeWeight:
		var p protocol.ChangeWeight
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.ChangeWeight(ctx, c, p)
		}
	case protocol.EventClearGraph:
		var p protocol.ClearGraph
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.ClearGraph(ctx, c, p)
		}
	case protocol.EventClearWeights:
		var p protocol.ClearWeights
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.ClearWeights(ctx, c, p)
		}
	case protocol.EventInsertGraph:
		var p protocol.InsertGraph
		if json.Unmarshal(env.Data, &p) == nil {
			c.manager.InsertGraph(ctx, c, p)
		}
	default:
		logger.Debug("unknown event", map[string]any{"conn": c.id, "event": env.Event})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
