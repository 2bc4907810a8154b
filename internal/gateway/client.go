package gateway

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Client is one websocket peer. It only receives events for its user.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	userID int64
}

func newClient(h *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		userID: userID,
	}
}

// writePump owns every write to conn: one envelope per text frame, plus
// keepalive pings.
func (c *Client) writePump() {
	keepalive := time.NewTicker(pingPeriod)
	defer keepalive.Stop()
	defer c.conn.Close()

	for {
		var err error
		select {
		case envelope, open := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				// Hub dropped the client.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "unsubscribed"))
				return
			}
			err = c.conn.WriteMessage(websocket.TextMessage, envelope)
		case <-keepalive.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			slog.Debug("ws write failed", "user_id", c.userID, "err", err)
			return
		}
	}
}

// clientPing is the only message a client sends.
type clientPing struct {
	Type string `json:"type"`
	Ping int64  `json:"ping"`
}

type serverPong struct {
	Type     string `json:"type"`
	Ping     int64  `json:"ping"`
	Seq      int64  `json:"seq"`
	ServerTS int64  `json:"server_ts"`
}

// readPump keeps the read deadline fresh and answers application pings
// with the hub's current seq so clients can detect a missed event.
func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		slog.Info("ws client disconnected", "user_id", c.userID)
	}()

	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	c.conn.SetReadLimit(1024)
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var p clientPing
		if err := json.Unmarshal(raw, &p); err != nil || (p.Type != "ping" && p.Ping == 0) {
			continue
		}
		extend("")
		pong, _ := json.Marshal(serverPong{Type: "pong", Ping: p.Ping, Seq: c.hub.Seq(), ServerTS: time.Now().UnixMilli()})
		c.hub.reply(c, pong)
	}
}
