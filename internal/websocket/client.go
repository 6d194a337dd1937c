package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection, identified by username.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	username string

	mu        sync.Mutex
	gameID    string
	closeOnce sync.Once
}

// GameID returns the match the client is seated in, if any.
func (c *Client) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

func (c *Client) setGameID(id string) {
	c.mu.Lock()
	c.gameID = id
	c.mu.Unlock()
}

// Username returns the player name the client connected with.
func (c *Client) Username() string {
	return c.username
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// sendMessage queues msg without blocking. A client whose buffer is full
// misses the message.
func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("marshal message")
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	defer func() {
		// send was closed by the hub after unregister
		_ = recover()
	}()
	select {
	case c.send <- data:
	default:
		log.Warn().Str("player", c.username).Msg("send buffer full, dropping message")
	}
}

// ServeWs upgrades the request and runs the client until the connection
// closes. The username comes from the "username" query parameter.
func ServeWs(hub *Hub, handler *Handler, w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		http.Error(w, "Username required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		username: username,
	}
	select {
	case hub.register <- client:
	case <-hub.context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(handler.HandleMessage)
}

func (c *Client) readPump(handle func(*Client, []byte)) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.context().Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("player", c.username).Msg("websocket read")
			}
			return
		}
		handle(c, message)
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
