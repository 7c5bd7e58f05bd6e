// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 32 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Notice types pushed to connected clients.
const (
	NoticePlaysChanged = "PLAYS_CHANGED"
	NoticeGamesChanged = "GAMES_CHANGED"
	NoticeCallsChanged = "CALLS_CHANGED"
	NoticeSession      = "SESSION"
	NoticeError        = "ERROR"
)

// ChangeNotice tells a client that one of its collections changed and it
// should refetch. It carries revisions so clients can skip fetches they
// already have.
type ChangeNotice struct {
	Type      string       `json:"type"`
	GameID    string       `json:"gameId,omitempty"`
	Revisions Revisions    `json:"revisions"`
	Session   *SessionInfo `json:"session,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Hub fans change notices out to every connection of a single user.
type Hub struct {
	userID string

	// Registered clients.
	clients map[*wsClient]bool

	// Outbound notices.
	notices chan ChangeNotice

	// Register requests from the clients.
	register chan *wsClient

	// Unregister requests from clients.
	unregister chan *wsClient

	hm *HubManager
}

func newHub(userID string, hm *HubManager) *Hub {
	return &Hub{
		userID:     userID,
		clients:    make(map[*wsClient]bool),
		notices:    make(chan ChangeNotice, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		hm:         hm,
	}
}

func (h *Hub) run() {
	idleTimer := time.NewTicker(5 * time.Minute)
	defer idleTimer.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case notice := <-h.notices:
			h.broadcast(notice)
		case <-idleTimer.C:
			if len(h.clients) == 0 {
				h.hm.RemoveHub(h.userID)
				return
			}
		}
	}
}

func (h *Hub) broadcast(notice ChangeNotice) {
	for client := range h.clients {
		select {
		case client.send <- notice:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// HubManager manages one hub per signed-in user.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.Mutex
}

func NewHubManager() *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
	}
}

func (hm *HubManager) GetHub(userID string) *Hub {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if hub, ok := hm.hubs[userID]; ok {
		return hub
	}

	hub := newHub(userID, hm)
	hm.hubs[userID] = hub
	go hub.run()
	return hub
}

func (hm *HubManager) RemoveHub(userID string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	delete(hm.hubs, userID)
}

func (hm *HubManager) Clear() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.hubs = make(map[string]*Hub)
}

// Notify sends a change notice to all of the user's connections. It is a
// no-op when the user has no hub.
func (hm *HubManager) Notify(userID string, notice ChangeNotice) {
	hm.mu.Lock()
	hub, ok := hm.hubs[userID]
	hm.mu.Unlock()
	if !ok {
		return
	}

	select {
	case hub.notices <- notice:
	default:
		log.Printf("Warning: Hub channel full, dropping notice for user %s", maskEmail(userID))
	}
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound notices.
	send chan ChangeNotice

	userID string
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg struct {
			Type string `json:"type"`
		}
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		switch msg.Type {
		case "PING":
			c.sendNotice(ChangeNotice{Type: "PONG"})
		default:
			log.Printf("Unknown message type: %s", msg.Type)
			c.sendNotice(ChangeNotice{Type: NoticeError, Error: "Unknown message type"})
		}
	}
}

// writePump pumps notices from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case notice, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(notice); err != nil {
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

func (c *wsClient) sendNotice(notice ChangeNotice) {
	select {
	case c.send <- notice:
	default:
	}
}

// ServeWS handles websocket requests from the peer. The caller must have
// authenticated the request already.
func ServeWS(hm *HubManager, registry *RevisionRegistry, mon *Monitor, w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	hub := hm.GetHub(userID)
	client := &wsClient{hub: hub, conn: conn, send: make(chan ChangeNotice, 256), userID: userID}
	client.hub.register <- client

	if mon != nil {
		mon.WSConnected(1)
		conn.SetCloseHandler(func(code int, text string) error {
			mon.WSConnected(-1)
			message := websocket.FormatCloseMessage(code, "")
			conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
			return nil
		})
	}

	// Initial notice so the client can reconcile revisions it missed
	// while disconnected.
	client.sendNotice(ChangeNotice{Type: NoticeSession, Revisions: registry.Get(userID)})

	go client.writePump()
	go client.readPump()
}
