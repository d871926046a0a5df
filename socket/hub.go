package socket

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"bigbio/internal/library/model"
	"bigbio/internal/linediff"
	"bigbio/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	BlockUpdateType      = "BLOCK_UPDATE"      // Block content changed; payload is the line diff
	TemplatePromotedType = "TEMPLATE_PROMOTED" // A block entered the template library
	PresenceUpdateType   = "PRESENCE_UPDATE"   // A viewer joined or left

	// LibraryRoom is the room every library browser joins to hear about new templates.
	LibraryRoom = "library"
)

type WSMessage struct {
	Type    string          `json:"type"`
	BlockID string          `json:"block_id"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type BlockUpdatePayload struct {
	VersionNum int           `json:"version_num"`
	Ops        []linediff.Op `json:"ops"`
}

type UserStatus struct {
	UserID   string    `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	db         *sql.DB
	mu         sync.Mutex
	Presence   map[string]map[string]UserStatus // blockID -> userID -> status
}

type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	BlockID string
	UserID  string
	Send    chan []byte
}

func NewHub(db *sql.DB) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		db:         db,
		Presence:   make(map[string]map[string]UserStatus),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.BlockID] == nil {
				h.Rooms[client.BlockID] = make(map[*Client]bool)
				h.Presence[client.BlockID] = make(map[string]UserStatus)
			}
			h.Rooms[client.BlockID][client] = true
			if client.UserID != "" {
				h.Presence[client.BlockID][client.UserID] = UserStatus{UserID: client.UserID, LastSeen: time.Now()}
			}
			h.mu.Unlock()

			h.broadcastPresenceUpdate(client.BlockID)

		case client := <-h.Unregister:
			blockID := client.BlockID
			if h.removeClient(client) {
				h.broadcastPresenceUpdate(blockID)
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			// Copy the recipients so no I/O happens under the lock.
			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.BlockID]))
			for client := range h.Rooms[msg.BlockID] {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					logger.Sugar.Warnf("Client %s's send buffer is full. Dropping from room %s.", client.UserID, client.BlockID)
					h.removeClient(client)
				}
			}
		}
	}
}

// removeClient drops a client from its room and reports whether the room still has viewers.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.Rooms[client.BlockID]
	if !ok || !room[client] {
		return false
	}
	delete(room, client)
	close(client.Send)

	stillHere := false
	for other := range room {
		if other.UserID == client.UserID {
			stillHere = true
			break
		}
	}
	if !stillHere {
		delete(h.Presence[client.BlockID], client.UserID)
	}

	if len(room) == 0 {
		delete(h.Rooms, client.BlockID)
		delete(h.Presence, client.BlockID)
		logger.Sugar.Infof("Closed empty room: %s", client.BlockID)
		return false
	}
	return true
}

// BlockUpdated tells everyone viewing blockID which lines changed.
func (h *Hub) BlockUpdated(blockID, userID string, versionNum int, ops []linediff.Op) {
	payload, err := json.Marshal(BlockUpdatePayload{VersionNum: versionNum, Ops: ops})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling block update for %s: %v", blockID, err)
		return
	}
	h.Broadcast <- WSMessage{Type: BlockUpdateType, BlockID: blockID, UserID: userID, Payload: payload}
}

// TemplatePromoted announces a new library item to the library room.
func (h *Hub) TemplatePromoted(item model.LibraryItem) {
	payload, err := json.Marshal(item)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling promoted template %s: %v", item.ID, err)
		return
	}
	h.Broadcast <- WSMessage{Type: TemplatePromotedType, BlockID: LibraryRoom, Payload: payload}
}

func (h *Hub) touch(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.Presence[c.BlockID]; ok && c.UserID != "" {
		room[c.UserID] = UserStatus{UserID: c.UserID, LastSeen: time.Now()}
	}
}

func (h *Hub) broadcastPresenceUpdate(blockID string) {
	var userStatuses []UserStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if _, ok := h.Presence[blockID]; ok {
		userStatuses = make([]UserStatus, 0, len(h.Presence[blockID]))
		for _, status := range h.Presence[blockID] {
			userStatuses = append(userStatuses, status)
		}

		clientsToSend = make([]*Client, 0, len(h.Rooms[blockID]))
		for client := range h.Rooms[blockID] {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, err := json.Marshal(userStatuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	broadcastPayload, _ := json.Marshal(WSMessage{Type: PresenceUpdateType, BlockID: blockID, Payload: payload})

	for _, client := range clientsToSend {
		select {
		case client.Send <- broadcastPayload:
		default:
			// The pumps deal with unresponsive clients.
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.UserID)
		}
	}
}
