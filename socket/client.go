package socket

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"bigbio/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer in front of the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs joins the caller to the room of ?blockId=. Malformed IDs are rejected with 400, unknown blocks with 404
// and private blocks of other users with 403, all before the upgrade. The library room is open to everyone.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	blockID := r.URL.Query().Get("blockId")
	if blockID == "" {
		http.Error(w, "Missing blockId parameter", http.StatusBadRequest)
		return
	}

	if blockID != LibraryRoom {
		if err := uuid.Validate(blockID); err != nil {
			http.Error(w, "Invalid blockId parameter", http.StatusBadRequest)
			return
		}
		var ownerID, visibility string
		err := hub.db.QueryRowContext(r.Context(), "SELECT owner_id, visibility FROM blocks WHERE id = $1", blockID).
			Scan(&ownerID, &visibility)
		if errors.Is(err, sql.ErrNoRows) {
			logger.Sugar.Warnf("Connection rejected: Block %s not found", blockID)
			http.Error(w, "Block not found", http.StatusNotFound)
			return
		} else if err != nil {
			logger.Sugar.Errorf("Database error checking block %s: %v", blockID, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if visibility == "private" && ownerID != userID {
			logger.Sugar.Warnf("Connection rejected: User %q cannot view private block %s", userID, blockID)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:     hub,
		Conn:    conn,
		BlockID: blockID,
		UserID:  userID,
		Send:    make(chan []byte, 256),
	}
	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

// readPump only keeps presence fresh; the server is the sole source of room messages.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}
		c.Hub.touch(c)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
