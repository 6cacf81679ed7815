package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub streams live redemption events to organizers. Each connected
// organizer gets every event published on their attendance_updates channel,
// fanned out to all of their open connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
	redisClient *redis.Client
	jwtSecret   []byte
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client, jwtSecret string) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		redisClient: redisClient,
		jwtSecret:   []byte(jwtSecret),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userIDStr, _ := claims["user_id"].(string)
	ownerID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(ownerID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(ownerID, conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(ownerID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[ownerID] = append(h.connections[ownerID], conn)

	// Start pub/sub subscription on the owner's first connection
	if len(h.connections[ownerID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[ownerID] = cancel
		go h.subscribeToPubSub(ctx, ownerID)
	}

	log.Printf("Attendance feed connected: organizer %s (total: %d)", ownerID, len(h.connections[ownerID]))
}

func (h *Hub) unregisterConnection(ownerID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[ownerID]
	for i, c := range conns {
		if c == conn {
			h.connections[ownerID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[ownerID]) == 0 {
		delete(h.connections, ownerID)
		if cancel, ok := h.cancelFuncs[ownerID]; ok {
			cancel()
			delete(h.cancelFuncs, ownerID)
		}
	}

	log.Printf("Attendance feed disconnected: organizer %s", ownerID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, ownerID uuid.UUID) {
	channel := "attendance_updates:" + ownerID.String()
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(ownerID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(ownerID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[ownerID] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}
