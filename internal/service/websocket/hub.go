package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visionqa/internal/dto"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
)

// EventImageRecorded is the type of the event sent after each recorded upload.
const EventImageRecorded = "image.recorded"

const (
	writeWait      = 10 * time.Second
	broadcastQueue = 64
)

// HubService fans recorded-image events out to connected feed viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewHubService(m *metrics.Metrics, logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every remaining connection.
func (h *HubService) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			h.metrics.FeedClients.Set(0)
			return nil

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.FeedClients.Set(float64(total))
			h.logger.Info("Client connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.FeedClients.Set(float64(total))
			h.logger.Info("Client disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.FeedClients.Set(float64(total))
		}
	}
}

// Register adds a viewer. After Run has stopped the connection is closed instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a viewer.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastRecorded queues a recorded-image event for all viewers. It never
// blocks the caller; events are dropped when the queue is full.
func (h *HubService) BroadcastRecorded(detail *dto.ImageDetail) {
	message, err := json.Marshal(dto.RecordedEvent{Type: EventImageRecorded, Image: detail})
	if err != nil {
		h.logger.Error("Error encoding feed event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Feed queue full, dropping event for image %d", detail.ID)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
