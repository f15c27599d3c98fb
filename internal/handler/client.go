package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"visionqa/internal/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// FeedHub registers live feed viewers.
type FeedHub interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// NewUpgrader upgrades HTTP connections to WebSocket for the given origins.
// An empty list or "*" allows any origin.
func NewUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return originAllowed(origins, origin)
		},
	}
}

func originAllowed(origins []string, origin string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// FeedWebsocketHandler handles viewer connections over WebSocket and
// registers them in the hub to receive recorded-image events.
func FeedWebsocketHandler(hub FeedHub, upgrader websocket.Upgrader, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(pongWait))
		connection.SetPongHandler(func(string) error {
			return connection.SetReadDeadline(time.Now().Add(pongWait))
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		logger.Info("Viewer connected")

		stop := make(chan struct{})
		defer close(stop)
		go pingLoop(connection, stop)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected: %v", err)
				}
				break
			}
		}
	}
}

// pingLoop keeps the viewer's read deadline alive until stop is closed.
func pingLoop(connection *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := connection.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
