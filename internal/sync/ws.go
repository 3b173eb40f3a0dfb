package sync

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the glossary site is served from another origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades the request and subscribes the socket to hub events.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade: %v", err)
			return
		}

		hub.AddWS(ws)
		log.Printf("[ws] client connected: %s", c.ClientIP())

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		log.Printf("[ws] client disconnected: %s", c.ClientIP())
	}
}
