// serve.go — the HTTP side of the Hub: upgrading a request to a WebSocket
// connection and pumping broadcast messages out to it.
package websocket

import (
	"github.com/gofiber/fiber/v2"
	// gofiber/websocket wraps fasthttp's WebSocket support with a Fiber-friendly
	// handler signature. The *websocket.Conn it hands us is a live connection.
	"github.com/gofiber/websocket/v2"
)

// Upgrade is a small middleware that only lets genuine WebSocket upgrade
// requests through to the connection handler. Plain HTTP requests to the
// WebSocket path get a 426 Upgrade Required.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ServeSession returns the connection handler for GET /api/v1/ws/sessions/:sessionId.
// Each accepted connection becomes one Client registered with the Hub under
// the session it wants to watch. The handler then splits into the classic
// two-goroutine pump:
//   - a writer goroutine drains the client's Send channel onto the socket
//   - this goroutine reads (and discards) inbound frames, which is how the
//     websocket library notices the peer closing the connection
func ServeSession(hub *Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			SessionID: conn.Params("sessionId"),
			Send:      make(chan []byte, 64),
		}
		hub.Register(client)

		// Writer: copy broadcasts to the socket until the Hub closes Send
		// (on unregister) or the write fails.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for data := range client.Send {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}()

		// Reader: clients don't send us anything meaningful, but reading is
		// required to process control frames and detect disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		hub.Unregister(client)
		<-done
		_ = conn.Close()
	})
}
