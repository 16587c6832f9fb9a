// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the game handler.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client offered subprotocols but none we speak.
	SlowConsumerError   websocket.StatusCode = 3001 // Client could not keep up with broadcasts.
)

// Subprotocol is optional; clients that offer any must include it.
const Subprotocol = "gobeluno"
