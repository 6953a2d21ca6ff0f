package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"contact_game/internal/service"
)

// Manual smoke run against a live server: three players fill a room, the
// host sets a word, one player offers, another contacts. Watch the
// broadcasts to confirm the full chain.
func main() {
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET not set")
	}
	service.InitJWT()

	base := os.Getenv("WS_URL")
	if base == "" {
		base = "ws://localhost:8080/ws"
	}

	names := []string{"smoke_alice", "smoke_bob", "smoke_carol"}
	conns := make(map[string]*websocket.Conn, len(names))

	for _, name := range names {
		token, err := service.GenerateToken(name)
		if err != nil {
			log.Fatalf("token for %s: %v", name, err)
		}
		conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
		if err != nil {
			log.Fatalf("dial for %s: %v", name, err)
		}
		defer conn.Close()
		conns[name] = conn

		go func(name string, conn *websocket.Conn) {
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				fmt.Printf("[%s] %s\n", name, msg)
			}
		}(name, conn)

		time.Sleep(200 * time.Millisecond)
	}

	send := func(name, event string, data map[string]string) {
		payload, _ := json.Marshal(map[string]any{"event": event, "data": data})
		if err := conns[name].WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Fatalf("send %s for %s: %v", event, name, err)
		}
		time.Sleep(300 * time.Millisecond)
	}

	// smoke_alice joined first, so she is the host.
	send("smoke_alice", "word", map[string]string{"word": "apple"})
	send("smoke_bob", "offer", map[string]string{"answer": "ant", "definition": "small insect"})
	send("smoke_bob", "offer_comment", map[string]string{"offer_id": promptOfferID(), "text": "lives in colonies"})
	send("smoke_carol", "contact", map[string]string{"offer_id": promptOfferID(), "estimated_word": "ant"})

	fmt.Println("waiting for contact resolution...")
	time.Sleep(7 * time.Second)
	fmt.Println("done")
}

// promptOfferID reads the offer id observed in an earlier broadcast.
func promptOfferID() string {
	fmt.Print("offer id> ")
	var id string
	fmt.Scanln(&id)
	return id
}
