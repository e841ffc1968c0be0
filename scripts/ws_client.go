// Package main runs a demo WebSocket client for the live location feed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func main() {
	watcher := flag.String("watcher", "1", "user id that watches the feed (admin sees everyone)")
	reporter := flag.String("reporter", "2", "user id that reports a location")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/api/locations/ws"}
	hdr := http.Header{}
	hdr.Set("X-User-Id", *watcher)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt event
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			data, _ := json.Marshal(evt.Data)
			log.Printf("WS <- %s: %s", evt.Type, data)
		}
	}()

	// Report a few pings as the reporter
	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(map[string]float64{"latitude": 40.7128 + float64(i)*0.01, "longitude": -74.006})
		req, _ := http.NewRequest(http.MethodPost, base+"/api/locations", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", *reporter)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		_ = resp.Body.Close()
		log.Printf("POST /api/locations -> %d", resp.StatusCode)
		time.Sleep(300 * time.Millisecond)
	}

	// Wait briefly to receive the events
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
