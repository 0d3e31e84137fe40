// Package main runs a demo WebSocket client for run events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Launch an async run over a tiny inline candidate set
	body := []byte(`{
		"tenantId":"t_demo",
		"async":true,
		"candidates":[
			{"id":"s1","x":0,"y":0,"demand_score":2,"equity_score":0.5,"fixed_site_cost":1000,"cost_per_port":100,"cost_per_kw_pv":10},
			{"id":"s2","x":2000,"y":0,"demand_score":1,"equity_score":0.9,"fixed_site_cost":800,"cost_per_port":90,"cost_per_kw_pv":9}
		],
		"config":{
			"budget":100000,"max_sites":2,"min_spacing":500,"max_detour":5000,
			"ports_min":2,"ports_max":8,"pv_kw_min":10,"pv_kw_max":100,"storage_kwh_max":50,
			"weights":{"util":1,"equity":0.5,"safety_penalty":0.2,"grid_penalty":0.2,"npc_cost":1},
			"cost_normalizer":100000
		},
		"solver":{"time_limit_ms":2000}
	}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var optResp struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&optResp); err != nil {
		log.Fatal(err)
	}
	if optResp.RunID == "" {
		log.Fatal("no run id returned")
	}
	log.Printf("Run ID: %s", optResp.RunID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to run events
	pl, _ := json.Marshal(map[string]any{"runId": optResp.RunID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			if m.Type == "complete" {
				return
			}
		}
	}()

	select {
	case <-time.After(5 * time.Second):
	case <-done:
	}
}
