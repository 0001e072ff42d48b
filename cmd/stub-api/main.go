package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// Local stand-in for the three remote providers the pipeline talks to:
// Microsoft Graph (token, listing, $batch, sendMail), the chat-completions
// endpoint and the Google Geocoding API. Point the real server at it with
//
//	GRAPH_BASE_URL=http://localhost:9090
//	GRAPH_TOKEN_URL=http://localhost:9090/token
//	OPENAI_BASE_URL=http://localhost:9090
//	GOOGLE_BASE_URL=http://localhost:9090
func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  WARNING: This is a STUB API for local testing ONLY.      ║")
	log.Println("║  All responses are HARDCODED placeholders.                ║")
	log.Println("║                                                           ║")
	log.Println("║  For the REAL server, run:                                ║")
	log.Println("║    go run cmd/server/main.go                              ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Println("")
	log.Println("Starting CHARTERMATCH STUB API (hardcoded responses)...")

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"chartermatch-stub-api","warning":"THIS IS A STUB - responses are hardcoded"}`))
	})

	// OAuth2 token endpoint (GRAPH_TOKEN_URL)
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","access_token":"stub-access-token","expires_in":3600}`))
	})

	// Graph probe: GET /v1.0/users/{user} or /v1.0/me
	probe := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"stub-user"}`))
	}
	mux.HandleFunc("GET /v1.0/me", probe)
	mux.HandleFunc("GET /v1.0/users/{user}", probe)

	// Graph message listing: two canned circulars, one tonnage and one cargo
	listing := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"value": [
				{
					"id": "stub-msg-1",
					"subject": "Open tonnage - MV OCEAN TRADER",
					"from": {"emailAddress": {"name": "Ops Desk", "address": "ops@shipowner.example"}},
					"toRecipients": [{"emailAddress": {"address": "chartering@broker.example"}}],
					"receivedDateTime": "2026-08-25T06:00:00Z",
					"isRead": false,
					"body": {"contentType": "text", "content": "MV OCEAN TRADER\n13898 dwt open Singapore mid December\nPlease propose suitable cargo.\nBest regards"}
				},
				{
					"id": "stub-msg-2",
					"subject": "Cargo order urea Yuzhny/Santos",
					"from": {"emailAddress": {"name": "Cargo Desk", "address": "cargo@trader.example"}},
					"toRecipients": [{"emailAddress": {"address": "chartering@broker.example"}}],
					"receivedDateTime": "2026-08-25T06:05:00Z",
					"isRead": false,
					"body": {"contentType": "text", "content": "25/30 urea bulk\nYuzhny to Santos\nDecember dates\n2.5% ttl comm here"}
				}
			]
		}`))
	}
	mux.HandleFunc("GET /v1.0/me/messages", listing)
	mux.HandleFunc("GET /v1.0/users/{user}/messages", listing)

	// Graph $batch: every sub-request succeeds
	mux.HandleFunc("POST /v1.0/$batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Requests []struct {
				ID string `json:"id"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := struct {
			Responses []map[string]interface{} `json:"responses"`
		}{Responses: make([]map[string]interface{}, 0, len(req.Requests))}
		for _, step := range req.Requests {
			resp.Responses = append(resp.Responses, map[string]interface{}{"id": step.ID, "status": 200})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	// Graph sendMail: accept and log, nothing leaves the machine
	sendMail := func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message struct {
				Subject      string `json:"subject"`
				ToRecipients []struct {
					EmailAddress struct {
						Address string `json:"address"`
					} `json:"emailAddress"`
				} `json:"toRecipients"`
			} `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		log.Printf("[stub] sendMail accepted: %q to %d recipients", req.Message.Subject, len(req.Message.ToRecipients))
		w.WriteHeader(http.StatusAccepted)
	}
	mux.HandleFunc("POST /v1.0/me/sendMail", sendMail)
	mux.HandleFunc("POST /v1.0/users/{user}/sendMail", sendMail)

	// Chat completions: fixed extraction matching the canned circulars above
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		content := `{"entries": [` +
			`{"type": "ship", "name": "mv ocean trader", "status": "open", "month": "December", "capacity": "13898 dwt", "location": {"port": "Singapore"}},` +
			`{"type": "cargo", "name": "urea", "quantity": "25/30", "month": "December", "commission": "2.5%", "location_from": {"port": "Yuzhny"}, "location_to": {"port": "Santos"}}` +
			`]}`
		log.Println("[stub] chat completion served (2 canned entries)")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 420, "completion_tokens": 96, "total_tokens": 516},
		})
	})

	// Geocoding: a handful of known ports, everything else ZERO_RESULTS
	mux.HandleFunc("GET /maps/api/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		coords := map[string][2]float64{
			"singapore": {1.2644, 103.8220},
			"yuzhny":    {46.6043, 31.0120},
			"santos":    {-23.9537, -46.3329},
			"rotterdam": {51.9225, 4.4792},
		}
		address := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("address")))
		w.Header().Set("Content-Type", "application/json")
		c, ok := coords[address]
		if !ok {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		fmt.Fprintf(w, `{"status":"OK","results":[{"formatted_address":"%s","geometry":{"location":{"lat":%v,"lng":%v}}}]}`,
			address, c[0], c[1])
	})

	// CORS middleware
	handler := corsMiddleware(mux)

	// Create server
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Stub API listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("X-Server-Identity", "chartermatch-stub-api")
		w.Header().Set("X-Server-Warning", "STUB - hardcoded responses only")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
