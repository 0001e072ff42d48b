package api

import (
	"net/http"
	"strings"

	"github.com/ignite/chartermatch/internal/pkg/httputil"
)

// handleEvents streams the operator log as server-sent events. An optional
// channels parameter narrows the stream: /events?channels=gpt,error. The
// connection lives until the client hangs up or the hub shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var channels []string
	if raw := r.URL.Query().Get("channels"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				channels = append(channels, c)
			}
		}
	}

	sub := s.hub.Subscribe(channels)
	if sub == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "event hub is shut down")
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			w.Write(ev.Payload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
