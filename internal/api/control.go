package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/chartermatch/internal/pkg/httputil"
)

var taskTypes = map[string]bool{
	"producer": true,
	"consumer": true,
}

// handleControl starts or stops one task. The dashboard builds these URLs
// from the /tasks listing; a worker-count prefix on the name ("5_...") is
// passed through to the supervisor untouched.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	taskType := chi.URLParam(r, "task_type")
	name := chi.URLParam(r, "name")

	if action != "start" && action != "end" {
		s.log.Errorf("rejected control request: unknown action '%s'", action)
		httputil.BadRequest(w, fmt.Sprintf("unknown action '%s', expected 'start' or 'end'", action))
		return
	}
	if !taskTypes[taskType] {
		s.log.Errorf("rejected control request: unknown task type '%s'", taskType)
		httputil.BadRequest(w, fmt.Sprintf("unknown task type '%s', expected 'producer' or 'consumer'", taskType))
		return
	}

	var err error
	if action == "start" {
		err = s.sup.Start(s.baseCtx, name)
	} else {
		err = s.sup.Stop(name)
	}
	if err != nil {
		s.log.Errorf("control request for task '%s' failed: %v", name, err)
		httputil.BadRequest(w, err.Error())
		return
	}

	msg := fmt.Sprintf("Request to %s '%s' task '%s' processed.", action, capitalize(taskType), name)
	s.log.Infof("%s", msg)
	httputil.OK(w, map[string]string{"message": msg})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// handleTasks lists every registered task with its control URLs.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, s.sup.Describe())
}

// handleQueues snapshots the stage queue depths.
func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]map[string]int)
	for _, st := range s.queues.Stats() {
		out[st.Name] = map[string]int{"used": st.Used, "capacity": st.Capacity}
	}
	httputil.OK(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
