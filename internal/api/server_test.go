package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/livelog"
	"github.com/ignite/chartermatch/internal/pipeline"
)

type testHarness struct {
	srv    *Server
	sup    *pipeline.Supervisor
	queues *pipeline.Queues
	hub    *livelog.Hub
	log    *livelog.Log
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	hub := livelog.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)
	log := livelog.New(hub)
	queues := pipeline.NewQueues(pipeline.QueueSizes{Mailbox: 4, Extraction: 4, Matching: 4, Outbound: 4})
	rt := &pipeline.Runtime{Queues: queues, Log: log, AttemptInterval: time.Millisecond}
	sup := pipeline.NewSupervisor(rt)
	return &testHarness{
		srv:    NewServer(context.Background(), sup, queues, hub, log),
		sup:    sup,
		queues: queues,
		hub:    hub,
		log:    log,
	}
}

func (h *testHarness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestControlStartAndEnd(t *testing.T) {
	h := newTestHarness(t)
	started := make(chan int, 1)
	finished := make(chan struct{}, 1)
	h.sup.Register("demo_producer", func(ctx context.Context, rt *pipeline.Runtime, stop *pipeline.Signal, workers int) {
		started <- workers
		<-stop.Done()
		finished <- struct{}{}
	})

	rec := h.get(t, "/start/producer/demo_producer")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Request to start 'Producer' task 'demo_producer' processed.", resp["message"])

	select {
	case w := <-started:
		assert.Equal(t, 1, w)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
	}

	rec = h.get(t, "/end/producer/demo_producer")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Request to end 'Producer' task 'demo_producer' processed.", resp["message"])

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not stop")
	}
}

func TestControlWorkerPrefix(t *testing.T) {
	h := newTestHarness(t)
	started := make(chan int, 1)
	h.sup.Register("demo_consumer", func(ctx context.Context, rt *pipeline.Runtime, stop *pipeline.Signal, workers int) {
		started <- workers
		<-stop.Done()
	})

	rec := h.get(t, "/start/consumer/3_demo_consumer")
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case w := <-started:
		assert.Equal(t, 3, w)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
	}
	require.NoError(t, h.sup.Stop("demo_consumer"))
}

func TestControlValidation(t *testing.T) {
	h := newTestHarness(t)
	h.sup.Register("demo_producer", func(ctx context.Context, rt *pipeline.Runtime, stop *pipeline.Signal, workers int) {
		<-stop.Done()
	})

	cases := []struct {
		name string
		path string
		want string
	}{
		{"bad action", "/pause/producer/demo_producer", "unknown action 'pause'"},
		{"bad task type", "/start/scheduler/demo_producer", "unknown task type 'scheduler'"},
		{"unregistered task", "/start/producer/ghost_producer", "task 'ghost_producer' not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.get(t, tc.path)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp["error"], tc.want)
		})
	}
}

func TestTasksListing(t *testing.T) {
	h := newTestHarness(t)
	h.sup.Register("demo_producer", func(ctx context.Context, rt *pipeline.Runtime, stop *pipeline.Signal, workers int) {})
	h.sup.Register("demo_consumer", func(ctx context.Context, rt *pipeline.Runtime, stop *pipeline.Signal, workers int) {})

	rec := h.get(t, "/tasks")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []pipeline.TaskInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "Demo producer", tasks[0].Name)
	assert.Equal(t, "/start/producer/demo_producer", tasks[0].StartURL)
	assert.Equal(t, "/end/producer/demo_producer", tasks[0].EndURL)
	assert.Equal(t, "/start/consumer/demo_consumer", tasks[1].StartURL)
}

func TestQueuesSnapshot(t *testing.T) {
	h := newTestHarness(t)
	require.NoError(t, h.queues.Mailbox.TryPut(&entity.Email{Subject: "one"}))
	require.NoError(t, h.queues.Mailbox.TryPut(&entity.Email{Subject: "two"}))

	rec := h.get(t, "/queues")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap["mailbox"]["used"])
	assert.Equal(t, 4, snap["mailbox"]["capacity"])
	assert.Equal(t, 0, snap["extraction"]["used"])
	assert.Len(t, snap, 4)
}

func TestHealth(t *testing.T) {
	h := newTestHarness(t)
	rec := h.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestEventsStreamFiltersChannels(t *testing.T) {
	h := newTestHarness(t)
	ts := httptest.NewServer(h.srv.Handler())
	t.Cleanup(ts.Close)

	stopPub := make(chan struct{})
	t.Cleanup(func() { close(stopPub) })
	go func() {
		for {
			select {
			case <-stopPub:
				return
			case <-time.After(5 * time.Millisecond):
				h.log.Infof("pipeline heartbeat")
				h.log.Report(livelog.ChanGPT, "model call finished")
			}
		}
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/events?channels=gpt")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := readDataLine(bufio.NewReader(resp.Body))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, `data: {"gpt":`), "got %q", line)
	assert.Contains(t, line, "model call finished")
}

func TestEventsStreamUnfiltered(t *testing.T) {
	h := newTestHarness(t)
	ts := httptest.NewServer(h.srv.Handler())
	t.Cleanup(ts.Close)

	stopPub := make(chan struct{})
	t.Cleanup(func() { close(stopPub) })
	go func() {
		for {
			select {
			case <-stopPub:
				return
			case <-time.After(5 * time.Millisecond):
				h.log.Warningf("queue almost full")
			}
		}
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/events")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	line, err := readDataLine(bufio.NewReader(resp.Body))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, `data: {"warning":`), "got %q", line)
}

func readDataLine(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "data: ") {
			return line, nil
		}
	}
}
