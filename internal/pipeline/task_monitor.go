package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/chartermatch/internal/livelog"
)

// queueCapacityProducer publishes every queue's depth on the capacities
// channel as "used,cap,name" rows. The dashboard gauges parse the bare
// triple, so these reports carry no timestamp prefix.
func queueCapacityProducer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	runID := uuid.NewString()[:8]
	rt.Log.Infof("queue monitor %s started", runID)
	for {
		if !sleepOrStop(ctx, stop, rt.CapacityInterval) {
			rt.Log.Infof("queue monitor %s stopped", runID)
			return
		}
		for _, st := range rt.Queues.Stats() {
			rt.Log.Report(livelog.ChanCapacities, "%d,%d,%s", st.Used, st.Capacity, st.Name)
		}
	}
}

// flushQueueProducer empties every queue, reports the drop counts and exits.
func flushQueueProducer(_ context.Context, rt *Runtime, _ *Signal, _ int) {
	for _, st := range rt.Queues.FlushAll() {
		rt.Log.Infof("flushed %d items from the %s queue", st.Used, st.Name)
	}
}
