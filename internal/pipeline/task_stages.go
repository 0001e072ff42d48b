package pipeline

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// gptEmailConsumer hands the extraction queue to the worker pool. The pool
// owns fan-out, pacing and the per-email commit; the task is just its
// lifetime.
func gptEmailConsumer(ctx context.Context, rt *Runtime, stop *Signal, workers int) {
	rt.Log.Infof("extraction consumer started with %d workers", workers)
	rt.Extract.Run(ctx, stop, workers)
	rt.Log.Infof("extraction consumer stopped")
}

// matchProducer is an endless scan for ships that have never been paired,
// queued for matching. It never stops on its own; a drained store just means
// a quiet interval.
func matchProducer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	rt.Log.Infof("match producer started")
	for {
		if stopRequested(ctx, stop) {
			rt.Log.Infof("match producer stopped")
			return
		}
		ships, err := rt.Store.UnpairedShips(ctx, rt.Queues.Matching.Cap())
		if err != nil {
			rt.Log.Errorf("scanning for unpaired ships failed: %v", err)
		} else {
			for _, s := range ships {
				if !putWithRetry(ctx, rt, stop, rt.Queues.Matching, s) {
					rt.Log.Infof("match producer stopped")
					return
				}
			}
			if len(ships) > 0 {
				rt.Log.Infof("queued %d ships for matching", len(ships))
			}
		}
		if !sleepOrStop(ctx, stop, rt.MatchScanInterval) {
			rt.Log.Infof("match producer stopped")
			return
		}
	}
}

// matchConsumer runs the matching engine for each queued ship, persists the
// result and forwards ships with matches to the outbound queue. Ships with
// no matches keep an empty pairs list and stay eligible for future scans.
func matchConsumer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	rt.Log.Infof("match consumer started")
	for {
		if stopRequested(ctx, stop) {
			rt.Log.Infof("match consumer stopped")
			return
		}
		ship, err := rt.Queues.Matching.TryGet()
		if err != nil {
			sleepOrStop(ctx, stop, idleInterval)
			continue
		}
		cargos, err := rt.Match.Match(ctx, ship)
		if err != nil {
			rt.Log.Errorf("matching failed for ship %s: %v", ship.Name, err)
			continue
		}
		ids := make([]primitive.ObjectID, 0, len(cargos))
		for _, c := range cargos {
			ids = append(ids, c.ID)
		}
		if err := rt.Store.SetShipPairs(ctx, ship.ID, ids); err != nil {
			rt.Log.Errorf("saving pairs for ship %s failed: %v", ship.Name, err)
			continue
		}
		ship.PairsWith = ids
		now := time.Now().UTC()
		ship.TimestampPairsUpdated = &now
		rt.Log.Infof("found %d cargo matches for ship %s", len(ids), ship.Name)
		if len(ids) == 0 {
			continue
		}
		if !putWithRetry(ctx, rt, stop, rt.Queues.Outbound, ship) {
			rt.Log.Infof("match consumer stopped")
			return
		}
	}
}

// sendEmailConsumer renders and sends the notification for each paired ship.
// A failed send is reported and dropped; the pairing stays persisted.
func sendEmailConsumer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	rt.Log.Infof("send consumer started")
	for {
		if stopRequested(ctx, stop) {
			rt.Log.Infof("send consumer stopped")
			return
		}
		ship, err := rt.Queues.Outbound.TryGet()
		if err != nil {
			sleepOrStop(ctx, stop, idleInterval)
			continue
		}
		if err := rt.Compose.ComposeAndSend(ctx, ship); err != nil {
			rt.Log.Errorf("sending matches for ship %s failed: %v", ship.Name, err)
			continue
		}
		rt.Log.Infof("sent cargo matches for ship %s", ship.Name)
	}
}
