package pipeline

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/chartermatch/internal/entity"
)

// markReadBatchSize is the mail provider's batch-request cap.
const markReadBatchSize = 20

// mailboxReadProducer pages through the mailbox and feeds every normalized
// message onto the mailbox queue. The stop signal is checked between pages;
// a page already in hand is drained before exit.
func mailboxReadProducer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	rt.Log.Infof("mailbox read started")
	next := ""
	total := 0
	for {
		if stopRequested(ctx, stop) {
			rt.Log.Infof("mailbox read stopped after %d emails", total)
			return
		}
		batch, err := rt.Mail.ReadPage(ctx, next)
		if err != nil {
			rt.Log.Errorf("mailbox read failed: %v", err)
			return
		}
		for _, e := range batch.Messages {
			if !putWithRetry(ctx, rt, stop, rt.Queues.Mailbox, e) {
				rt.Log.Infof("mailbox read stopped after %d emails", total)
				return
			}
			total++
			if rt.ReadLimit > 0 && total >= rt.ReadLimit {
				rt.Log.Infof("mailbox read reached the limit of %d emails", rt.ReadLimit)
				return
			}
		}
		if batch.Next == "" {
			rt.Log.Infof("mailbox read finished, %d emails queued", total)
			return
		}
		next = batch.Next
	}
}

// mailboxReadConsumer takes messages off the mailbox queue, drops duplicates
// already in the store, persists the rest and republishes them onto the
// extraction queue. Persisted messages are marked read upstream in batches.
func mailboxReadConsumer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	rt.Log.Infof("mailbox consumer started")

	var readBatch []string
	flushReads := func() {
		if len(readBatch) == 0 {
			return
		}
		ids := readBatch
		readBatch = nil
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := rt.Mail.MarkRead(cctx, ids); err != nil {
				rt.Log.Errorf("marking %d emails as read failed: %v", len(ids), err)
			}
		}()
	}
	defer flushReads()

	for {
		if stopRequested(ctx, stop) {
			rt.Log.Infof("mailbox consumer stopped")
			return
		}
		e, err := rt.Queues.Mailbox.TryGet()
		if err != nil {
			flushReads()
			sleepOrStop(ctx, stop, idleInterval)
			continue
		}
		dup, err := rt.Store.FindDuplicateEmail(ctx, e)
		if err != nil {
			rt.Log.Errorf("duplicate probe failed for email %s: %v", e.ProviderMessageID, err)
			continue
		}
		if dup {
			continue
		}
		now := time.Now().UTC()
		e.TimestampAddedToDB = &now
		if e.ExtractedShipIDs == nil {
			e.ExtractedShipIDs = []primitive.ObjectID{}
		}
		if e.ExtractedCargoIDs == nil {
			e.ExtractedCargoIDs = []primitive.ObjectID{}
		}
		if err := rt.Store.InsertEmail(ctx, e); err != nil {
			rt.Log.Errorf("persisting email %s failed: %v", e.ProviderMessageID, err)
			continue
		}
		if e.ProviderMessageID != "" {
			readBatch = append(readBatch, e.ProviderMessageID)
			if len(readBatch) >= markReadBatchSize {
				flushReads()
			}
		}
		if !putWithRetry(ctx, rt, stop, rt.Queues.Extraction, e) {
			rt.Log.Infof("mailbox consumer stopped")
			return
		}
	}
}

// gptEmailProducer is the backfill path: one scan for stored emails still
// missing their extraction timestamp, queued for (re-)extraction, then exit.
func gptEmailProducer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	emails, err := rt.Store.UnextractedEmails(ctx, rt.Queues.Extraction.Cap())
	if err != nil {
		rt.Log.Errorf("scanning for unextracted emails failed: %v", err)
		return
	}
	rt.Log.Infof("found %d emails awaiting extraction", len(emails))
	for _, e := range emails {
		if !putWithRetry(ctx, rt, stop, rt.Queues.Extraction, e) {
			return
		}
	}
}

// dbListenerProducer feeds the extraction queue from the store's insert
// stream instead of the in-process hand-off. Started manually when a second
// process owns mailbox ingestion.
func dbListenerProducer(ctx context.Context, rt *Runtime, stop *Signal, _ int) {
	rt.Log.Infof("database listener started")
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop.Done():
			cancel()
		case <-wctx.Done():
		}
	}()
	err := rt.Store.WatchEmailInserts(wctx, func(e *entity.Email) {
		putWithRetry(wctx, rt, stop, rt.Queues.Extraction, e)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Log.Errorf("database listener failed: %v", err)
		return
	}
	rt.Log.Infof("database listener stopped")
}
