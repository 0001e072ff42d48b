package pipeline

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/livelog"
)

// Queue registry names. The capacity reporter and the /queues endpoint key
// their output on these.
const (
	QueueMailbox    = "mailbox"
	QueueExtraction = "extraction"
	QueueMatching   = "matching"
	QueueOutbound   = "outbound"
)

// Queues bundles the four stage boundaries.
type Queues struct {
	Mailbox    *Queue[*entity.Email]
	Extraction *Queue[*entity.Email]
	Matching   *Queue[*entity.Ship]
	Outbound   *Queue[*entity.Ship]
}

// QueueSizes carries the configured capacities.
type QueueSizes struct {
	Mailbox    int
	Extraction int
	Matching   int
	Outbound   int
}

// DefaultQueueSizes mirrors the production deployment.
func DefaultQueueSizes() QueueSizes {
	return QueueSizes{Mailbox: 2000, Extraction: 500, Matching: 1500, Outbound: 20}
}

// NewQueues builds the queue set with the given capacities.
func NewQueues(sz QueueSizes) *Queues {
	return &Queues{
		Mailbox:    NewQueue[*entity.Email](QueueMailbox, sz.Mailbox),
		Extraction: NewQueue[*entity.Email](QueueExtraction, sz.Extraction),
		Matching:   NewQueue[*entity.Ship](QueueMatching, sz.Matching),
		Outbound:   NewQueue[*entity.Ship](QueueOutbound, sz.Outbound),
	}
}

func (qs *Queues) refs() []queueRef {
	return []queueRef{qs.Mailbox, qs.Extraction, qs.Matching, qs.Outbound}
}

// QueueStat is one row of a depth snapshot.
type QueueStat struct {
	Name     string `json:"name"`
	Used     int    `json:"used"`
	Capacity int    `json:"capacity"`
}

// Stats snapshots every queue's depth, in registry order.
func (qs *Queues) Stats() []QueueStat {
	refs := qs.refs()
	out := make([]QueueStat, 0, len(refs))
	for _, r := range refs {
		out = append(out, QueueStat{Name: r.Name(), Used: r.Len(), Capacity: r.Cap()})
	}
	return out
}

// FlushAll empties every queue and returns how many items each dropped.
func (qs *Queues) FlushAll() []QueueStat {
	refs := qs.refs()
	out := make([]QueueStat, 0, len(refs))
	for _, r := range refs {
		out = append(out, QueueStat{Name: r.Name(), Used: r.Flush(), Capacity: r.Cap()})
	}
	return out
}

// ReadBatch is one page of normalized mailbox messages. Next is the opaque
// continuation link, empty when the listing is exhausted.
type ReadBatch struct {
	Messages []*entity.Email
	Next     string
}

// MailSource is the slice of the mail adapter the intake tasks need.
type MailSource interface {
	// ReadPage fetches the first page when next is empty, otherwise the page
	// behind the continuation link. Bounce messages are already filtered out.
	ReadPage(ctx context.Context, next string) (*ReadBatch, error)
	// MarkRead flags the given provider message ids as read. Best effort.
	MarkRead(ctx context.Context, ids []string) error
}

// Store is the slice of the document store the tasks use directly. The
// extraction, matching and outbound packages hold their own wider views.
type Store interface {
	FindDuplicateEmail(ctx context.Context, e *entity.Email) (bool, error)
	InsertEmail(ctx context.Context, e *entity.Email) error
	UnextractedEmails(ctx context.Context, limit int) ([]*entity.Email, error)
	UnpairedShips(ctx context.Context, limit int) ([]*entity.Ship, error)
	SetShipPairs(ctx context.Context, shipID primitive.ObjectID, cargoIDs []primitive.ObjectID) error
	WatchEmailInserts(ctx context.Context, fn func(*entity.Email)) error
}

// ExtractionRunner is the extraction stage. Run dispatches queued emails to
// the worker pool until the signal is raised, then waits for in-flight work.
type ExtractionRunner interface {
	Run(ctx context.Context, stop *Signal, workers int)
}

// Matcher computes the ranked cargo matches for one ship. It never persists.
type Matcher interface {
	Match(ctx context.Context, ship *entity.Ship) ([]*entity.Cargo, error)
}

// Composer renders and sends the match notification for one paired ship.
type Composer interface {
	ComposeAndSend(ctx context.Context, ship *entity.Ship) error
}

// Runtime carries everything a task function needs. One Runtime is built at
// boot and shared by every task.
type Runtime struct {
	Queues  *Queues
	Store   Store
	Mail    MailSource
	Extract ExtractionRunner
	Match   Matcher
	Compose Composer
	Log     *livelog.Log

	// AttemptInterval is the backpressure retry pause for full queues.
	AttemptInterval time.Duration
	// ReadLimit caps how many messages one mailbox read run ingests; 0 means
	// read until the listing is exhausted.
	ReadLimit int
	// MatchScanInterval is the pause between unpaired-ship scans.
	MatchScanInterval time.Duration
	// CapacityInterval is the queue telemetry period.
	CapacityInterval time.Duration
}

const idleInterval = 2 * time.Second

// ApplyDefaults fills zero intervals with the production values.
func (rt *Runtime) ApplyDefaults() {
	if rt.AttemptInterval <= 0 {
		rt.AttemptInterval = 5 * time.Second
	}
	if rt.MatchScanInterval <= 0 {
		rt.MatchScanInterval = 60 * time.Second
	}
	if rt.CapacityInterval <= 0 {
		rt.CapacityInterval = 200 * time.Millisecond
	}
}

// stopRequested reports whether the task should wind down: either its own
// signal or process shutdown.
func stopRequested(ctx context.Context, stop *Signal) bool {
	if stop.IsSet() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleepOrStop pauses for d, returning early (false) on stop or shutdown.
func sleepOrStop(ctx context.Context, stop *Signal, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop.Done():
		return false
	case <-t.C:
		return true
	}
}

// putWithRetry is the backpressure discipline: try immediately, and while
// the queue is full report the depth and wait out the attempt interval,
// re-checking the stop signal before every retry. The first attempt is
// unconditional so a batch in hand still drains after a stop request.
// Returns false when stopped before the item landed.
func putWithRetry[T any](ctx context.Context, rt *Runtime, stop *Signal, q *Queue[T], v T) bool {
	for {
		if err := q.TryPut(v); err == nil {
			return true
		}
		rt.Log.Warningf("%d/%d items in %s queue - waiting for queue to free up space.",
			q.Len(), q.Cap(), q.Name())
		if !sleepOrStop(ctx, stop, rt.AttemptInterval) {
			return false
		}
	}
}
