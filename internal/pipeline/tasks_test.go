package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/chartermatch/internal/entity"
)

type fakeMail struct {
	mu     sync.Mutex
	pages  []*ReadBatch
	cursor int
	marked [][]string
}

func (m *fakeMail) ReadPage(ctx context.Context, next string) (*ReadBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor >= len(m.pages) {
		return &ReadBatch{}, nil
	}
	page := m.pages[m.cursor]
	m.cursor++
	return page, nil
}

func (m *fakeMail) MarkRead(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, ids)
	return nil
}

func (m *fakeMail) markedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, batch := range m.marked {
		n += len(batch)
	}
	return n
}

type fakeStore struct {
	mu          sync.Mutex
	dups        map[string]bool
	inserted    []*entity.Email
	unextracted []*entity.Email
	unpaired    []*entity.Ship
	scanned     bool
	pairs       map[primitive.ObjectID][]primitive.ObjectID
	watch       func(ctx context.Context, fn func(*entity.Email)) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		dups:  make(map[string]bool),
		pairs: make(map[primitive.ObjectID][]primitive.ObjectID),
	}
}

func (s *fakeStore) FindDuplicateEmail(ctx context.Context, e *entity.Email) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dups[e.ProviderMessageID], nil
}

func (s *fakeStore) InsertEmail(ctx context.Context, e *entity.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, e)
	return nil
}

func (s *fakeStore) UnextractedEmails(ctx context.Context, limit int) ([]*entity.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unextracted, nil
}

func (s *fakeStore) UnpairedShips(ctx context.Context, limit int) ([]*entity.Ship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanned {
		return nil, nil
	}
	s.scanned = true
	return s.unpaired, nil
}

func (s *fakeStore) SetShipPairs(ctx context.Context, shipID primitive.ObjectID, cargoIDs []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[shipID] = cargoIDs
	return nil
}

func (s *fakeStore) WatchEmailInserts(ctx context.Context, fn func(*entity.Email)) error {
	if s.watch != nil {
		return s.watch(ctx, fn)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeStore) insertedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func (s *fakeStore) pairCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pairs)
}

type fakeMatcher struct {
	matches map[string][]*entity.Cargo
}

func (m *fakeMatcher) Match(ctx context.Context, ship *entity.Ship) ([]*entity.Cargo, error) {
	return m.matches[ship.Name], nil
}

type fakeComposer struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (c *fakeComposer) ComposeAndSend(ctx context.Context, ship *entity.Ship) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, ship.Name)
	if c.fail[ship.Name] {
		return errors.New("send rejected")
	}
	return nil
}

func (c *fakeComposer) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func email(id string) *entity.Email {
	return &entity.Email{ProviderMessageID: id, Subject: "s", Body: "b"}
}

func TestMailboxReadProducerDrainsListing(t *testing.T) {
	rt := testRuntime()
	mail := &fakeMail{pages: []*ReadBatch{
		{Messages: []*entity.Email{email("a"), email("b")}, Next: "page2"},
		{Messages: []*entity.Email{email("c")}},
	}}
	rt.Mail = mail

	mailboxReadProducer(context.Background(), rt, NewSignal(), 1)
	assert.Equal(t, 3, rt.Queues.Mailbox.Len())
}

func TestMailboxReadProducerHonorsLimit(t *testing.T) {
	rt := testRuntime()
	rt.ReadLimit = 2
	mail := &fakeMail{pages: []*ReadBatch{
		{Messages: []*entity.Email{email("a"), email("b"), email("c")}, Next: "page2"},
	}}
	rt.Mail = mail

	mailboxReadProducer(context.Background(), rt, NewSignal(), 1)
	assert.Equal(t, 2, rt.Queues.Mailbox.Len())
}

func TestMailboxReadConsumer(t *testing.T) {
	rt := testRuntime()
	mail := &fakeMail{}
	store := newFakeStore()
	store.dups["dup"] = true
	rt.Mail = mail
	rt.Store = store

	require.NoError(t, rt.Queues.Mailbox.TryPut(email("fresh-1")))
	require.NoError(t, rt.Queues.Mailbox.TryPut(email("dup")))
	require.NoError(t, rt.Queues.Mailbox.TryPut(email("fresh-2")))

	stop := NewSignal()
	done := make(chan struct{})
	go func() {
		mailboxReadConsumer(context.Background(), rt, stop, 1)
		close(done)
	}()

	waitFor(t, "inserts", func() bool { return store.insertedCount() == 2 })
	stop.Set()
	<-done

	// Duplicates are dropped before the store, fresh messages are stamped
	// and republished for extraction.
	assert.Equal(t, 2, rt.Queues.Extraction.Len())
	store.mu.Lock()
	for _, e := range store.inserted {
		assert.NotNil(t, e.TimestampAddedToDB)
		assert.NotNil(t, e.ExtractedShipIDs)
		assert.NotNil(t, e.ExtractedCargoIDs)
	}
	store.mu.Unlock()

	waitFor(t, "mark-read flush", func() bool { return mail.markedCount() == 2 })
}

func TestGptEmailProducerBackfills(t *testing.T) {
	rt := testRuntime()
	store := newFakeStore()
	store.unextracted = []*entity.Email{email("old-1"), email("old-2")}
	rt.Store = store

	gptEmailProducer(context.Background(), rt, NewSignal(), 1)
	assert.Equal(t, 2, rt.Queues.Extraction.Len())
}

func TestDbListenerProducer(t *testing.T) {
	rt := testRuntime()
	store := newFakeStore()
	store.watch = func(ctx context.Context, fn func(*entity.Email)) error {
		fn(email("live-1"))
		fn(email("live-2"))
		<-ctx.Done()
		return ctx.Err()
	}
	rt.Store = store

	stop := NewSignal()
	done := make(chan struct{})
	go func() {
		dbListenerProducer(context.Background(), rt, stop, 1)
		close(done)
	}()

	waitFor(t, "stream hand-off", func() bool { return rt.Queues.Extraction.Len() == 2 })
	stop.Set()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener never shut down")
	}
}

func TestMatchProducerQueuesUnpairedShips(t *testing.T) {
	rt := testRuntime()
	rt.MatchScanInterval = 5 * time.Millisecond
	store := newFakeStore()
	store.unpaired = []*entity.Ship{
		{Name: "MV AZARA"},
		{Name: "MV BOSPHORUS"},
	}
	rt.Store = store

	stop := NewSignal()
	done := make(chan struct{})
	go func() {
		matchProducer(context.Background(), rt, stop, 1)
		close(done)
	}()

	waitFor(t, "ships queued", func() bool { return rt.Queues.Matching.Len() == 2 })
	stop.Set()
	<-done
}

func TestMatchConsumer(t *testing.T) {
	rt := testRuntime()
	store := newFakeStore()
	rt.Store = store

	hit := &entity.Ship{ID: primitive.NewObjectID(), Name: "MV AZARA"}
	miss := &entity.Ship{ID: primitive.NewObjectID(), Name: "MV BOSPHORUS"}
	cargoA := &entity.Cargo{ID: primitive.NewObjectID(), Name: "wheat"}
	cargoB := &entity.Cargo{ID: primitive.NewObjectID(), Name: "steel"}
	rt.Match = &fakeMatcher{matches: map[string][]*entity.Cargo{
		"MV AZARA": {cargoA, cargoB},
	}}

	require.NoError(t, rt.Queues.Matching.TryPut(hit))
	require.NoError(t, rt.Queues.Matching.TryPut(miss))

	stop := NewSignal()
	done := make(chan struct{})
	go func() {
		matchConsumer(context.Background(), rt, stop, 1)
		close(done)
	}()

	waitFor(t, "pairs persisted", func() bool { return store.pairCount() == 2 })
	stop.Set()
	<-done

	store.mu.Lock()
	assert.Equal(t, []primitive.ObjectID{cargoA.ID, cargoB.ID}, store.pairs[hit.ID])
	assert.Empty(t, store.pairs[miss.ID])
	store.mu.Unlock()

	// Only ships with matches reach the outbound queue.
	require.Equal(t, 1, rt.Queues.Outbound.Len())
	queued, err := rt.Queues.Outbound.TryGet()
	require.NoError(t, err)
	assert.Equal(t, "MV AZARA", queued.Name)
	assert.Equal(t, []primitive.ObjectID{cargoA.ID, cargoB.ID}, queued.PairsWith)
	assert.NotNil(t, queued.TimestampPairsUpdated)
}

func TestSendEmailConsumer(t *testing.T) {
	rt := testRuntime()
	composer := &fakeComposer{fail: map[string]bool{"MV BOSPHORUS": true}}
	rt.Compose = composer

	require.NoError(t, rt.Queues.Outbound.TryPut(&entity.Ship{Name: "MV AZARA"}))
	require.NoError(t, rt.Queues.Outbound.TryPut(&entity.Ship{Name: "MV BOSPHORUS"}))

	stop := NewSignal()
	done := make(chan struct{})
	go func() {
		sendEmailConsumer(context.Background(), rt, stop, 1)
		close(done)
	}()

	waitFor(t, "sends", func() bool { return composer.sentCount() == 2 })
	stop.Set()
	<-done

	// A failed send is dropped, not retried.
	assert.Equal(t, 0, rt.Queues.Outbound.Len())
}

func TestFlushQueueProducer(t *testing.T) {
	rt := testRuntime()
	require.NoError(t, rt.Queues.Mailbox.TryPut(email("a")))
	require.NoError(t, rt.Queues.Outbound.TryPut(&entity.Ship{Name: "MV AZARA"}))

	flushQueueProducer(context.Background(), rt, NewSignal(), 1)
	assert.Equal(t, 0, rt.Queues.Mailbox.Len())
	assert.Equal(t, 0, rt.Queues.Outbound.Len())
}
