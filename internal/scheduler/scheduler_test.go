package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jwvaartjes/dental-relay/internal/aggregator"
	"github.com/jwvaartjes/dental-relay/internal/asr"
	"github.com/jwvaartjes/dental-relay/internal/audio"
	"github.com/jwvaartjes/dental-relay/internal/lexicon"
	"github.com/jwvaartjes/dental-relay/internal/normalize"
)

type fakeASR struct {
	text string
	err  error
}

func (f *fakeASR) Initialize(ctx context.Context) error { return nil }
func (f *fakeASR) Transcribe(ctx context.Context, audio []byte, language, prompt string) (asr.TranscriptionResult, error) {
	if f.err != nil {
		return asr.TranscriptionResult{}, f.err
	}
	return asr.TranscriptionResult{Text: f.text, Language: language}, nil
}
func (f *fakeASR) StreamTranscribe(ctx context.Context, frames <-chan []byte, language string) (<-chan asr.TranscriptionResult, error) {
	return nil, nil
}
func (f *fakeASR) Capabilities() asr.Capabilities { return asr.Capabilities{} }
func (f *fakeASR) Info() asr.Info                 { return asr.Info{} }
func (f *fakeASR) Cleanup(ctx context.Context) error { return nil }

type fakeLexicon struct{}

func (fakeLexicon) GetConfig(adminID string) (lexicon.Config, error) {
	return lexicon.Config{MinSimilarityThreshold: 0.8}, nil
}
func (fakeLexicon) GetLexicon(adminID string) (lexicon.LexiconSnapshot, error) {
	return lexicon.Empty(adminID), nil
}

type fakeSessions struct{}

func (fakeSessions) AdminIDForSession(sessionRef string) (string, error) {
	return "admin-1", nil
}

type fakePublisher struct {
	mu      sync.Mutex
	results map[string][]aggregator.ChunkDelta
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{results: make(map[string][]aggregator.ChunkDelta)}
}

func (p *fakePublisher) PublishResult(clientID string, delta aggregator.ChunkDelta) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[clientID] = append(p.results[clientID], delta)
}

func (p *fakePublisher) count(clientID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results[clientID])
}

func (p *fakePublisher) resultsFor(clientID string) []aggregator.ChunkDelta {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]aggregator.ChunkDelta, len(p.results[clientID]))
	copy(out, p.results[clientID])
	return out
}

func newTestScheduler(t *testing.T, transcript string, pub *fakePublisher) *Scheduler {
	cfg := DefaultConfig()
	cfg.BatchWait = 10 * time.Millisecond
	deps := Deps{
		ASR:        &fakeASR{text: transcript},
		Normalizer: normalize.New(),
		Lexicon:    fakeLexicon{},
		Sessions:   fakeSessions{},
		Publisher:  pub,
		AudioParam: audio.DefaultParams(),
	}
	return New(cfg, deps)
}

func TestSchedulerProcessesSubmittedChunk(t *testing.T) {
	pub := newFakePublisher()
	s := newTestScheduler(t, "element 14 diepte 3mm", pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	if !s.Submit(AudioChunk{ClientID: "client-1", Payload: []byte{0, 0, 0, 0}, Priority: PriorityRealtime}) {
		t.Fatal("expected chunk to be accepted")
	}

	deadline := time.Now().Add(time.Second)
	for pub.count("client-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.count("client-1") == 0 {
		t.Fatal("expected at least one published result")
	}

	s.Stop()

	snap := s.Metrics()
	if snap.Processed == 0 {
		t.Errorf("expected Processed > 0, got %d", snap.Processed)
	}
}

func TestSchedulerDropsWhenQueueFullAndWaitExpires(t *testing.T) {
	pub := newFakePublisher()
	s := newTestScheduler(t, "hello", pub)
	s.cfg.QueueCapacity = 1
	s.queue = NewQueue(1)
	s.cfg.EnqueueWait = 5 * time.Millisecond

	// Don't start the consumer: the queue will stay full.
	if !s.Submit(AudioChunk{ClientID: "c1", Payload: []byte{1}}) {
		t.Fatal("first submit should succeed")
	}
	if s.Submit(AudioChunk{ClientID: "c1", Payload: []byte{2}}) {
		t.Fatal("second submit should be dropped when the queue is full")
	}

	snap := s.Metrics()
	if snap.Dropped == 0 {
		t.Errorf("expected a recorded drop, got %d", snap.Dropped)
	}
}

func TestSchedulerCircuitBreakerStopsProcessingAfterFailures(t *testing.T) {
	pub := newFakePublisher()
	s := newTestScheduler(t, "", pub)
	s.deps.ASR = &fakeASR{err: asr.ErrTransient}
	s.cfg.FailureThreshold = 2
	s.cb = NewCircuitBreaker(2, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	for i := 0; i < 5; i++ {
		s.Submit(AudioChunk{ClientID: "c1", Payload: []byte{byte(i)}})
	}

	deadline := time.Now().Add(time.Second)
	for s.cb.State() != StateOpen && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if s.cb.State() != StateOpen {
		t.Errorf("expected circuit breaker to trip open, got %s", s.cb.State())
	}
}

// sequencedASR returns text keyed off the first payload byte and, if delay
// is set, sleeps beforehand — used to provoke a reordering race: a chunk
// with a long delay is submitted first, so if it ran concurrently with a
// later, faster chunk against the same client, the faster one would finish
// and publish first.
type sequencedASR struct {
	textFor  map[byte]string
	delayFor map[byte]time.Duration
}

func (a *sequencedASR) Initialize(ctx context.Context) error { return nil }
func (a *sequencedASR) Transcribe(ctx context.Context, audio []byte, language, prompt string) (asr.TranscriptionResult, error) {
	key := audio[0]
	if d := a.delayFor[key]; d > 0 {
		time.Sleep(d)
	}
	return asr.TranscriptionResult{Text: a.textFor[key], Language: language}, nil
}
func (a *sequencedASR) StreamTranscribe(ctx context.Context, frames <-chan []byte, language string) (<-chan asr.TranscriptionResult, error) {
	return nil, nil
}
func (a *sequencedASR) Capabilities() asr.Capabilities   { return asr.Capabilities{} }
func (a *sequencedASR) Info() asr.Info                   { return asr.Info{} }
func (a *sequencedASR) Cleanup(ctx context.Context) error { return nil }

func TestGroupByClientSeparatesSameClientChunks(t *testing.T) {
	batch := []AudioChunk{
		{ClientID: "a", ChunkID: "a1"},
		{ClientID: "a", ChunkID: "a2"},
		{ClientID: "b", ChunkID: "b1"},
		{ClientID: "a", ChunkID: "a3"},
		{ClientID: "b", ChunkID: "b2"},
	}

	groups := groupByClient(batch)

	seenByClient := make(map[string][]string)
	for _, g := range groups {
		inGroup := make(map[string]bool)
		for _, chunk := range g {
			if inGroup[chunk.ClientID] {
				t.Fatalf("group contains two chunks from client %q: %v", chunk.ClientID, g)
			}
			inGroup[chunk.ClientID] = true
			seenByClient[chunk.ClientID] = append(seenByClient[chunk.ClientID], chunk.ChunkID)
		}
	}

	if got := seenByClient["a"]; len(got) != 3 || got[0] != "a1" || got[1] != "a2" || got[2] != "a3" {
		t.Errorf("client a chunks out of order across groups: %v", got)
	}
	if got := seenByClient["b"]; len(got) != 2 || got[0] != "b1" || got[1] != "b2" {
		t.Errorf("client b chunks out of order across groups: %v", got)
	}
}

// TestProcessBatchKeepsPerClientOrderUnderConcurrency reproduces the
// ordering bug a contiguous-slice sub-batch would hit: chunk 1 is given the
// longest ASR delay and chunk 3 the shortest, so if groupByClient didn't
// keep them in separate, sequentially-run groups, chunk 3's result would
// reach the aggregator before chunk 1's.
func TestProcessBatchKeepsPerClientOrderUnderConcurrency(t *testing.T) {
	pub := newFakePublisher()
	cfg := DefaultConfig()
	cfg.ParallelWorkers = 4
	deps := Deps{
		ASR: &sequencedASR{
			textFor: map[byte]string{1: "one", 2: "two", 3: "three"},
			delayFor: map[byte]time.Duration{
				1: 30 * time.Millisecond,
				2: 15 * time.Millisecond,
				3: 0,
			},
		},
		Normalizer: normalize.New(),
		Lexicon:    fakeLexicon{},
		Sessions:   fakeSessions{},
		Publisher:  pub,
		AudioParam: audio.DefaultParams(),
	}
	s := New(cfg, deps)

	batch := []AudioChunk{
		{ClientID: "client-1", Payload: []byte{1}},
		{ClientID: "client-1", Payload: []byte{2}},
		{ClientID: "client-1", Payload: []byte{3}},
	}

	s.processBatch(context.Background(), batch)

	results := pub.resultsFor("client-1")
	if len(results) != 3 {
		t.Fatalf("expected 3 published results, got %d", len(results))
	}
	want := []string{"one", "one two", "one two three"}
	for i, delta := range results {
		if delta.SessionText != want[i] {
			t.Errorf("result %d: got SessionText %q, want %q (full sequence: %v)", i, delta.SessionText, want[i], results)
		}
	}
}

func TestSchedulerStopFinalizesPendingAggregatorText(t *testing.T) {
	pub := newFakePublisher()
	s := newTestScheduler(t, "element 14", pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Submit(AudioChunk{ClientID: "c1", Payload: []byte{0}})

	deadline := time.Now().Add(time.Second)
	for pub.count("c1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()
	if pub.count("c1") == 0 {
		t.Fatal("expected a published result by the time Stop returns")
	}
}
