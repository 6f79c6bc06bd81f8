// Package scheduler implements the SPSC transcription scheduler (C5), the
// component that sits between the audio buffer (C3) and the ASR client
// (C4): a bounded priority queue feeding a single consumer loop that
// batches chunks, fans sub-batches out across a bounded worker count, and
// feeds each client's results through the normalizer (C2) and aggregator
// (C6) before publishing them.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwvaartjes/dental-relay/internal/aggregator"
	"github.com/jwvaartjes/dental-relay/internal/asr"
	"github.com/jwvaartjes/dental-relay/internal/audio"
	"github.com/jwvaartjes/dental-relay/internal/lexicon"
	"github.com/jwvaartjes/dental-relay/internal/normalize"
)

// Config mirrors the Python original's SPSCAudioProcessor tunables.
type Config struct {
	QueueCapacity    int
	EnqueueWait      time.Duration
	BatchSize        int
	BatchWait        time.Duration
	ParallelWorkers  int
	SilenceThreshold time.Duration
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueCapacity:    DefaultQueueSize,
		EnqueueWait:      DefaultEnqueueWait,
		BatchSize:        10,
		BatchWait:        50 * time.Millisecond,
		ParallelWorkers:  4,
		SilenceThreshold: 2 * time.Second,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// SessionResolver maps a chunk's session back-reference to the admin whose
// config and lexicon govern it.
type SessionResolver interface {
	AdminIDForSession(sessionRef string) (adminID string, err error)
}

// ResultPublisher is how a finished transcription delta reaches the
// WebSocket hub (C8). The scheduler depends only on this interface so it
// can be built and tested before the hub exists.
type ResultPublisher interface {
	PublishResult(clientID string, delta aggregator.ChunkDelta)
}

// LexiconSource is the read side of the C1 loader the scheduler needs.
type LexiconSource interface {
	GetConfig(adminID string) (lexicon.Config, error)
	GetLexicon(adminID string) (lexicon.LexiconSnapshot, error)
}

type Deps struct {
	ASR        asr.Adapter
	Normalizer *normalize.Normalizer
	Lexicon    LexiconSource
	Sessions   SessionResolver
	Publisher  ResultPublisher
	AudioParam audio.Params
}

// Scheduler is the C5 SPSC scheduler: one consumer loop draining a
// priority queue fed by any number of producers.
type Scheduler struct {
	cfg  Config
	deps Deps

	queue   *Queue
	cb      *CircuitBreaker
	metrics *Metrics

	aggMu sync.Mutex
	aggs  map[string]*aggregator.State

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

func New(cfg Config, deps Deps) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		deps:    deps,
		queue:   NewQueue(cfg.QueueCapacity),
		cb:      NewCircuitBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout),
		metrics: NewMetrics(),
		aggs:    make(map[string]*aggregator.State),
		done:    make(chan struct{}),
	}
}

// Submit enqueues chunk, bounded by cfg.EnqueueWait. It reports false if
// the chunk was dropped because the queue stayed full for the whole wait.
func (s *Scheduler) Submit(chunk AudioChunk) bool {
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now()
	}
	ok := s.queue.Enqueue(chunk, s.cfg.EnqueueWait)
	if !ok {
		s.metrics.recordQueueFull()
		s.metrics.recordDropped()
	}
	return ok
}

// Start launches the consumer loop. It returns immediately; call Stop to
// shut it down.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consumerLoop(ctx)
	}()
}

// Stop closes the queue and waits up to 2 seconds for the consumer loop to
// drain, finalizing every client's aggregator before returning.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.queue.Close()
	})

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
	}

	s.aggMu.Lock()
	for clientID, agg := range s.aggs {
		delta := agg.ProcessChunk("", true)
		if delta.HasUpdates && s.deps.Publisher != nil {
			s.deps.Publisher.PublishResult(clientID, delta)
		}
	}
	s.aggMu.Unlock()
}

func (s *Scheduler) Metrics() Snapshot {
	return s.metrics.Snapshot(s.cb)
}

// SetSessions and SetPublisher complete wiring for the common case where
// the SessionResolver/ResultPublisher (the WebSocket hub) itself needs a
// reference to this scheduler to submit chunks into — breaking that
// construction cycle requires setting these after both sides exist. Call
// before Start; the consumer loop reads s.deps without its own lock, so
// mutating concurrently with a running loop is not safe.
func (s *Scheduler) SetSessions(sessions SessionResolver) { s.deps.Sessions = sessions }
func (s *Scheduler) SetPublisher(publisher ResultPublisher) { s.deps.Publisher = publisher }

// consumerLoop collects a batch window of up to cfg.BatchSize chunks
// (blocking until the first one arrives, then taking whatever is already
// queued, for at most cfg.BatchWait), then processes the
// batch in sub-batches bounded by cfg.ParallelWorkers. A batch that fills
// before the wait elapses, or finds the queue empty early, is dispatched
// immediately — the zero-latency shortcut.
func (s *Scheduler) consumerLoop(ctx context.Context) {
	for {
		batch, ok := s.collectBatch(ctx)
		if len(batch) > 0 {
			s.metrics.recordBatch(s.queue.Len())
			s.processBatch(ctx, batch)
		}
		if !ok {
			return
		}
	}
}

func (s *Scheduler) collectBatch(ctx context.Context) ([]AudioChunk, bool) {
	first, ok := s.queue.Dequeue(ctx)
	if !ok {
		return nil, false
	}
	batch := []AudioChunk{first}

	deadline := time.Now().Add(s.cfg.BatchWait)
	for len(batch) < s.cfg.BatchSize {
		chunk, ok := s.queue.DrainOne()
		if ok {
			batch = append(batch, chunk)
			continue
		}
		if time.Now().After(deadline) {
			break
		}
		if s.queue.Len() == 0 {
			// Zero-latency shortcut: nothing more is waiting right now,
			// don't sit out the rest of the window.
			break
		}
	}
	return batch, true
}

// processBatch runs batch concurrently, bounded by cfg.ParallelWorkers, while
// keeping strict per-client ordering: groupByClient first splits batch into
// groups that each contain at most one chunk per ClientID, in the order each
// client's chunks appeared in batch, so a client's Nth chunk is always in an
// earlier group than its (N+1)th. Groups then run strictly one after another
// (each group's processChunk calls run concurrently, but the next group only
// starts once wg.Wait returns), so two chunks from the same client can never
// race into the same client's aggregator out of order.
func (s *Scheduler) processBatch(ctx context.Context, batch []AudioChunk) {
	for _, group := range groupByClient(batch) {
		for start := 0; start < len(group); start += s.cfg.ParallelWorkers {
			end := start + s.cfg.ParallelWorkers
			if end > len(group) {
				end = len(group)
			}
			sub := group[start:end]

			var wg sync.WaitGroup
			for _, chunk := range sub {
				chunk := chunk
				wg.Add(1)
				go func() {
					defer wg.Done()
					s.processChunk(ctx, chunk)
				}()
			}
			wg.Wait()
		}
	}
}

// groupByClient partitions batch, preserving order, into groups where no
// group contains two chunks from the same ClientID. Each chunk is placed in
// the earliest group that doesn't already hold one of its client's chunks.
func groupByClient(batch []AudioChunk) [][]AudioChunk {
	var groups [][]AudioChunk
	var seen []map[string]bool

	for _, chunk := range batch {
		placed := false
		for i := range groups {
			if !seen[i][chunk.ClientID] {
				groups[i] = append(groups[i], chunk)
				seen[i][chunk.ClientID] = true
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []AudioChunk{chunk})
			seen = append(seen, map[string]bool{chunk.ClientID: true})
		}
	}
	return groups
}

func (s *Scheduler) processChunk(ctx context.Context, chunk AudioChunk) {
	if !s.cb.Allow() {
		s.metrics.recordDropped()
		return
	}

	start := time.Now()
	result, err := s.transcribe(ctx, chunk)
	if err != nil {
		s.cb.RecordFailure()
		s.metrics.recordDropped()
		return
	}
	s.cb.RecordSuccess()
	s.metrics.recordProcessed(time.Since(start))

	agg := s.aggregatorFor(chunk.ClientID)
	delta := agg.ProcessChunk(result.Text, false)
	if delta.HasUpdates && s.deps.Publisher != nil {
		s.deps.Publisher.PublishResult(chunk.ClientID, delta)
	}
}

func (s *Scheduler) transcribe(ctx context.Context, chunk AudioChunk) (asr.TranscriptionResult, error) {
	adminID, err := s.deps.Sessions.AdminIDForSession(chunk.SessionRef)
	if err != nil {
		return asr.TranscriptionResult{}, fmt.Errorf("resolve session: %w", err)
	}

	cfg, err := s.deps.Lexicon.GetConfig(adminID)
	if err != nil {
		return asr.TranscriptionResult{}, fmt.Errorf("load config: %w", err)
	}
	snap, err := s.deps.Lexicon.GetLexicon(adminID)
	if err != nil {
		return asr.TranscriptionResult{}, fmt.Errorf("load lexicon: %w", err)
	}

	language := cfg.DefaultLanguage
	if language == "" {
		language = "nl"
	}

	wav := s.deps.AudioParam.ToWAV(chunk.Payload)
	result, err := s.deps.ASR.Transcribe(ctx, wav, language, cfg.AsrPrompt)
	if err != nil {
		return asr.TranscriptionResult{}, err
	}

	result.Text = s.deps.Normalizer.Normalize(result.Text, snap, cfg.MinSimilarityThreshold)
	return result, nil
}

func (s *Scheduler) aggregatorFor(clientID string) *aggregator.State {
	s.aggMu.Lock()
	defer s.aggMu.Unlock()
	agg, ok := s.aggs[clientID]
	if !ok {
		agg = aggregator.New(s.cfg.SilenceThreshold)
		s.aggs[clientID] = agg
	}
	return agg
}
