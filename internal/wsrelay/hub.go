package wsrelay

import (
	"fmt"
	"sync"
	"time"

	"github.com/jwvaartjes/dental-relay/internal/aggregator"
	"github.com/jwvaartjes/dental-relay/internal/audio"
	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/internal/pairing"
)

// ChunkSubmitter is the C5 surface the hub feeds binary audio into. The
// scheduler package itself never imports wsrelay — it only declares the
// narrow ResultPublisher interface Hub satisfies — so this is the one
// place the two packages meet; see SchedulerAdapter in scheduler_adapter.go.
type ChunkSubmitter interface {
	Submit(chunk SchedulerChunk) bool
}

// SchedulerChunk is what the hub hands to the scheduler for one flushed
// audio segment.
type SchedulerChunk struct {
	ClientID   string
	Payload    []byte
	ChunkID    string
	Timestamp  time.Time
	Priority   int
	SessionRef string
}

// Hub is the C8 WebSocket Hub: connection lifecycle, pairing-aware
// routing, and per-connection buffering ahead of the scheduler.
type Hub struct {
	pairing  *pairing.Registry
	tokens   *auth.Service
	chunks   ChunkSubmitter
	audioCfg audio.Params

	staleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	bufMu   sync.Mutex
	buffers map[string]*audio.ClientBuffer
}

func NewHub(reg *pairing.Registry, tokens *auth.Service, chunks ChunkSubmitter, audioCfg audio.Params, staleTimeout time.Duration) *Hub {
	if staleTimeout <= 0 {
		staleTimeout = 60 * time.Second
	}
	return &Hub{
		pairing:      reg,
		tokens:       tokens,
		chunks:       chunks,
		audioCfg:     audioCfg,
		staleTimeout: staleTimeout,
		sessions:     make(map[string]*Session),
		buffers:      make(map[string]*audio.ClientBuffer),
	}
}

// AdminIDForSession implements scheduler.SessionResolver: it looks up the
// channel the session belongs to and returns the admin account that owns
// it, as recorded by the pairing registry at Issue time.
func (h *Hub) AdminIDForSession(sessionRef string) (string, error) {
	ch, ok := h.pairing.Channel(sessionRef)
	if !ok {
		return "", fmt.Errorf("wsrelay: no channel %q", sessionRef)
	}
	return ch.AdminID, nil
}

// Register adds a connected session to the hub's table.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// Unregister removes a session, evicts its audio buffer, and leaves its
// channel if it had joined one; when a mobile session leaves, the channel's
// remaining members are sent mobile_disconnected.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()

	h.bufMu.Lock()
	delete(h.buffers, s.ID)
	h.bufMu.Unlock()

	if s.ChannelID != "" {
		h.pairing.LeaveSession(s.ChannelID, s.ID)
		if s.Role == RoleMobile {
			h.notifyChannel(s.ChannelID, s.ID, TypeMobileDisconnected, MobileDisconnectedPayload{ChannelID: s.ChannelID})
		}
	}
	s.Close()
}

// IssuePairCode implements the desktop side of pairing: generate a code,
// create the channel, and seat the desktop. Issue can return a valid pc
// alongside a non-nil error when the code was created locally but failed
// to mirror to Redis (see pairing.Registry.Issue) — the code still works
// against this instance, so the desktop is still seated; the error is the
// caller's to log.
func (h *Hub) IssuePairCode(desktop *Session, adminPrincipalID string) (pairing.PairCode, error) {
	pc, err := h.pairing.Issue(desktop.ID, adminPrincipalID)
	if pc.Code == "" {
		return pairing.PairCode{}, err
	}
	desktop.ChannelID = pc.ChannelID
	return pc, err
}

// ClaimPairCode implements the mobile side: validate the code, seat the
// mobile session, and tell it which channel it joined.
func (h *Hub) ClaimPairCode(mobile *Session, code string) (pairing.PairResult, error) {
	result, err := h.pairing.Claim(code, mobile.ID)
	if err != nil {
		return pairing.PairResult{}, err
	}
	mobile.ChannelID = result.ChannelID
	return result, nil
}

// RouteChannelMessage fans a channel_message out to every other member of
// sender's channel.
func (h *Hub) RouteChannelMessage(sender *Session, payload any) {
	if sender.ChannelID == "" {
		return
	}
	h.notifyChannel(sender.ChannelID, sender.ID, TypeChannelMessage, payload)
}

func (h *Hub) notifyChannel(channelID, exceptSessionID string, msgType MessageType, payload any) {
	env, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, 2)
	for _, s := range h.sessions {
		if s.ChannelID == channelID && s.ID != exceptSessionID {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Send(env)
	}
}

// IngestAudio feeds a binary frame from mobile into that client's audio
// buffer, submitting the accumulated (or immediately-flushed) segment to
// the scheduler as soon as the buffer's policy decides to emit one.
func (h *Hub) IngestAudio(mobile *Session, frame []byte) {
	buf := h.bufferFor(mobile.ID)
	if payload, ok := buf.AddChunk(frame); ok {
		h.submit(mobile, payload, 0)
	}
}

// FlushAudio forces out whatever is pending in a client's buffer,
// typically on an explicit flush_audio message or on disconnect.
func (h *Hub) FlushAudio(mobile *Session) {
	buf := h.bufferFor(mobile.ID)
	if payload, ok := buf.ForceFlush(); ok {
		h.submit(mobile, payload, 0)
	}
}

func (h *Hub) submit(mobile *Session, payload []byte, priority int) {
	h.chunks.Submit(SchedulerChunk{
		ClientID:   mobile.ID,
		Payload:    payload,
		ChunkID:    fmt.Sprintf("%s-%d", mobile.ID, time.Now().UnixNano()),
		Timestamp:  time.Now(),
		Priority:   priority,
		SessionRef: mobile.ChannelID,
	})
}

func (h *Hub) bufferFor(clientID string) *audio.ClientBuffer {
	h.bufMu.Lock()
	defer h.bufMu.Unlock()
	buf, ok := h.buffers[clientID]
	if !ok {
		buf = audio.NewClientBuffer(h.audioCfg)
		h.buffers[clientID] = buf
	}
	return buf
}

// PublishResult implements scheduler.ResultPublisher: route a finished
// transcription delta to the desktop member of the channel the producing
// mobile session (clientID) belongs to, and echo it to the mobile too.
func (h *Hub) PublishResult(clientID string, delta aggregator.ChunkDelta) {
	h.mu.RLock()
	mobile, ok := h.sessions[clientID]
	h.mu.RUnlock()
	if !ok || mobile.ChannelID == "" {
		return
	}

	env, err := marshalEnvelope(TypeTranscriptionResult, TranscriptionResultPayload{
		Text:                delta.SessionText,
		CompletedParagraphs: delta.CompletedParagraphs,
		PartialSentence:     delta.PartialSentence,
		SessionText:         delta.SessionText,
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, 2)
	for _, s := range h.sessions {
		if s.ChannelID == mobile.ChannelID {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Send(env)
	}
}

// SweepStale closes and unregisters any session quiet for longer than
// 2*ping_interval, matching the client-originated-heartbeat-only model:
// the server never sends unsolicited pings, so staleness is the only
// signal it has that a peer is gone.
func (h *Hub) SweepStale() {
	h.mu.RLock()
	stale := make([]*Session, 0)
	for _, s := range h.sessions {
		if s.stale(h.staleTimeout) {
			stale = append(stale, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stale {
		h.Unregister(s)
	}
}
