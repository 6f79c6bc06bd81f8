package wsrelay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jwvaartjes/dental-relay/internal/aggregator"
	"github.com/jwvaartjes/dental-relay/internal/audio"
	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/internal/pairing"
)

type fakeSubmitter struct {
	chunks []SchedulerChunk
}

func (f *fakeSubmitter) Submit(chunk SchedulerChunk) bool {
	f.chunks = append(f.chunks, chunk)
	return true
}

var upgrader = websocket.Upgrader{}

// dialPair spins up a one-shot WebSocket server and returns the server-side
// *websocket.Conn (captured via the handler) and the client-side conn
// dialed against it.
func dialPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	serverConnCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("server upgrade failed: %v", err)
		}
		serverConnCh <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("client dial failed: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-serverConnCh
	t.Cleanup(func() { serverConn.Close() })
	return serverConn, clientConn
}

func newTestHub(t *testing.T) (*Hub, *fakeSubmitter) {
	t.Helper()
	sub := &fakeSubmitter{}
	tokens := auth.NewService("test-secret", time.Minute)
	reg := pairing.New(time.Minute)
	hub := NewHub(reg, tokens, sub, audio.DefaultParams(), time.Minute)
	return hub, sub
}

func TestHubPairingRoutesChannelMessageBetweenDesktopAndMobile(t *testing.T) {
	hub, _ := newTestHub(t)

	desktopServer, desktopClient := dialPair(t)
	mobileServer, mobileClient := dialPair(t)

	desktop := NewSession("desktop-1", RoleDesktop, desktopServer)
	mobile := NewSession("mobile-1", RoleMobile, mobileServer)
	hub.Register(desktop)
	hub.Register(mobile)

	pc, err := hub.IssuePairCode(desktop, "admin-1")
	if err != nil {
		t.Fatalf("IssuePairCode failed: %v", err)
	}

	if _, err := hub.ClaimPairCode(mobile, pc.Code); err != nil {
		t.Fatalf("ClaimPairCode failed: %v", err)
	}
	if mobile.ChannelID != desktop.ChannelID {
		t.Fatalf("expected mobile and desktop to share a channel, got %q vs %q", mobile.ChannelID, desktop.ChannelID)
	}

	adminID, err := hub.AdminIDForSession(mobile.ChannelID)
	if err != nil || adminID != "admin-1" {
		t.Errorf("expected AdminIDForSession to resolve admin-1, got %q, err %v", adminID, err)
	}

	hub.RouteChannelMessage(mobile, map[string]string{"hello": "world"})

	desktopClient.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := desktopClient.ReadMessage()
	if err != nil {
		t.Fatalf("expected desktop to receive the routed message: %v", err)
	}
	if !strings.Contains(string(data), "channel_message") {
		t.Errorf("expected a channel_message envelope, got %s", data)
	}

	_ = mobileClient
}

func TestHubPublishResultFansOutToChannelMembers(t *testing.T) {
	hub, _ := newTestHub(t)

	desktopServer, desktopClient := dialPair(t)
	mobileServer, _ := dialPair(t)

	desktop := NewSession("desktop-2", RoleDesktop, desktopServer)
	mobile := NewSession("mobile-2", RoleMobile, mobileServer)
	hub.Register(desktop)
	hub.Register(mobile)

	pc, err := hub.IssuePairCode(desktop, "admin-2")
	if err != nil {
		t.Fatalf("IssuePairCode failed: %v", err)
	}
	if _, err := hub.ClaimPairCode(mobile, pc.Code); err != nil {
		t.Fatalf("ClaimPairCode failed: %v", err)
	}

	hub.PublishResult(mobile.ID, aggregator.ChunkDelta{
		HasUpdates:  true,
		SessionText: "element 14 diepte 3mm",
	})

	desktopClient.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := desktopClient.ReadMessage()
	if err != nil {
		t.Fatalf("expected desktop to receive the transcription result: %v", err)
	}
	if !strings.Contains(string(data), "element 14 diepte 3mm") {
		t.Errorf("expected the transcription text in the envelope, got %s", data)
	}
}

func TestHubIngestAudioSubmitsOnceBufferFlushes(t *testing.T) {
	hub, sub := newTestHub(t)
	mobileServer, _ := dialPair(t)
	mobile := NewSession("mobile-3", RoleMobile, mobileServer)
	hub.Register(mobile)

	for i := 0; i < 3; i++ {
		hub.IngestAudio(mobile, []byte{byte(i)})
	}

	if len(sub.chunks) != 1 {
		t.Fatalf("expected exactly one submitted chunk after the buffer's accumulate_count, got %d", len(sub.chunks))
	}
	if sub.chunks[0].ClientID != mobile.ID {
		t.Errorf("expected chunk ClientID %q, got %q", mobile.ID, sub.chunks[0].ClientID)
	}
}

func TestHubUnregisterNotifiesChannelOfMobileDisconnect(t *testing.T) {
	hub, _ := newTestHub(t)

	desktopServer, desktopClient := dialPair(t)
	mobileServer, _ := dialPair(t)

	desktop := NewSession("desktop-4", RoleDesktop, desktopServer)
	mobile := NewSession("mobile-4", RoleMobile, mobileServer)
	hub.Register(desktop)
	hub.Register(mobile)

	pc, err := hub.IssuePairCode(desktop, "admin-4")
	if err != nil {
		t.Fatalf("IssuePairCode failed: %v", err)
	}
	if _, err := hub.ClaimPairCode(mobile, pc.Code); err != nil {
		t.Fatalf("ClaimPairCode failed: %v", err)
	}

	hub.Unregister(mobile)

	desktopClient.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := desktopClient.ReadMessage()
	if err != nil {
		t.Fatalf("expected desktop to be notified of the mobile disconnect: %v", err)
	}
	if !strings.Contains(string(data), "mobile_disconnected") {
		t.Errorf("expected a mobile_disconnected envelope, got %s", data)
	}
}

func TestHubSweepStaleEvictsQuietSessions(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.staleTimeout = time.Millisecond

	server, _ := dialPair(t)
	sess := NewSession("stale-1", RoleDesktop, server)
	sess.lastPingAt = time.Now().Add(-time.Hour)
	hub.Register(sess)

	time.Sleep(5 * time.Millisecond)
	hub.SweepStale()

	hub.mu.RLock()
	_, stillPresent := hub.sessions[sess.ID]
	hub.mu.RUnlock()
	if stillPresent {
		t.Error("expected the stale session to be evicted")
	}
}
