package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLocalAdapterTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"element 14","language":"nl"}`))
	}))
	defer srv.Close()

	a := NewLocalAdapter(srv.URL, 5*time.Second)
	result, err := a.Transcribe(context.Background(), []byte("fake-wav-bytes"), "nl", "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "element 14" {
		t.Errorf("expected text %q, got %q", "element 14", result.Text)
	}
}

func TestLocalAdapterTranscribeRejectsEmptyAudio(t *testing.T) {
	a := NewLocalAdapter("http://unused", time.Second)
	_, err := a.Transcribe(context.Background(), nil, "nl", "")
	if err != ErrInvalidAudio {
		t.Errorf("expected ErrInvalidAudio, got %v", err)
	}
}

func TestLocalAdapterClassifiesUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down for maintenance"))
	}))
	defer srv.Close()

	a := NewLocalAdapter(srv.URL, 5*time.Second)
	_, err := a.Transcribe(context.Background(), []byte("fake"), "nl", "")
	if err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}
