package aggregator

import (
	"testing"
	"time"
)

func TestProcessChunkAccumulatesWithinSentence(t *testing.T) {
	s := New(2 * time.Second)

	d := s.ProcessChunk("de kies", false)
	if d.PartialSentence != "de kies" {
		t.Errorf("expected partial sentence %q, got %q", "de kies", d.PartialSentence)
	}
	if len(d.CompletedParagraphs) != 0 {
		t.Errorf("expected no completed paragraphs yet, got %v", d.CompletedParagraphs)
	}

	d = s.ProcessChunk("is los", false)
	if d.PartialSentence != "de kies is los" {
		t.Errorf("expected merged partial sentence, got %q", d.PartialSentence)
	}
}

func TestProcessChunkFinalCompletesParagraph(t *testing.T) {
	s := New(2 * time.Second)

	s.ProcessChunk("cariës distaal", false)
	d := s.ProcessChunk("element 14", true)

	if len(d.CompletedParagraphs) != 1 {
		t.Fatalf("expected one completed paragraph, got %v", d.CompletedParagraphs)
	}
	want := "cariës distaal element 14"
	if d.CompletedParagraphs[0] != want {
		t.Errorf("expected paragraph %q, got %q", want, d.CompletedParagraphs[0])
	}
	if d.PartialSentence != "" {
		t.Errorf("expected empty partial sentence after final, got %q", d.PartialSentence)
	}
}

func TestProcessChunkSilenceGapForcesParagraphBreak(t *testing.T) {
	s := New(10 * time.Millisecond)

	s.ProcessChunk("eerste zin", false)
	time.Sleep(20 * time.Millisecond)
	d := s.ProcessChunk("tweede zin", false)

	if len(d.CompletedParagraphs) != 1 {
		t.Fatalf("expected the first sentence to complete as its own paragraph, got %v", d.CompletedParagraphs)
	}
	if d.CompletedParagraphs[0] != "eerste zin" {
		t.Errorf("expected completed paragraph %q, got %q", "eerste zin", d.CompletedParagraphs[0])
	}
	if d.PartialSentence != "tweede zin" {
		t.Errorf("expected new partial sentence %q, got %q", "tweede zin", d.PartialSentence)
	}
}

func TestProcessChunkOnlyReturnsNewlyCompletedParagraphs(t *testing.T) {
	s := New(2 * time.Second)

	s.ProcessChunk("eerste", true)
	d := s.ProcessChunk("tweede", true)

	if len(d.CompletedParagraphs) != 1 || d.CompletedParagraphs[0] != "tweede" {
		t.Errorf("expected only the newly completed paragraph, got %v", d.CompletedParagraphs)
	}
	if d.ParagraphCount != 2 {
		t.Errorf("expected paragraph count 2, got %d", d.ParagraphCount)
	}
}

func TestResetClearsState(t *testing.T) {
	s := New(2 * time.Second)
	s.ProcessChunk("iets", true)
	s.Reset()

	d := s.ProcessChunk("nieuw", false)
	if len(d.CompletedParagraphs) != 0 {
		t.Errorf("expected clean state after reset, got %v", d.CompletedParagraphs)
	}
	if d.ParagraphCount != 0 {
		t.Errorf("expected paragraph count 0 after reset, got %d", d.ParagraphCount)
	}
}
