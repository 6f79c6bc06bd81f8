// Package aggregator implements the per-client transcription aggregator
// (C6): it turns a stream of short transcription fragments into stable
// paragraph breaks separated by silence, so the desktop sees natural text
// flow instead of one fragment per audio chunk.
package aggregator

import (
	"strings"
	"sync"
	"time"
)

// ChunkDelta is what ProcessChunk returns: the paragraphs that just
// completed, the still-open partial sentence, and the full session text so
// far (completed paragraphs joined by newlines, plus the partial sentence).
type ChunkDelta struct {
	HasUpdates         bool
	CompletedParagraphs []string
	PartialSentence     string
	SessionText         string
	ParagraphCount       int
}

// State is the per-client Aggregator state described by C6's AggregatorState
// data model: a sentence buffer, the in-progress paragraph, every completed
// paragraph, and the wall-clock time of the last chunk (used to detect a
// silence gap that should force a paragraph break).
type State struct {
	SilenceThreshold time.Duration

	mu               sync.Mutex
	sentenceBuffer   string
	currentParagraph []string
	allParagraphs    []string
	lastSentIndex    int
	lastChunkTime    time.Time
}

func New(silenceThreshold time.Duration) *State {
	return &State{
		SilenceThreshold: silenceThreshold,
		lastChunkTime:    time.Now(),
	}
}

// ProcessChunk implements process_chunk: text is folded into the current
// sentence buffer; a silence gap longer than SilenceThreshold forces the
// buffer into a completed paragraph before the new text is appended; isFinal
// forces everything pending into a completed paragraph.
func (s *State) ProcessChunk(text string, isFinal bool) ChunkDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sinceLast := now.Sub(s.lastChunkTime)

	trimmed := strings.TrimSpace(text)
	if trimmed == "" && !isFinal {
		return s.snapshotLocked(false)
	}

	if sinceLast > s.SilenceThreshold && s.sentenceBuffer != "" {
		s.completeParagraphLocked()
	}

	if trimmed != "" {
		if s.sentenceBuffer != "" {
			s.sentenceBuffer += " " + trimmed
		} else {
			s.sentenceBuffer = trimmed
		}
	}

	if isFinal {
		if s.sentenceBuffer != "" {
			s.currentParagraph = append(s.currentParagraph, s.sentenceBuffer)
			s.sentenceBuffer = ""
		}
		if len(s.currentParagraph) > 0 {
			s.completeParagraphLocked()
		}
	}

	s.lastChunkTime = now
	return s.snapshotLocked(true)
}

func (s *State) completeParagraphLocked() {
	parts := append(append([]string{}, s.currentParagraph...), s.sentenceBuffer)
	paragraph := strings.TrimSpace(strings.Join(parts, " "))
	if paragraph != "" {
		s.allParagraphs = append(s.allParagraphs, paragraph)
	}
	s.currentParagraph = nil
	s.sentenceBuffer = ""
}

func (s *State) snapshotLocked(countsAsTouch bool) ChunkDelta {
	completed := append([]string{}, s.allParagraphs[s.lastSentIndex:]...)

	sessionText := strings.Join(s.allParagraphs, "\n")
	if s.sentenceBuffer != "" {
		if sessionText != "" {
			sessionText += "\n"
		}
		sessionText += s.sentenceBuffer
	}

	delta := ChunkDelta{
		CompletedParagraphs: completed,
		PartialSentence:     s.sentenceBuffer,
		SessionText:         sessionText,
		ParagraphCount:      len(s.allParagraphs),
		HasUpdates:          len(completed) > 0 || s.sentenceBuffer != "",
	}
	if countsAsTouch {
		s.lastSentIndex = len(s.allParagraphs)
	}
	return delta
}

// Reset clears all accumulated state, used when a session ends and its id
// may be reused.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentenceBuffer = ""
	s.currentParagraph = nil
	s.allParagraphs = nil
	s.lastSentIndex = 0
	s.lastChunkTime = time.Now()
}
