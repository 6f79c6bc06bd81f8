package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIAdapter implements Adapter against the hosted OpenAI (or
// OpenAI-compatible Azure) transcription endpoint. It is the Cloud and Azure
// AsrBackend variants; the two differ only in client construction.
type openAIAdapter struct {
	client  openai.Client
	backend Backend
	model   string
	timeout time.Duration
}

// NewCloudAdapter builds the Cloud AsrBackend against api.openai.com.
func NewCloudAdapter(apiKey, model string, timeout time.Duration) Adapter {
	return &openAIAdapter{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		backend: BackendCloud,
		model:   model,
		timeout: timeout,
	}
}

// NewAzureAdapter builds the Azure AsrBackend against a dedicated deployment
// endpoint, sending the api-key header and api-version query parameter Azure
// OpenAI requires; the client's bearer Authorization header carries the same
// key as well.
func NewAzureAdapter(apiKey, endpoint, apiVersion, model string, timeout time.Duration) Adapter {
	return &openAIAdapter{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(endpoint),
			option.WithHeader("api-key", apiKey),
			option.WithQuery("api-version", apiVersion),
		),
		backend: BackendAzure,
		model:   model,
		timeout: timeout,
	}
}

func (a *openAIAdapter) Initialize(ctx context.Context) error {
	if a.model == "" {
		return fmt.Errorf("%w: no model configured", ErrAuthFailed)
	}
	return nil
}

func (a *openAIAdapter) Transcribe(ctx context.Context, audio []byte, language, prompt string) (TranscriptionResult, error) {
	if len(audio) == 0 {
		return TranscriptionResult{}, ErrInvalidAudio
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	transcription, err := a.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     bytes.NewReader(audio),
		Model:    openai.AudioModel(a.model),
		Language: openai.String(language),
		Prompt:   openai.String(prompt),
	})
	if err != nil {
		return TranscriptionResult{}, classifyError(err)
	}

	return TranscriptionResult{
		Text:     transcription.Text,
		Language: language,
		Duration: time.Since(start),
	}, nil
}

// StreamTranscribe has no true streaming session for the hosted batch
// endpoint: it transcribes each accumulated frame in turn, matching the
// "providers that lack streaming may implement this as batch-over-windows"
// allowance.
func (a *openAIAdapter) StreamTranscribe(ctx context.Context, frames <-chan []byte, language string) (<-chan TranscriptionResult, error) {
	out := make(chan TranscriptionResult)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				result, err := a.Transcribe(ctx, frame, language, "")
				if err != nil {
					continue
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (a *openAIAdapter) Capabilities() Capabilities {
	return Capabilities{SupportsStreaming: false, Backend: a.backend}
}

func (a *openAIAdapter) Info() Info {
	return Info{"backend": string(a.backend), "model": a.model}
}

func (a *openAIAdapter) Cleanup(ctx context.Context) error {
	return nil
}

// classifyError maps an openai-go SDK error onto the C4 error taxonomy so
// the Scheduler's consumer loop can decide retry vs. drop vs. circuit-trip.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", ErrInvalidAudio, err)
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
