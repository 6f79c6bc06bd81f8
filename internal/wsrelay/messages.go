package wsrelay

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// MessageType enumerates the text-frame message kinds the hub recognizes.
// Binary frames carry no type field; they are always opaque audio payload.
type MessageType string

const (
	TypeIdentify            MessageType = "identify"
	TypeMobileInit          MessageType = "mobile_init"
	TypePing                MessageType = "ping"
	TypePong                MessageType = "pong"
	TypeChannelJoined       MessageType = "channel_joined"
	TypeChannelMessage      MessageType = "channel_message"
	TypeAudioData           MessageType = "audio_data"
	TypeFlushAudio          MessageType = "flush_audio"
	TypeTranscriptionResult MessageType = "transcription_result"
	TypeMobileDisconnected  MessageType = "mobile_disconnected"
	TypeError               MessageType = "error"
)

// Envelope is the outer shape every text frame carries; Data is
// type-specific and decoded a second pass once Type is known.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type IdentifyPayload struct {
	Token string `json:"token"`
}

type MobileInitPayload struct {
	PairCode string `json:"pair_code"`
	Token    string `json:"token,omitempty"`
}

type ChannelJoinedPayload struct {
	ChannelID string `json:"channel_id"`
}

type AudioDataPayload struct {
	Base64 string `json:"audio_base64"`
}

type TranscriptionResultPayload struct {
	Text                string   `json:"text"`
	CompletedParagraphs []string `json:"completed_paragraphs,omitempty"`
	PartialSentence     string   `json:"partial_sentence"`
	SessionText         string   `json:"session_text"`
}

type MobileDisconnectedPayload struct {
	ChannelID string `json:"channel_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// marshalEnvelope encodes payload with sonic into an Envelope's Data field.
// The outer envelope itself is parsed with encoding/json in the handler and
// written with the connection's WriteJSON.
func marshalEnvelope(msgType MessageType, payload any) (Envelope, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Data: raw}, nil
}

func decodePayload(raw json.RawMessage, out any) error {
	return sonic.Unmarshal(raw, out)
}
