package models

import "strings"

type ResultState string

const (
	ResultIntermediate ResultState = "intermediate"
	ResultFinal        ResultState = "final"
)

// TranscriptionMetadata arrives once per transcription stream, before any data frame.
type TranscriptionMetadata struct {
	SubscriptionID   string `json:"subscriptionId"`
	Locale           string `json:"locale"`
	CallConnectionID string `json:"callConnectionId"`
	CorrelationID    string `json:"correlationId"`
	EndpointID       string `json:"speechRecognitionModelEndpointId,omitempty"`
}

type Word struct {
	Text     string `json:"text"`
	Offset   int64  `json:"offset"`
	Duration int64  `json:"duration"`
}

// Utterance is one transcribed speech segment. Offset and Duration are in platform ticks (100ns).
type Utterance struct {
	Text             string      `json:"text"`
	Format           string      `json:"format,omitempty"`
	Confidence       float64     `json:"confidence"`
	Offset           int64       `json:"offset"`
	Duration         int64       `json:"duration"`
	Words            []Word      `json:"words,omitempty"`
	ParticipantRawID string      `json:"participantRawID,omitempty"`
	ResultStatus     ResultState `json:"resultStatus"`
}

func (u Utterance) IsFinal() bool {
	return strings.EqualFold(string(u.ResultStatus), string(ResultFinal))
}

// TranscriptionSession accumulates utterances for one correlation id.
type TranscriptionSession struct {
	CorrelationID string                `json:"correlationId"`
	Metadata      TranscriptionMetadata `json:"metadata"`
	Data          []Utterance           `json:"data"`
}
