// Payload is the tagged "transcription or translation" variant carried by a
// submission. Modeling the sample reference as (kind, sample id) instead of
// two nullable foreign keys makes the "both set" and "neither set" states
// unrepresentable; Validate guards the residual zero-value cases that
// Go's type system cannot rule out.
package domain

import "errors"

// ErrInvalidPayload is returned when a payload fails structural validation
// (unknown kind, missing sample reference, or empty text).
var ErrInvalidPayload = errors.New("invalid contribution payload")

// Payload is a candidate text bound to exactly one sample of one task kind.
type Payload struct {
	Kind     TaskKind
	SampleID string
	Text     string
}

// TranscriptionPayload builds a payload referencing a transcription sample.
func TranscriptionPayload(sampleID, text string) Payload {
	return Payload{Kind: TaskTranscription, SampleID: sampleID, Text: text}
}

// TranslationPayload builds a payload referencing a translation sample.
func TranslationPayload(sampleID, text string) Payload {
	return Payload{Kind: TaskTranslation, SampleID: sampleID, Text: text}
}

// Validate checks the structural invariants of the payload: a known task
// kind, a sample reference, and non-empty text. It returns ErrInvalidPayload
// wrapped with the offending detail.
func (p Payload) Validate() error {
	if !p.Kind.Valid() {
		return errors.Join(ErrInvalidPayload, errors.New("unknown task kind"))
	}
	if p.SampleID == "" {
		return errors.Join(ErrInvalidPayload, errors.New("sample reference is required"))
	}
	if p.Text == "" {
		return errors.Join(ErrInvalidPayload, errors.New("text is required"))
	}
	return nil
}
