package transcribe

import "context"

// Engine is the speech-to-text collaborator. Transcribe blocks for the
// duration of model inference; callers run it off the ingest path.
type Engine interface {
	// Transcribe converts mono float32 samples at the engine rate into
	// ordered text segments. prior, when non-empty, seeds the recognition
	// with the previous utterance's tokens.
	Transcribe(ctx context.Context, samples []float32, prior []Token) ([]Segment, error)

	// Tokenize converts text back into at most maxTokens model tokens.
	Tokenize(ctx context.Context, text string, maxTokens int) ([]Token, error)
}
