package port

import "context"

// Captioner turns raw image bytes into a short text description.
type Captioner interface {
	// Caption describes the image. The output is opaque text.
	Caption(ctx context.Context, image []byte) (string, error)

	// ModelName returns the name of the captioning model.
	ModelName() string
}
