package caption

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// StaticCaptioner answers from a fixed table keyed by the hex SHA-256 of
// the image, falling back to Default. It never fails.
type StaticCaptioner struct {
	Captions map[string]string
	Default  string
}

// NewStaticCaptioner creates a captioner that always answers fallback.
func NewStaticCaptioner(fallback string) *StaticCaptioner {
	return &StaticCaptioner{Captions: map[string]string{}, Default: fallback}
}

// Add registers the caption for image.
func (s *StaticCaptioner) Add(image []byte, caption string) {
	s.Captions[Key(image)] = caption
}

func (s *StaticCaptioner) Caption(ctx context.Context, image []byte) (string, error) {
	if c, ok := s.Captions[Key(image)]; ok {
		return c, nil
	}
	return s.Default, nil
}

func (s *StaticCaptioner) ModelName() string {
	return "static"
}

// Key is the lookup key of an image.
func Key(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
