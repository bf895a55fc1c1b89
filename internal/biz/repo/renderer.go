package repo

import (
	"context"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
)

// RendererRepo is the emoji rendering service interface
type RendererRepo interface {
	// Fonts returns the available font ids. The result may be cached
	// indefinitely by the implementation.
	Fonts(ctx context.Context) ([]string, error)

	// Render renders the emoji and returns the raw image bytes
	Render(ctx context.Context, params *domain.EmojiParams) ([]byte, error)
}
