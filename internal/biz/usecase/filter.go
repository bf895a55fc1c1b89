package usecase

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
)

// FilterUsecase decides whether an inbound note is eligible for processing
// and extracts the request text from a mention.
type FilterUsecase struct {
	botUsername string
	mentionRe   *regexp.Regexp
	log         *zap.Logger
}

// NewFilterUsecase creates a new filter usecase for the given bot account
func NewFilterUsecase(botUsername string, log *zap.Logger) *FilterUsecase {
	return &FilterUsecase{
		botUsername: botUsername,
		mentionRe:   regexp.MustCompile(`(?i)^@` + regexp.QuoteMeta(botUsername) + `\s*`),
		log:         log,
	}
}

// ShouldProcess reports whether a mention should be processed.
// Checks short-circuit in order: remote author, empty text, automated author.
func (uc *FilterUsecase) ShouldProcess(note *domain.Note) bool {
	if !note.IsLocal() {
		uc.log.Debug("ignored remote user",
			zap.String("userId", note.UserID),
			zap.String("host", note.User.Host))
		return false
	}

	if note.Text == "" {
		uc.log.Debug("ignored note without text", zap.String("noteId", note.ID))
		return false
	}

	if note.User.IsBot {
		uc.log.Debug("ignored bot user", zap.String("userId", note.UserID))
		return false
	}

	return true
}

// ExtractMessage strips one leading bot mention and surrounding whitespace
func (uc *FilterUsecase) ExtractMessage(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(uc.mentionRe.ReplaceAllString(text, ""))
}
