package service

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
	"github.com/anthropics/emoji-gateway/internal/biz/repo"
	"github.com/anthropics/emoji-gateway/internal/biz/usecase"
)

// MentionService runs the per-event pipeline for inbound mention notes:
// filtering, deduplication, rate limiting, extraction and routing into the
// dialogue state machine.
type MentionService struct {
	stateRepo  repo.StateRepo
	filterUC   *usecase.FilterUsecase
	dialogueUC *usecase.DialogueUsecase
	log        *zap.Logger

	processed   atomic.Int64
	duplicates  atomic.Int64
	rateLimited atomic.Int64
}

// NewMentionService creates a new mention service
func NewMentionService(
	stateRepo repo.StateRepo,
	filterUC *usecase.FilterUsecase,
	dialogueUC *usecase.DialogueUsecase,
	log *zap.Logger,
) *MentionService {
	return &MentionService{
		stateRepo:  stateRepo,
		filterUC:   filterUC,
		dialogueUC: dialogueUC,
		log:        log,
	}
}

// HandleMention processes one inbound mention. Errors are logged and isolated
// to the event; nothing propagates to the stream read loop.
func (s *MentionService) HandleMention(ctx context.Context, note *domain.Note) {
	if !s.filterUC.ShouldProcess(note) {
		return
	}

	isNew, err := s.stateRepo.MarkProcessed(ctx, note.ID)
	if err != nil {
		s.log.Error("dedup check failed", zap.String("noteId", note.ID), zap.Error(err))
		return
	}
	if !isNew {
		s.duplicates.Add(1)
		s.log.Debug("duplicate note ignored", zap.String("noteId", note.ID))
		return
	}

	userID := note.UserID

	allowed, err := s.stateRepo.CheckRateLimit(ctx, userID)
	if err != nil {
		s.log.Error("rate limit check failed", zap.String("userId", userID), zap.Error(err))
		return
	}
	if !allowed {
		s.rateLimited.Add(1)
		s.log.Warn("rate limited user", zap.String("userId", userID))
		return
	}

	message := s.filterUC.ExtractMessage(note.Text)
	if message == "" {
		s.log.Debug("empty message after extraction", zap.String("noteId", note.ID))
		return
	}

	s.processed.Add(1)
	s.log.Info("processing mention",
		zap.String("userId", userID),
		zap.String("noteId", note.ID),
		zap.String("message", message))

	state, err := s.stateRepo.GetState(ctx, userID)
	if err != nil {
		s.log.Error("failed to read state", zap.String("userId", userID), zap.Error(err))
		return
	}

	if state != nil {
		s.log.Debug("existing state found, handling confirmation", zap.String("userId", userID))
		if err := s.dialogueUC.HandleConfirmation(ctx, userID, message, note.ID, state); err != nil {
			s.log.Error("error handling confirmation", zap.String("userId", userID), zap.Error(err))
		}
		return
	}

	// A confirmation-shaped message with no active conversation is a stray
	// reply, not a generation request.
	if intent := domain.ClassifyIntent(message); intent != domain.IntentUnknown {
		s.log.Debug("stray confirmation dropped",
			zap.String("userId", userID),
			zap.String("intent", string(intent)))
		return
	}

	s.log.Debug("no state found, starting generation", zap.String("userId", userID))
	if err := s.dialogueUC.GenerateAndPropose(ctx, userID, message, note.ID); err != nil {
		s.log.Error("error handling mention", zap.String("userId", userID), zap.Error(err))
	}
}

// Stats returns the pipeline counters: processed mentions, duplicate drops
// and rate-limited drops.
func (s *MentionService) Stats() (processed, duplicates, rateLimited int64) {
	return s.processed.Load(), s.duplicates.Load(), s.rateLimited.Load()
}
