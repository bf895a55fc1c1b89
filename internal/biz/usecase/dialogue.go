package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
	"github.com/anthropics/emoji-gateway/internal/biz/repo"
)

const (
	msgGenerationFailed = "申し訳ありません、絵文字の生成中にエラーが発生しました。もう一度お試しください。"
	msgRegisterFailed   = "絵文字の登録中にエラーが発生しました。ショートコードが既に使用されている可能性があります。"
	msgCancelled        = "承知しました。キャンセルしますね。新しいリクエストをお待ちしています！"
	msgGuidance         = "「はい」または「いいえ」でお答えください。登録する場合は「はい」、作り直す場合は「いいえ」と返信してください。"
)

// A rejection longer than this carrying more than a bare canonical negative
// is treated as a fresh generation request.
const regenerateLengthThreshold = 10

var bareNegativeRe = regexp.MustCompile(`(?i)^(いいえ|no|ダメ|だめ|やめ|キャンセル)$`)

// DialogueUsecase drives the generate-and-propose and confirmation phases of
// the conversation state machine.
type DialogueUsecase struct {
	stateRepo    repo.StateRepo
	messageRepo  repo.MessageRepo
	rendererRepo repo.RendererRepo
	plannerRepo  repo.PlannerRepo
	log          *zap.Logger
}

// NewDialogueUsecase creates a new dialogue usecase
func NewDialogueUsecase(
	stateRepo repo.StateRepo,
	messageRepo repo.MessageRepo,
	rendererRepo repo.RendererRepo,
	plannerRepo repo.PlannerRepo,
	log *zap.Logger,
) *DialogueUsecase {
	return &DialogueUsecase{
		stateRepo:    stateRepo,
		messageRepo:  messageRepo,
		rendererRepo: rendererRepo,
		plannerRepo:  plannerRepo,
		log:          log,
	}
}

// GenerateAndPropose runs the generation chain for a new request: plan
// parameters, render, upload, persist a confirming state and reply with a
// proposal. On any failure the user gets a generic failure notice and no
// state is left behind.
func (uc *DialogueUsecase) GenerateAndPropose(ctx context.Context, userID, userMessage, replyToID string) error {
	params, err := uc.generate(ctx, userID, userMessage, replyToID)
	if err != nil {
		uc.log.Error("generation failed",
			zap.String("userId", userID),
			zap.Error(err))
		if replyErr := uc.messageRepo.CreateNote(ctx, msgGenerationFailed, replyToID, nil); replyErr != nil {
			uc.log.Error("failed to send failure notice", zap.Error(replyErr))
		}
		return err
	}

	uc.log.Info("proposal sent",
		zap.String("userId", userID),
		zap.String("shortcode", params.Shortcode))
	return nil
}

func (uc *DialogueUsecase) generate(ctx context.Context, userID, userMessage, replyToID string) (*domain.EmojiParams, error) {
	fonts, err := uc.rendererRepo.Fonts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch fonts: %w", err)
	}

	uc.log.Info("planning emoji params",
		zap.String("userId", userID),
		zap.String("message", userMessage))
	params, _, err := uc.plannerRepo.Plan(ctx, userMessage, fonts)
	if err != nil {
		return nil, fmt.Errorf("plan params: %w", err)
	}

	image, err := uc.rendererRepo.Render(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	upload, err := uc.messageRepo.UploadFile(ctx, image, params.Shortcode)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	state := &domain.ConversationState{
		Status:       domain.StatusConfirming,
		FileID:       upload.ID,
		Shortcode:    params.Shortcode,
		ReplyToID:    replyToID,
		OriginalText: userMessage,
	}
	if err := uc.stateRepo.SetState(ctx, userID, state); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	if err := uc.messageRepo.CreateNote(ctx, buildProposal(params), replyToID, []string{upload.ID}); err != nil {
		return nil, fmt.Errorf("send proposal: %w", err)
	}

	return params, nil
}

// HandleConfirmation routes a message from a user in confirming state
func (uc *DialogueUsecase) HandleConfirmation(ctx context.Context, userID, userMessage, replyToID string, state *domain.ConversationState) error {
	switch domain.ClassifyIntent(userMessage) {
	case domain.IntentYes:
		return uc.handleYes(ctx, userID, replyToID, state)
	case domain.IntentNo:
		return uc.handleNo(ctx, userID, userMessage, replyToID)
	default:
		return uc.messageRepo.CreateNote(ctx, msgGuidance, replyToID, nil)
	}
}

// handleYes registers the pending emoji. The state is deleted whether or not
// registration succeeds; a yes answer always terminates the conversation.
func (uc *DialogueUsecase) handleYes(ctx context.Context, userID, replyToID string, state *domain.ConversationState) error {
	if err := uc.messageRepo.AddEmoji(ctx, state.Shortcode, state.FileID); err != nil {
		uc.log.Error("failed to register emoji",
			zap.String("userId", userID),
			zap.String("shortcode", state.Shortcode),
			zap.Error(err))

		if delErr := uc.stateRepo.DeleteState(ctx, userID); delErr != nil {
			uc.log.Error("failed to clear state", zap.Error(delErr))
		}
		return uc.messageRepo.CreateNote(ctx, msgRegisterFailed, replyToID, nil)
	}

	if err := uc.stateRepo.DeleteState(ctx, userID); err != nil {
		uc.log.Error("failed to clear state", zap.Error(err))
	}

	uc.log.Info("emoji registered",
		zap.String("userId", userID),
		zap.String("shortcode", state.Shortcode))

	text := fmt.Sprintf("絵文字を登録しました！ :%s: でお使いいただけます！", state.Shortcode)
	return uc.messageRepo.CreateNote(ctx, text, replyToID, nil)
}

// handleNo cancels the proposal. A rejection carrying content beyond a bare
// canonical negative re-enters the generation path with that text.
func (uc *DialogueUsecase) handleNo(ctx context.Context, userID, userMessage, replyToID string) error {
	if err := uc.stateRepo.DeleteState(ctx, userID); err != nil {
		uc.log.Error("failed to clear state", zap.Error(err))
	}

	if err := uc.messageRepo.CreateNote(ctx, msgCancelled, replyToID, nil); err != nil {
		uc.log.Error("failed to send cancellation", zap.Error(err))
	}

	uc.log.Info("user rejected proposal", zap.String("userId", userID))

	if isNewRequest(userMessage) {
		return uc.GenerateAndPropose(ctx, userID, userMessage, replyToID)
	}
	return nil
}

func isNewRequest(userMessage string) bool {
	trimmed := strings.TrimSpace(userMessage)
	return utf8.RuneCountInString(userMessage) > regenerateLengthThreshold &&
		!bareNegativeRe.MatchString(trimmed)
}

func buildProposal(params *domain.EmojiParams) string {
	motionDesc := ""
	if params.HasMotion() {
		motionDesc = "\n🎬 アニメーション: " + params.Motion.Type
	}

	return fmt.Sprintf(`絵文字を作成しました！

📝 テキスト: %s
🔤 フォント: %s
🎨 色: %s%s
🏷️ ショートコード: `+"`:%s:`"+`

この絵文字を登録しますか？（はい/いいえ）`,
		params.Text, params.Style.FontID, params.Style.TextColor, motionDesc, params.Shortcode)
}
