package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
	"github.com/anthropics/emoji-gateway/internal/biz/repo"
)

// Mock implementations

type mockStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.ConversationState
}

func newMockStateRepo() *mockStateRepo {
	return &mockStateRepo{states: make(map[string]*domain.ConversationState)}
}

func (m *mockStateRepo) GetState(ctx context.Context, userID string) (*domain.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[userID], nil
}

func (m *mockStateRepo) SetState(ctx context.Context, userID string, state *domain.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = state
	return nil
}

func (m *mockStateRepo) DeleteState(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}

func (m *mockStateRepo) CheckRateLimit(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func (m *mockStateRepo) MarkProcessed(ctx context.Context, noteID string) (bool, error) {
	return true, nil
}

func (m *mockStateRepo) Ping(ctx context.Context) bool { return true }

func (m *mockStateRepo) Close() error { return nil }

type sentNote struct {
	text    string
	replyID string
	fileIDs []string
}

type mockMessageRepo struct {
	mu          sync.Mutex
	notes       []sentNote
	uploads     int
	uploadErr   error
	addedEmojis []string
	addEmojiErr error
}

func (m *mockMessageRepo) Me(ctx context.Context) (string, error) { return "bot", nil }

func (m *mockMessageRepo) CreateNote(ctx context.Context, text, replyID string, fileIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, sentNote{text: text, replyID: replyID, fileIDs: fileIDs})
	return nil
}

func (m *mockMessageRepo) UploadFile(ctx context.Context, data []byte, name string) (*repo.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	return &repo.UploadResult{ID: "file123", URL: "https://example.com/file123.png"}, nil
}

func (m *mockMessageRepo) AddEmoji(ctx context.Context, name, fileID string) error {
	if m.addEmojiErr != nil {
		return m.addEmojiErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addedEmojis = append(m.addedEmojis, name)
	return nil
}

type mockRendererRepo struct {
	fonts     []string
	fontsErr  error
	renderErr error
	renders   int
}

func (m *mockRendererRepo) Fonts(ctx context.Context) ([]string, error) {
	if m.fontsErr != nil {
		return nil, m.fontsErr
	}
	return m.fonts, nil
}

func (m *mockRendererRepo) Render(ctx context.Context, params *domain.EmojiParams) ([]byte, error) {
	if m.renderErr != nil {
		return nil, m.renderErr
	}
	m.renders++
	return []byte("png-bytes"), nil
}

type mockPlannerRepo struct {
	params   *domain.EmojiParams
	planErr  error
	requests []string
}

func (m *mockPlannerRepo) Plan(ctx context.Context, userMessage string, fonts []string) (*domain.EmojiParams, string, error) {
	m.requests = append(m.requests, userMessage)
	if m.planErr != nil {
		return nil, "", m.planErr
	}
	return m.params, "explanation", nil
}

func happyParams() *domain.EmojiParams {
	return &domain.EmojiParams{
		Text:      "ハッピー",
		Style:     domain.EmojiStyle{FontID: "rounded", TextColor: "#FF9900"},
		Shortcode: "happy_emoji",
	}
}

func newTestDialogue(states *mockStateRepo, msgs *mockMessageRepo, renderer *mockRendererRepo, planner *mockPlannerRepo) *DialogueUsecase {
	return NewDialogueUsecase(states, msgs, renderer, planner, zap.NewNop())
}

func TestGenerateAndProposeSuccess(t *testing.T) {
	states := newMockStateRepo()
	msgs := &mockMessageRepo{}
	renderer := &mockRendererRepo{fonts: []string{"rounded", "serif"}}
	planner := &mockPlannerRepo{params: happyParams()}
	uc := newTestDialogue(states, msgs, renderer, planner)

	err := uc.GenerateAndPropose(context.Background(), "user1", "make a happy emoji", "note1")
	require.NoError(t, err)

	state := states.states["user1"]
	require.NotNil(t, state)
	assert.Equal(t, domain.StatusConfirming, state.Status)
	assert.Equal(t, "file123", state.FileID)
	assert.Equal(t, "happy_emoji", state.Shortcode)
	assert.Equal(t, "note1", state.ReplyToID)
	assert.Equal(t, "make a happy emoji", state.OriginalText)

	require.Len(t, msgs.notes, 1)
	assert.Contains(t, msgs.notes[0].text, "happy_emoji")
	assert.Contains(t, msgs.notes[0].text, "はい/いいえ")
	assert.Equal(t, "note1", msgs.notes[0].replyID)
	assert.Equal(t, []string{"file123"}, msgs.notes[0].fileIDs)
}

func TestGenerateAndProposeIncludesMotionInProposal(t *testing.T) {
	states := newMockStateRepo()
	msgs := &mockMessageRepo{}
	params := happyParams()
	params.Motion = &domain.EmojiMotion{Type: "bounce", Intensity: "high"}
	planner := &mockPlannerRepo{params: params}
	uc := newTestDialogue(states, msgs, &mockRendererRepo{fonts: []string{"rounded"}}, planner)

	require.NoError(t, uc.GenerateAndPropose(context.Background(), "user1", "bouncy please", "note1"))
	require.Len(t, msgs.notes, 1)
	assert.Contains(t, msgs.notes[0].text, "アニメーション: bounce")
}

func TestGenerateAndProposeRenderFailure(t *testing.T) {
	states := newMockStateRepo()
	msgs := &mockMessageRepo{}
	renderer := &mockRendererRepo{fonts: []string{"rounded"}, renderErr: errors.New("render rejected: status 422")}
	planner := &mockPlannerRepo{params: happyParams()}
	uc := newTestDialogue(states, msgs, renderer, planner)

	err := uc.GenerateAndPropose(context.Background(), "user1", "make a happy emoji", "note1")
	require.Error(t, err)

	// No state persisted, no registration attempted, one generic failure reply
	assert.Nil(t, states.states["user1"])
	assert.Empty(t, msgs.addedEmojis)
	require.Len(t, msgs.notes, 1)
	assert.Equal(t, msgGenerationFailed, msgs.notes[0].text)
	assert.Empty(t, msgs.notes[0].fileIDs)
}

func TestGenerateAndProposePlannerRefusal(t *testing.T) {
	states := newMockStateRepo()
	msgs := &mockMessageRepo{}
	planner := &mockPlannerRepo{planErr: repo.ErrPlannerRefused}
	uc := newTestDialogue(states, msgs, &mockRendererRepo{fonts: []string{"rounded"}}, planner)

	err := uc.GenerateAndPropose(context.Background(), "user1", "something off-policy", "note1")
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrPlannerRefused)
	assert.Nil(t, states.states["user1"])
	require.Len(t, msgs.notes, 1)
	assert.Equal(t, msgGenerationFailed, msgs.notes[0].text)
}

func confirmingState() *domain.ConversationState {
	return &domain.ConversationState{
		Status:       domain.StatusConfirming,
		FileID:       "file123",
		Shortcode:    "happy_emoji",
		ReplyToID:    "note1",
		OriginalText: "make a happy emoji",
	}
}

func TestHandleConfirmationYes(t *testing.T) {
	states := newMockStateRepo()
	states.states["user1"] = confirmingState()
	msgs := &mockMessageRepo{}
	uc := newTestDialogue(states, msgs, &mockRendererRepo{}, &mockPlannerRepo{})

	err := uc.HandleConfirmation(context.Background(), "user1", "はい", "note2", confirmingState())
	require.NoError(t, err)

	assert.Equal(t, []string{"happy_emoji"}, msgs.addedEmojis)
	assert.Nil(t, states.states["user1"])
	require.Len(t, msgs.notes, 1)
	assert.Contains(t, msgs.notes[0].text, ":happy_emoji:")
	assert.Equal(t, "note2", msgs.notes[0].replyID)
}

func TestHandleConfirmationYesRegistrationFails(t *testing.T) {
	states := newMockStateRepo()
	states.states["user1"] = confirmingState()
	msgs := &mockMessageRepo{addEmojiErr: errors.New("emoji add: status 400: name taken")}
	uc := newTestDialogue(states, msgs, &mockRendererRepo{}, &mockPlannerRepo{})

	err := uc.HandleConfirmation(context.Background(), "user1", "はい", "note2", confirmingState())
	require.NoError(t, err)

	// State never survives a yes answer, even when registration fails
	assert.Nil(t, states.states["user1"])
	require.Len(t, msgs.notes, 1)
	assert.Equal(t, msgRegisterFailed, msgs.notes[0].text)
}

func TestHandleConfirmationNoBare(t *testing.T) {
	states := newMockStateRepo()
	states.states["user1"] = confirmingState()
	msgs := &mockMessageRepo{}
	planner := &mockPlannerRepo{params: happyParams()}
	uc := newTestDialogue(states, msgs, &mockRendererRepo{fonts: []string{"rounded"}}, planner)

	err := uc.HandleConfirmation(context.Background(), "user1", "いいえ", "note2", confirmingState())
	require.NoError(t, err)

	assert.Nil(t, states.states["user1"])
	assert.Empty(t, planner.requests)
	require.Len(t, msgs.notes, 1)
	assert.Equal(t, msgCancelled, msgs.notes[0].text)
}

func TestHandleConfirmationNoWithNewRequest(t *testing.T) {
	states := newMockStateRepo()
	states.states["user1"] = confirmingState()
	msgs := &mockMessageRepo{}
	planner := &mockPlannerRepo{params: &domain.EmojiParams{
		Text:      "かわいい",
		Style:     domain.EmojiStyle{FontID: "rounded", TextColor: "#FF6699"},
		Shortcode: "cute_emoji",
	}}
	uc := newTestDialogue(states, msgs, &mockRendererRepo{fonts: []string{"rounded"}}, planner)

	message := "いいえ、もっと可愛くして"
	err := uc.HandleConfirmation(context.Background(), "user1", message, "note2", confirmingState())
	require.NoError(t, err)

	// Cancellation acknowledged, then a fresh generation cycle with the text
	require.Len(t, msgs.notes, 2)
	assert.Equal(t, msgCancelled, msgs.notes[0].text)
	assert.Contains(t, msgs.notes[1].text, "cute_emoji")
	assert.Equal(t, []string{message}, planner.requests)

	state := states.states["user1"]
	require.NotNil(t, state)
	assert.Equal(t, "cute_emoji", state.Shortcode)
	assert.Equal(t, message, state.OriginalText)
}

func TestHandleConfirmationUnknown(t *testing.T) {
	states := newMockStateRepo()
	states.states["user1"] = confirmingState()
	msgs := &mockMessageRepo{}
	planner := &mockPlannerRepo{}
	uc := newTestDialogue(states, msgs, &mockRendererRepo{}, planner)

	err := uc.HandleConfirmation(context.Background(), "user1", "いい感じ", "note2", confirmingState())
	require.NoError(t, err)

	// No state mutation, guidance reply only
	require.NotNil(t, states.states["user1"])
	assert.Empty(t, planner.requests)
	require.Len(t, msgs.notes, 1)
	assert.Equal(t, msgGuidance, msgs.notes[0].text)
}

func TestIsNewRequest(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"いいえ、もっと可愛くして", true},
		{"no, make it bigger please", true},
		{"いいえ", false},
		{"キャンセル", false},
		{"だめ", false},
		{"        いいえ        ", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, isNewRequest(tt.message))
		})
	}
}
