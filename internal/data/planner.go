package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
	"github.com/anthropics/emoji-gateway/internal/biz/repo"
)

// plannerRepo implements the AI parameter planner using OpenAI structured
// outputs.
type plannerRepo struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

// NewPlannerRepo creates a planner backed by the OpenAI chat completion API
func NewPlannerRepo(apiKey, model string, log *zap.Logger) repo.PlannerRepo {
	return &plannerRepo{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    log,
	}
}

const plannerSystemPromptFormat = `You are an emoji design assistant for Misskey. Your task is to analyze user requests and generate parameters for custom emoji creation.

Available font IDs:
%s

Guidelines:
1. Choose an appropriate fontId that matches the mood/style requested
2. Generate a creative shortcode using only lowercase letters, numbers, and underscores
3. Keep text concise for emoji display (ideally 1-4 characters or short words, max 20 chars)
4. Select colors that enhance readability and visual appeal (use hex format like #FF0000)
5. Consider the context and tone of the user's request
6. Use motion effects when appropriate (shake for excitement, spin for fun, bounce for playful, gaming for rainbow effect)
7. Add outline (outlineWidth > 0) for better readability on various backgrounds
8. Use \n for multi-line text`

var emojiParamsSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"text": {
			Type:        jsonschema.String,
			Description: "The text to render on the emoji (max 20 chars, use \\n for newlines)",
		},
		"layout": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"mode": {
					Type:        jsonschema.String,
					Enum:        []string{"square", "banner"},
					Description: "square: 256x256 fixed, banner: height 256, width variable",
				},
				"alignment": {
					Type:        jsonschema.String,
					Enum:        []string{"left", "center", "right"},
					Description: "Text alignment",
				},
			},
		},
		"style": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"fontId": {
					Type:        jsonschema.String,
					Description: "Font ID from the available list",
				},
				"textColor": {
					Type:        jsonschema.String,
					Description: "Text color in hex format (e.g., #FF0000)",
				},
				"outlineColor": {
					Type:        jsonschema.String,
					Description: "Outline color in hex format",
				},
				"outlineWidth": {
					Type:        jsonschema.Integer,
					Description: "Outline width in pixels (0-20)",
				},
				"shadow": {
					Type:        jsonschema.Boolean,
					Description: "Enable drop shadow",
				},
			},
			Required: []string{"fontId", "textColor"},
		},
		"motion": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"type": {
					Type:        jsonschema.String,
					Enum:        []string{"none", "shake", "spin", "bounce", "gaming"},
					Description: "Animation type",
				},
				"intensity": {
					Type:        jsonschema.String,
					Enum:        []string{"low", "medium", "high"},
					Description: "Animation intensity",
				},
			},
		},
		"shortcode": {
			Type:        jsonschema.String,
			Description: "Suggested shortcode for the emoji (lowercase alphanumeric and underscores only)",
		},
	},
	Required: []string{"text", "style", "shortcode"},
}

// Plan derives rendering parameters for the user's request
func (r *plannerRepo) Plan(ctx context.Context, userMessage string, fonts []string) (*domain.EmojiParams, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fontLines := make([]string, len(fonts))
	for i, f := range fonts {
		fontLines[i] = "- " + f
	}
	systemPrompt := fmt.Sprintf(plannerSystemPromptFormat, strings.Join(fontLines, "\n"))

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "emoji_params",
				Schema: &emojiParamsSchema,
			},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("no response choices")
	}

	message := resp.Choices[0].Message
	if message.Refusal != "" {
		r.log.Warn("planner refused to generate emoji params", zap.String("refusal", message.Refusal))
		return nil, "", repo.ErrPlannerRefused
	}

	var params domain.EmojiParams
	if err := json.Unmarshal([]byte(message.Content), &params); err != nil {
		return nil, "", fmt.Errorf("parse planner output: %w", err)
	}
	if params.Text == "" || params.Shortcode == "" || params.Style.FontID == "" {
		return nil, "", fmt.Errorf("incomplete planner output")
	}

	motionDesc := ""
	if params.HasMotion() {
		motionDesc = fmt.Sprintf("（%sアニメーション付き）", params.Motion.Type)
	}
	explanation := fmt.Sprintf("テキスト「%s」をフォント「%s」で作成します%s。", params.Text, params.Style.FontID, motionDesc)

	return &params, explanation, nil
}
