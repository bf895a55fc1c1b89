package repo

import (
	"context"
	"errors"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
)

// ErrPlannerRefused is returned when the planner declines the request
var ErrPlannerRefused = errors.New("planner refused request")

// PlannerRepo is the AI parameter planner interface
type PlannerRepo interface {
	// Plan derives rendering parameters for the user's request, choosing from
	// the given font ids. Returns the params and a human-readable explanation.
	Plan(ctx context.Context, userMessage string, fonts []string) (*domain.EmojiParams, string, error)
}
