package data

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/repo"
	"github.com/anthropics/emoji-gateway/internal/conf"
)

// Repositories contains all repositories
type Repositories struct {
	State    repo.StateRepo
	Message  repo.MessageRepo
	Renderer repo.RendererRepo
	Planner  repo.PlannerRepo
}

// NewRepositories creates all repositories from configuration
func NewRepositories(cfg *conf.Config, log *zap.Logger) *Repositories {
	valkeyAddr := fmt.Sprintf("%s:%d", cfg.Valkey.Host, cfg.Valkey.Port)

	return &Repositories{
		State: NewStateRepo(
			valkeyAddr,
			cfg.Valkey.Password,
			cfg.StateTTL(),
			cfg.RateLimit.MaxRequests,
			cfg.RateLimitWindow(),
			log,
		),
		Message:  NewMessageRepo(cfg.Misskey.Host, cfg.Misskey.Token, log),
		Renderer: NewRendererRepo(cfg.Renderer.BaseURL, log),
		Planner:  NewPlannerRepo(cfg.OpenAI.APIKey, cfg.OpenAI.Model, log),
	}
}
