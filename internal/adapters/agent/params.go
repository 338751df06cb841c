package agent

import (
	"context"
	"fmt"

	env "github.com/caarlos0/env/v11"

	"github.com/target/mmk-agent-api/config"
	"github.com/target/mmk-agent-api/internal/core"
	"github.com/target/mmk-agent-api/internal/domain/model"
)

// ParamsFromConfig converts agent configuration into run parameters.
func ParamsFromConfig(cfg config.AgentConfig) model.AgentParams {
	return model.AgentParams{
		APIBase:        cfg.APIBase,
		Model:          cfg.Model,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		Headless:       cfg.Headless,
		Homepage:       cfg.Homepage,
	}
}

// EnvParams reads agent parameters from the environment on every call,
// so a changed AGENT_* variable applies to the next job without a restart.
type EnvParams struct{}

var _ core.AgentParamsSource = EnvParams{}

// AgentParams implements core.AgentParamsSource.
func (EnvParams) AgentParams(context.Context) (model.AgentParams, error) {
	cfg, err := env.ParseAs[config.AgentConfig]()
	if err != nil {
		return model.AgentParams{}, fmt.Errorf("parse agent config: %w", err)
	}
	cfg.Sanitize()
	return ParamsFromConfig(cfg), nil
}

// StaticParams always returns the same parameters.
type StaticParams model.AgentParams

var _ core.AgentParamsSource = StaticParams{}

// AgentParams implements core.AgentParamsSource.
func (s StaticParams) AgentParams(context.Context) (model.AgentParams, error) {
	return model.AgentParams(s), nil
}
