package config

import (
	"strings"
	"time"
)

// AgentConfig holds the browser agent settings. The execution bridge re-reads
// these from the environment when each job starts.
type AgentConfig struct {
	APIBase        string `env:"AGENT_API_BASE"`
	Model          string `env:"AGENT_MODEL"`
	ViewportWidth  int    `env:"AGENT_VIEWPORT_WIDTH"  envDefault:"1280"`
	ViewportHeight int    `env:"AGENT_VIEWPORT_HEIGHT" envDefault:"1920"`
	Headless       bool   `env:"AGENT_HEADLESS"        envDefault:"true"`
	Homepage       string `env:"AGENT_HOMEPAGE"        envDefault:"https://www.google.com"`

	// RequestTimeout bounds one HTTP call to the agent.
	RequestTimeout time.Duration `env:"AGENT_REQUEST_TIMEOUT" envDefault:"10m"`

	// JMESPath expressions evaluated against the agent's JSON response.
	ScreenshotExpr string `env:"AGENT_SCREENSHOT_EXPR" envDefault:"observations[-1].info.original_image"`
	AnimationExpr  string `env:"AGENT_ANIMATION_EXPR"  envDefault:"animation"`
	ResultExpr     string `env:"AGENT_RESULT_EXPR"     envDefault:"{actions: actions, observations: observations}"`
}

// Sanitize applies guardrails to agent configuration values.
func (c *AgentConfig) Sanitize() {
	c.APIBase = strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	c.Model = strings.TrimSpace(c.Model)
	c.Homepage = strings.TrimSpace(c.Homepage)
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1920
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Minute
	}
	c.ScreenshotExpr = strings.TrimSpace(c.ScreenshotExpr)
	c.AnimationExpr = strings.TrimSpace(c.AnimationExpr)
	c.ResultExpr = strings.TrimSpace(c.ResultExpr)
}
