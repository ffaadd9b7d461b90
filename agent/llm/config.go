package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/quickserve/menuwise/agent/contract"
	openrouterx "github.com/quickserve/menuwise/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	RouterModel           string  `envconfig:"ROUTER_MODEL" split_words:"true"`
	SQLModel              string  `envconfig:"SQL_MODEL" split_words:"true"`
	CompetitorModel       string  `envconfig:"COMPETITOR_MODEL" split_words:"true"`
	VisionModel           string  `envconfig:"VISION_MODEL" split_words:"true"`
	RouterTemperature     float32 `envconfig:"ROUTER_TEMPERATURE" split_words:"true" default:"-1"`
	SQLTemperature        float32 `envconfig:"SQL_TEMPERATURE" split_words:"true" default:"-1"`
	CompetitorTemperature float32 `envconfig:"COMPETITOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model configuration for one agent, falling back
// to the shared defaults.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeRouter:
		if v := strings.TrimSpace(c.RouterModel); v != "" {
			modelName = v
		}
		if c.RouterTemperature >= 0 {
			temp = c.RouterTemperature
		}
	case contractx.AgentTypeSQL:
		if v := strings.TrimSpace(c.SQLModel); v != "" {
			modelName = v
		}
		if c.SQLTemperature >= 0 {
			temp = c.SQLTemperature
		}
	case contractx.AgentTypeCompetitor:
		if v := strings.TrimSpace(c.CompetitorModel); v != "" {
			modelName = v
		}
		if c.CompetitorTemperature >= 0 {
			temp = c.CompetitorTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// VisionModelName returns the multimodal model used by menu_image.extract.
func (c Config) VisionModelName() string {
	if v := strings.TrimSpace(c.VisionModel); v != "" {
		return v
	}
	return strings.TrimSpace(c.Model)
}
