package capability

import (
	"context"
	"fmt"

	contractx "github.com/quickserve/menuwise/agent/contract"
	llmx "github.com/quickserve/menuwise/agent/llm"
	promptx "github.com/quickserve/menuwise/agent/prompt"
	toolx "github.com/quickserve/menuwise/agent/tool"
)

type registryImpl struct {
	router     contractx.Router
	sql        contractx.Capability
	competitor contractx.Capability
}

func (r *registryImpl) Router() contractx.Router {
	return r.router
}

func (r *registryImpl) SQL() contractx.Capability {
	return r.sql
}

func (r *registryImpl) Competitor() contractx.Capability {
	return r.competitor
}

func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()
	if prompts.Router == "" || prompts.SQL == "" || prompts.Competitor == "" {
		return nil, contractx.ErrPromptMissing
	}

	routerModelCfg := cfg.OpenRouterFor(contractx.AgentTypeRouter)
	routerModel, err := routerModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create router model: %v", contractx.ErrOracleUnavailable, err)
	}
	sqlModelCfg := cfg.OpenRouterFor(contractx.AgentTypeSQL)
	sqlModel, err := sqlModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create sql model: %v", contractx.ErrOracleUnavailable, err)
	}
	competitorModelCfg := cfg.OpenRouterFor(contractx.AgentTypeCompetitor)
	competitorModel, err := competitorModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create competitor model: %v", contractx.ErrOracleUnavailable, err)
	}

	router, err := newRouter(ctx, routerModel, prompts.Router)
	if err != nil {
		return nil, err
	}

	sqlAgent, err := newAgent(ctx, contractx.CapabilitySQL, sqlModel, prompts.SQL,
		toolx.Infos(contractx.CapabilitySQL))
	if err != nil {
		return nil, err
	}
	competitorAgent, err := newAgent(ctx, contractx.CapabilityCompetitor, competitorModel, prompts.Competitor,
		toolx.Infos(contractx.CapabilityCompetitor))
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		router:     router,
		sql:        sqlAgent,
		competitor: competitorAgent,
	}, nil
}
