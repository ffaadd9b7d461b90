package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	capabilityx "github.com/quickserve/menuwise/agent/agents/capability"
	orchestratorx "github.com/quickserve/menuwise/agent/agents/orchestrator"
	contractx "github.com/quickserve/menuwise/agent/contract"
	llmx "github.com/quickserve/menuwise/agent/llm"
	statex "github.com/quickserve/menuwise/agent/state"
	toolx "github.com/quickserve/menuwise/agent/tool"
	configx "github.com/quickserve/menuwise/pkg/config"
	_ "github.com/quickserve/menuwise/pkg/logger/autoload"
	menudbx "github.com/quickserve/menuwise/pkg/menudb"
	openrouterx "github.com/quickserve/menuwise/pkg/openrouter"
)

type AppConfig struct {
	MaxTurns          int           `envconfig:"MAX_TURNS" split_words:"true" default:"12"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" split_words:"true" default:"2m"`
	TranscriptArchive bool          `envconfig:"TRANSCRIPT_ARCHIVE" split_words:"true" default:"false"`
}

func main() {
	imagePath := flag.String("image", "", "path to a competitor menu image")
	flag.Parse()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	menuCfg := configx.MustNew[menudbx.Config]("MENUDB")

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: menuwise [-image path] <question>")
		os.Exit(2)
	}

	ctx := context.Background()

	db, err := menudbx.Open(*menuCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open menu database")
	}
	defer db.Close()

	if menuCfg.SeedOnStart {
		if err := db.Seed(ctx, menuCfg.MenuJSON); err != nil {
			log.Fatal().Err(err).Msg("seed menu database")
		}
	}

	visionClient := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.AgentTypeCompetitor))
	completer, err := toolx.NewOpenAICompleter(visionClient, llmCfg.VisionModelName())
	if err != nil {
		log.Fatal().Err(err).Msg("build vision completer")
	}
	vision, err := toolx.NewVisionExtractor(completer)
	if err != nil {
		log.Fatal().Err(err).Msg("build vision extractor")
	}

	catalog, err := toolx.NewCatalog(db, vision)
	if err != nil {
		log.Fatal().Err(err).Msg("build tool catalog")
	}

	registry, err := capabilityx.NewRegistry(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build capability registry")
	}

	var transcripts statex.Store
	if appCfg.TranscriptArchive {
		upstashCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*upstashCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build transcript store")
		}
		transcripts = store
	}

	orc, err := orchestratorx.New(registry, catalog, transcripts, orchestratorx.Config{
		MaxTurns:       appCfg.MaxTurns,
		RequestTimeout: appCfg.RequestTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	out, err := orc.Ask(ctx, orchestratorx.AskInput{
		Text:      question,
		ImagePath: *imagePath,
	})
	if err != nil {
		var failure *contractx.Failure
		if errors.As(err, &failure) {
			log.Fatal().
				Str("reason", string(failure.Reason)).
				Err(err).
				Msg("request failed")
		}
		log.Fatal().Err(err).Msg("request failed")
	}

	log.Info().
		Str("request_id", out.RequestID).
		Str("capability", string(out.Capability)).
		Int("turns", out.Turns).
		Msg("request answered")

	fmt.Println(out.Answer)
}
