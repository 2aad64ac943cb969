package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	classificationx "github.com/merrysway/coffeebot/agent/agents/classification"
	detailsx "github.com/merrysway/coffeebot/agent/agents/details"
	guardx "github.com/merrysway/coffeebot/agent/agents/guard"
	orchestratorx "github.com/merrysway/coffeebot/agent/agents/orchestrator"
	ordertakingx "github.com/merrysway/coffeebot/agent/agents/ordertaking"
	recommendationx "github.com/merrysway/coffeebot/agent/agents/recommendation"
	contractx "github.com/merrysway/coffeebot/agent/contract"
	llmx "github.com/merrysway/coffeebot/agent/llm"
	orderstorex "github.com/merrysway/coffeebot/agent/orderstore"
	statex "github.com/merrysway/coffeebot/agent/state"
	configx "github.com/merrysway/coffeebot/pkg/config"
	_ "github.com/merrysway/coffeebot/pkg/logger/autoload"
)

type AppConfig struct {
	SessionID      string `envconfig:"SESSION_ID" split_words:"true" default:"local-session"`
	HistoryBackend string `envconfig:"HISTORY_BACKEND" split_words:"true" default:"memory"`
	PostgresDSN    string `envconfig:"POSTGRES_DSN" split_words:"true"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustLoad[AppConfig]("COFFEEBOT")
	llmCfg := configx.MustLoad[llmx.Config]("LLM")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	gateway := llmx.NewClient(*llmCfg)

	recommender := recommendationx.New(
		gateway,
		llmCfg.ModelFor(contractx.AgentTypeRecommendation),
		llmCfg.EmbeddingModel,
	)

	orch, err := orchestratorx.New(orchestratorx.Deps{
		Guard:       guardx.New(gateway, llmCfg.ModelFor(contractx.AgentTypeGuard)),
		Classifier:  classificationx.New(gateway, llmCfg.ModelFor(contractx.AgentTypeClassification)),
		Details:     detailsx.New(gateway, llmCfg.ModelFor(contractx.AgentTypeDetails), llmCfg.EmbeddingModel),
		OrderTaking: ordertakingx.New(gateway, llmCfg.ModelFor(contractx.AgentTypeOrderTaking), recommender),
		Recommender: recommender,
		Archive:     newArchive(ctx, appCfg.PostgresDSN),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	store := newHistoryStore(appCfg.HistoryBackend)
	history, err := store.Load(ctx, appCfg.SessionID)
	if err != nil && !errors.Is(err, statex.ErrHistoryNotFound) {
		log.Fatal().Err(err).Msg("load history")
	}

	fmt.Println("Merry's Way assistant. Type your message, or 'quit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		history, err = orch.HandleTurn(ctx, appCfg.SessionID, history, text)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			fmt.Println("(something went wrong, please try again)")
			continue
		}

		fmt.Println(history[len(history)-1].Content)

		if err := store.Save(ctx, appCfg.SessionID, history); err != nil {
			log.Warn().Err(err).Msg("save history")
		}
	}
}

func newHistoryStore(backend string) statex.Store {
	if strings.EqualFold(strings.TrimSpace(backend), "upstash") {
		cfg := configx.MustLoad[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build upstash history store")
		}
		return store
	}
	return statex.NewInMemoryStore()
}

// newArchive returns nil when no DSN is configured or the table cannot be
// prepared; the orchestrator treats a nil archive as disabled.
func newArchive(ctx context.Context, dsn string) orchestratorx.Archiver {
	if strings.TrimSpace(dsn) == "" {
		return nil
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	archive, err := orderstorex.NewArchive(db)
	if err != nil {
		log.Warn().Err(err).Msg("order archive disabled")
		return nil
	}
	if err := archive.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("order archive table init failed, archive disabled")
		return nil
	}
	return archive
}
