// Command api serves the batch valuation pipeline over HTTP.
//
// Environment: FINNHUB_API_KEY (required), DATABASE_URL (optional), PORT
// (default 8085), POLICY_FILE (default config/policy.yaml).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	apivaluation "fundamental_valuation/pkg/api/valuation"
	"fundamental_valuation/pkg/core/engine"
	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/core/provider"
	"fundamental_valuation/pkg/core/store"
	"fundamental_valuation/pkg/data/finnhub"
	"fundamental_valuation/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	godotenv.Load()

	log, err := logger.New(logger.FromEnv())
	if err != nil {
		return err
	}

	policyPath := os.Getenv("POLICY_FILE")
	if policyPath == "" {
		policyPath = "config/policy.yaml"
	}
	pol, err := policy.Load(policyPath)
	if err != nil {
		return err
	}

	apiKey := os.Getenv("FINNHUB_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("FINNHUB_API_KEY not set")
	}
	client := finnhub.NewClient(finnhub.Config{
		APIKey:   apiKey,
		MaxPeers: pol.PeerCap,
	}, log)

	var paramStore provider.ParameterStore
	if os.Getenv("DATABASE_URL") != "" {
		if err := store.InitDB(context.Background()); err != nil {
			return err
		}
		defer store.Close()
		paramStore = store.NewParamRepo()
	} else {
		log.Warn().Msg("DATABASE_URL not set, running on default parameters")
	}

	eng := engine.New(pol, paramStore, log)
	orch := engine.NewOrchestrator(eng, client, pol.MaxConcurrency, log)

	mux := http.NewServeMux()
	apivaluation.NewHandler(orch, log).Register(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8085"
	}
	log.Info().Str("port", port).Msg("api listening")
	return http.ListenAndServe(":"+port, mux)
}
