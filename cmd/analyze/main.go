// Command analyze values a batch of companies and prints them ranked by
// undervaluation. Results can optionally be persisted to Postgres and buy
// signals published to Kafka.
//
// Usage:
//
//	analyze [-policy config/policy.yaml] [-timeout 5m] [-publish] AAPL MSFT GOOGL
//
// Environment: FINNHUB_API_KEY (required), DATABASE_URL (optional, enables
// calibrated parameters and result persistence), KAFKA_BROKERS (optional,
// comma-separated, enables -publish).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fundamental_valuation/pkg/core/engine"
	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/core/provider"
	"fundamental_valuation/pkg/core/store"
	"fundamental_valuation/pkg/data/finnhub"
	"fundamental_valuation/pkg/logger"
	"fundamental_valuation/pkg/publish"
)

func main() {
	policyPath := flag.String("policy", "config/policy.yaml", "policy file")
	timeout := flag.Duration("timeout", 5*time.Minute, "batch timeout")
	doPublish := flag.Bool("publish", false, "publish buy signals to Kafka")
	flag.Parse()

	if err := run(*policyPath, *timeout, *doPublish, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(policyPath string, timeout time.Duration, doPublish bool, symbols []string) error {
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols given")
	}

	godotenv.Load()

	log, err := logger.New(logger.FromEnv())
	if err != nil {
		return err
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

	ctx := context.Background()

	var paramStore provider.ParameterStore
	var resultRepo *store.ResultRepo
	if os.Getenv("DATABASE_URL") != "" {
		if err := store.InitDB(ctx); err != nil {
			return err
		}
		defer store.Close()
		paramStore = store.NewParamRepo()
		resultRepo = store.NewResultRepo()
	} else {
		log.Warn().Msg("DATABASE_URL not set, running on default parameters without persistence")
	}

	eng := engine.New(pol, paramStore, log)
	orch := engine.NewOrchestrator(eng, client, pol.MaxConcurrency, log)

	batch := orch.RunWithTimeout(ctx, symbols, timeout)

	fmt.Printf("Run %s: %d valued, %d failed, %d omitted\n\n",
		batch.RunID, len(batch.Results), len(batch.Failures), len(batch.Omitted))
	fmt.Printf("%-8s %10s %10s %8s %-12s %s\n",
		"SYMBOL", "PRICE", "FAIR", "UNDER%", "CLASS", "BUY")
	for _, r := range batch.Results {
		buy := ""
		if r.Buy {
			buy = "BUY"
		}
		fmt.Printf("%-8s %10.2f %10.2f %+7.1f%% %-12s %s\n",
			r.Symbol, r.CurrentPrice, r.BlendedFairValue,
			r.UndervaluationPercentage, r.Classification, buy)
	}
	for _, f := range batch.Failures {
		fmt.Printf("%-8s FAILED [%s] %s\n", f.Symbol, f.Kind, f.Reason)
	}
	if len(batch.Omitted) > 0 {
		fmt.Printf("omitted (timeout): %s\n", strings.Join(batch.Omitted, ", "))
	}

	if resultRepo != nil {
		if err := resultRepo.SaveBatch(ctx, batch); err != nil {
			log.Error().Err(err).Msg("result persistence failed")
		}
	}

	if doPublish {
		brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
		if brokers[0] == "" {
			return fmt.Errorf("-publish requires KAFKA_BROKERS")
		}
		pub, err := publish.New(publish.Config{Brokers: brokers, BuyOnly: true}, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.PublishBatch(ctx, batch); err != nil {
			return err
		}
	}

	return nil
}
