package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/internal/observability"
	"github.com/formpilot/formpilot/pkg/answercache"
	"github.com/formpilot/formpilot/pkg/answersvc"
	"github.com/formpilot/formpilot/pkg/browser"
	browsercdp "github.com/formpilot/formpilot/pkg/browser/cdp"
	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/handlers"
	"github.com/formpilot/formpilot/pkg/navigator"
	"github.com/formpilot/formpilot/pkg/progress"
	"github.com/formpilot/formpilot/pkg/resolve"
	"github.com/formpilot/formpilot/pkg/selector"
)

// newApplyCmd creates and configures the `apply` command.
func newApplyCmd() *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply [urls...]",
		Short: "Fills and submits each application form in turn",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if headless, err := cmd.Flags().GetBool("headless"); err == nil && cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}

			components, err := initializeApplyComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			var submitted, failed int
			for _, url := range args {
				if ctx.Err() != nil {
					logger.Warn("Run aborted by user signal")
					break
				}
				outcome := runOne(ctx, components, url, logger)
				if outcome == navigator.OutcomeSubmitted {
					submitted++
				} else {
					failed++
				}
				if outcome == navigator.OutcomeAborted {
					break
				}
			}

			fmt.Printf("\nRun complete. Submitted: %d. Not submitted: %d.\n", submitted, failed)
			if ctx.Err() != nil {
				return errors.New("run aborted by user signal")
			}
			return nil
		},
	}

	applyCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	return applyCmd
}

// runOne drives a single application to its terminal outcome. Failures never
// stop the batch; the next URL gets a fresh tab regardless.
func runOne(ctx context.Context, c *applyComponents, url string, logger *zap.Logger) navigator.Outcome {
	tabCtx, cancel := c.Browser.NewTab()
	defer cancel()

	logger.Info("Processing application", zap.String("url", url))
	if err := c.Browser.Navigate(tabCtx, url); err != nil {
		logger.Error("Navigation failed, skipping", zap.String("url", url), zap.Error(err))
		return navigator.OutcomeBlocked
	}

	outcome, err := c.Navigator.RunAttempt(tabCtx)
	if err != nil {
		logger.Error("Attempt failed", zap.String("url", url), zap.Error(err))
		return navigator.OutcomeBlocked
	}
	logger.Info("Attempt finished",
		zap.String("url", url),
		zap.String("outcome", outcome.String()))
	return outcome
}

// applyComponents holds initialized services.
type applyComponents struct {
	Browser   *browser.Manager
	Navigator *navigator.Navigator
	DBPool    *pgxpool.Pool
	logger    *zap.Logger
}

// Shutdown gracefully closes all components.
func (c *applyComponents) Shutdown() {
	if c.Browser != nil {
		c.Browser.Shutdown()
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
}

// initializeApplyComponents handles dependency injection.
func initializeApplyComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*applyComponents, error) {
	components := &applyComponents{logger: logger}

	// 1. Answer cache, with optional Postgres persistence.
	var store answercache.Store
	if cfg.Cache.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return components, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DBPool = pool

		pgStore := answercache.NewPostgresStore(pool, logger)
		migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = pgStore.Migrate(migrateCtx)
		cancel()
		if err != nil {
			return components, fmt.Errorf("failed to prepare answer store: %w", err)
		}
		store = pgStore
	}

	cache := answercache.New(store, cfg.Cache.FuzzyFloor, logger)
	if err := cache.Load(ctx); err != nil {
		// A cold cache is a degradation, not a stop condition.
		logger.Warn("Could not load persisted answers, starting empty", zap.Error(err))
	}

	// 2. Answer service client, when enabled.
	var svc resolve.AnswerService
	if cfg.Answers.Enabled {
		client, err := answersvc.NewClient(cfg.Answers, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize answer client: %w", err)
		}
		svc = client
	}

	resolver := resolve.New(cache, svc, cfg.Profile, logger)

	// 3. Browser and the live DOM view.
	mgr, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return components, fmt.Errorf("failed to launch browser: %w", err)
	}
	components.Browser = mgr

	page := browsercdp.NewPage(logger)
	engine := selector.NewEngine(page, logger)
	strategies := selector.DefaultSet()

	// 4. Field machinery and the step loop.
	chain := handlers.NewChain(handlers.Deps{
		Page:       page,
		Engine:     engine,
		Resolver:   resolver,
		Strategies: strategies,
		Settle:     cfg.Navigator.SettleDelay,
		Logger:     logger,
	})
	cls := classifier.New(cfg.Classifier, logger)
	tracker := progress.NewTracker(cfg.Navigator.StallThreshold, logger)

	components.Navigator = navigator.New(page, engine, chain, cls, tracker, strategies, cfg.Navigator, logger)
	return components, nil
}
