// Package browser owns the Chrome process lifecycle. One Manager runs one
// browser; each application attempt gets its own tab context derived from it.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/config"
)

// Manager handles the headless browser process.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc

	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewManager launches the browser process. ctx bounds the whole browser
// lifetime; cancelling it tears everything down.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	m := &Manager{
		logger: logger.Named("browser"),
		cfg:    cfg,
	}
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx)

	// Start the process eagerly so a missing Chrome fails here, not mid-attempt.
	if err := chromedp.Run(m.browserCtx); err != nil {
		m.browserCancel()
		m.allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	m.logger.Info("browser launched", zap.Bool("headless", cfg.Headless))
	return m, nil
}

// NewTab derives a fresh tab context for one attempt. The returned cancel
// closes the tab.
func (m *Manager) NewTab() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(m.browserCtx)
}

// Navigate loads a URL in the given tab and waits for the document body.
func (m *Manager) Navigate(tabCtx context.Context, url string) error {
	navCtx := tabCtx
	if m.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(tabCtx, m.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Shutdown closes the browser process.
func (m *Manager) Shutdown() {
	m.browserCancel()
	m.allocCancel()
	m.logger.Info("browser shut down")
}
