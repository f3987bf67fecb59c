package cmd

import (
	"fmt"

	"github.com/vetlink/vetlink/internal/app"
	"github.com/vetlink/vetlink/internal/config"
	"github.com/vetlink/vetlink/internal/logger"
)

// withApp loads config the same way the server does and hands fn a fully
// wired app.
func withApp(fn func(a *app.App) error) error {
	cfg := config.Load()

	flush := logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)
	defer flush()

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() { _ = a.Close() }()

	return fn(a)
}
