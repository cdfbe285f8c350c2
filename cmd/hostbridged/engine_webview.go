//go:build webview

package main

import (
	"log/slog"

	"github.com/jmylchreest/hostbridge/internal/config"
	"github.com/jmylchreest/hostbridge/internal/runtime"
	"github.com/jmylchreest/hostbridge/internal/runtime/webview"
)

func init() {
	engines[config.EngineWebview] = func(cfg *config.Config, logger *slog.Logger) (runtime.Runtime, error) {
		return webview.New(logger, cfg.Runtime.Debug), nil
	}
}
