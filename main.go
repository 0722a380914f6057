package main

import (
	"flag"
	"log/slog"

	"github.com/veillette/gotrack/app"
	"github.com/veillette/gotrack/config"
)

func main() {
	flag.Parse()

	cfgPath := config.DefaultPath()
	cfg, loadErr := config.Load(cfgPath)
	if loadErr != nil {
		cfg = config.DefaultConfig()
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)
	if loadErr != nil {
		logger.Warn("config load failed, using defaults", "path", cfgPath, "error", loadErr)
	}

	// Optional video path argument; falls back to the last opened video.
	videoPath := flag.Arg(0)

	application := app.NewApp("GoTrack", 900, 640, cfg, cfgPath, logger)
	application.Start(videoPath)
}
