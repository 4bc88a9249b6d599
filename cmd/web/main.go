package main

import (
	"embed"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/k-laffite/water-quality-visualizer/internal/app"
)

// Embedded single-page frontend
//
//go:embed all:frontend
var frontendFiles embed.FS

// Embedded sample datasets, seeded into the samples directory on startup
//
//go:embed samples
var sampleFiles embed.FS

func main() {
	// Optional .env overrides; absence is the normal case
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment overrides from .env")
	}

	frontendFS := subFS(frontendFiles, "frontend")
	samplesFS := subFS(sampleFiles, "samples")

	visualizer, err := app.NewApplication(frontendFS, samplesFS)
	if err != nil {
		slog.Error("Startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := visualizer.Run(); err != nil {
		slog.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// subFS re-roots an embedded tree one directory down. A nil return
// degrades the server to API-only mode rather than failing startup.
func subFS(files embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		slog.Warn("Embedded assets unavailable",
			slog.String("dir", dir), slog.String("error", err.Error()))
		return nil
	}
	return sub
}
