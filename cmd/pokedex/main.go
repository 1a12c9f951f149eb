// Pokédex - identifies Pokémon seen by the camera using Gemini
//
// Captures a frame every few seconds, asks the model which Pokémon it shows
// and announces confident answers. With -image it classifies one picture
// and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-pokedex/internal/config"
	"github.com/teslashibe/go-pokedex/internal/log"
	"github.com/teslashibe/go-pokedex/pkg/app"
	"github.com/teslashibe/go-pokedex/pkg/camera/opencv"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before the environment is read")
	image := flag.String("image", "", "Classify one image (path or URL) and exit")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	noWeb := flag.Bool("no-web", false, "Disable the web dashboard")
	port := flag.String("port", "", "Web dashboard port (overrides WEB_PORT)")
	model := flag.String("model", "", "Gemini model (overrides GEMINI_MODEL)")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Reading %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *model != "" {
		cfg.Gemini.Model = *model
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := app.New(cfg, log.L(), app.WithCamera(opencv.Open))
	if err := a.Init(ctx); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	if *image != "" {
		result, err := a.ClassifyImage(ctx, *image)
		if err != nil {
			logger.Error("classification failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s #%d (%.0f%%)\n", result.Name, result.Number, result.Probability*100)
		return
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		os.Exit(1)
	}
}
