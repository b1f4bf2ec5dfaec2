package main

import (
	"flag"

	"sketch-judge/internal/config"
	"sketch-judge/internal/db"
	"sketch-judge/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	filePath := flag.String("file", "prompts.csv", "path to a category,text prompts csv")
	flag.Parse()

	dotenvErr := config.LoadDotEnv(".env")
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	if dotenvErr != nil {
		log.Warn().Err(dotenvErr).Msg("failed to load .env")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	loaded, err := db.LoadPromptSuggestions(conn, *filePath)
	if err != nil {
		log.Fatal().Err(err).Int("loaded", loaded).Str("file", *filePath).Msg("failed to load prompts")
	}
	log.Info().Int("loaded", loaded).Str("file", *filePath).Msg("prompt suggestions loaded")
}
