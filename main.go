package main

import (
	"log"
	"net/http"

	"bigbio/config"
	"bigbio/config/database"
	"bigbio/internal/matcher"
	"bigbio/internal/tagsuggest"
	"bigbio/pkg/logger"
	"bigbio/router"
	"bigbio/socket"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Sugar.Fatalf("Failed to apply schema: %v", err)
	}

	tags := tagsuggest.Default()
	if cfg.TagRulesFile != "" {
		if tags, err = tagsuggest.LoadFile(cfg.TagRulesFile); err != nil {
			logger.Sugar.Fatalf("Failed to load tag rules: %v", err)
		}
		logger.Sugar.Infof("Loaded tag rules from %s", cfg.TagRulesFile)
	}

	hub := socket.NewHub(db)
	go hub.Run()

	handler := router.Setup(router.Deps{
		DB:         db,
		Hub:        hub,
		Matcher:    matcher.New(cfg.DuplicateThreshold, cfg.FuzzyMatchLimit),
		Tags:       tags,
		JWTSecret:  cfg.JWTSecret,
		CORSOrigin: cfg.CORSOrigin,
	})

	logger.Sugar.Infow("BigBio backend listening",
		"addr", cfg.Address(),
		"duplicate_threshold", cfg.DuplicateThreshold,
		"fuzzy_match_limit", cfg.FuzzyMatchLimit,
	)
	if err := http.ListenAndServe(cfg.Address(), handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
