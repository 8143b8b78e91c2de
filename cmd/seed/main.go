package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sahilchouksey/edu-materials-api/config"
	"github.com/sahilchouksey/edu-materials-api/database"
	"github.com/sahilchouksey/edu-materials-api/utils/logger"
	"go.uber.org/zap"
)

func main() {
	grantModerator := flag.String("grant-moderator", "", "add the user with this email to the moderators group and exit")
	flag.Parse()

	if err := run(*grantModerator); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(grantModerator string) error {
	if err := config.LoadENV(); err != nil {
		return err
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	log, err := logger.New(env.GoEnv)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := database.StartGORM(env, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	seeder := database.NewSeeder(store.DB(), log)

	if grantModerator != "" {
		return seeder.GrantModerator(grantModerator)
	}

	if err := seeder.SeedAll(); err != nil {
		return err
	}

	log.Info("demo accounts ready",
		zap.Strings("emails", []string{"admin@example.com", "moderator@example.com", "user@example.com"}))
	return nil
}
