package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"

	"go.uber.org/zap"

	"pharmacy-pos/internal/adapters/cli"
	"pharmacy-pos/internal/adapters/repl"
	webAdapter "pharmacy-pos/internal/adapters/web"
	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/config"
	"pharmacy-pos/internal/db"
	"pharmacy-pos/internal/logger"
	"pharmacy-pos/internal/store"
)

// Usage:
//
//	app                                  interactive cashier terminal
//	app migrate [up|down|version|<n>]    schema migrations (postgres)
//	app token <cashier-id> [name]        issue a cashier API token
//	app <command> ...                    one-shot command, see cli.Run
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// The terminal owns stdout; logs go to stderr unless a file is configured.
	out := cfg.Log.Output
	if out == "" || out == "stdout" {
		out = "stderr"
	}
	zl, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: "console", Output: out})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			if err := runMigrate(cfg, zl, args[1:]); err != nil {
				zl.Fatal("migrate", zap.Error(err))
			}
			return
		case "token":
			if len(args) < 2 {
				log.Fatal("Usage: app token <cashier-id> [name]")
			}
			name := args[1]
			if len(args) > 2 {
				name = args[2]
			}
			token, err := webAdapter.IssueToken(cfg.JWT.Secret, cfg.JWT.Issuer, args[1], name, cfg.JWT.TTL)
			if err != nil {
				log.Fatalf("token: %v", err)
			}
			fmt.Println(token)
			return
		}
	}

	repo, closeStore, err := store.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("store", zap.Error(err))
	}
	defer closeStore()
	svc := app.NewAppService(repo, cfg.Session.IdleTTL, zl)

	if len(args) > 0 {
		if err := cli.Run(ctx, svc, args, os.Stdout); err != nil {
			if errors.Is(err, cli.ErrUsage) {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			log.Fatalf("%s: %v", args[0], err)
		}
		return
	}

	cashier := repl.Cashier{ID: os.Getenv("POS_CASHIER_ID"), Name: os.Getenv("POS_CASHIER_NAME")}
	if cashier.ID == "" {
		cashier.ID = "terminal"
	}
	if cashier.Name == "" {
		cashier.Name = cashier.ID
	}
	repl.Run(ctx, svc, bufio.NewReader(os.Stdin), cashier)
}

func runMigrate(cfg *config.Config, zl *zap.Logger, args []string) error {
	if cfg.Database.URL == "" {
		return errors.New("database url is not set (POS_DATABASE_URL or DATABASE_URL)")
	}
	if len(args) == 0 || args[0] == "up" {
		return store.Migrate(cfg.Database.URL, zl)
	}

	m, err := db.NewMigrator(cfg.Database.URL, zl.Named("migrate"))
	if err != nil {
		return err
	}
	defer m.Close()

	switch args[0] {
	case "down":
		return m.Down()
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("unknown migrate command %q", args[0])
	}
	return m.Steps(n)
}
