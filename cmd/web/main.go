package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/op-knockout/internal/config"
	"github.com/AdamBeresnev/op-knockout/internal/db"
	"github.com/AdamBeresnev/op-knockout/internal/metrics"
	"github.com/AdamBeresnev/op-knockout/internal/service"
	"github.com/AdamBeresnev/op-knockout/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "knockout",
		Usage: "single elimination tournament server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"KNOCKOUT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads config, installs the default logger and opens the database.
func setup(c *cli.Context) (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	database, err := db.InitDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, database, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "apply migrations and run the HTTP API",
		Action: func(c *cli.Context) error {
			cfg, database, err := setup(c)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.RunMigrations(database.DB, cfg.Database.Driver, cfg.Database.MigrationsDir); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			opts := service.Options{
				Logger:  slog.Default(),
				Metrics: metrics.New(registry),
			}
			stores := service.NewStores(database)
			participants := service.NewParticipantRegistry(store.NewTeamStore(database), cfg.Teams.LookupConcurrency, opts.Logger)
			engine := service.NewBracketService(database, stores, participants, opts)
			tournaments := service.NewTournamentService(database, stores, engine, opts)

			server := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           newRouter(tournaments, registry),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("server starting", "addr", cfg.HTTP.Addr, "driver", cfg.Database.Driver)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					cfg, database, err := setup(c)
					if err != nil {
						return err
					}
					defer database.Close()

					if err := db.RunMigrations(database.DB, cfg.Database.Driver, cfg.Database.MigrationsDir); err != nil {
						return err
					}
					slog.Info("migrations applied", "dir", cfg.Database.MigrationsDir)
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					cfg, database, err := setup(c)
					if err != nil {
						return err
					}
					defer database.Close()

					steps := c.Int("steps")
					if err := db.RollbackMigrations(database.DB, cfg.Database.Driver, cfg.Database.MigrationsDir, steps); err != nil {
						return err
					}
					slog.Info("migrations rolled back", "steps", steps)
					return nil
				},
			},
		},
	}
}
