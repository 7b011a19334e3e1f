package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/nftstate/internal/api"
	"github.com/mtlprog/nftstate/internal/chain"
	"github.com/mtlprog/nftstate/internal/config"
	"github.com/mtlprog/nftstate/internal/currency"
	"github.com/mtlprog/nftstate/internal/export"
	"github.com/mtlprog/nftstate/internal/snapshot"
	"github.com/mtlprog/nftstate/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "nftstate",
		Usage: "NFT ownership and marketplace state reconciliation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", EnvVars: []string{"NFTSTATE_ENV_FILE"}, Usage: "dotenv file loaded before reading configuration"},
		},
		Before: func(c *cli.Context) error {
			config.LoadDotEnv(c.String("env-file"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background workers",
				Action: serve,
			},
			{
				Name:      "resolve",
				Usage:     "print the reconciled holdings of a wallet",
				ArgsUsage: "<wallet>",
				Action:    resolve,
			},
			{
				Name:   "floor",
				Usage:  "print floor and listing count of every collection",
				Action: floor,
			},
			{
				Name:  "export",
				Usage: "write a stored market snapshot to an xlsx workbook",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "market.xlsx", Usage: "output file"},
					&cli.StringFlag{Name: "date", Usage: "snapshot date (YYYY-MM-DD), latest when empty"},
				},
				Action: exportXLSX,
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func serve(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	var snapshots api.SnapshotService
	if cfg.DatabaseURL != "" {
		pool, err := a.openDatabase(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		st := a.newStorage(ctx, pool)
		snapshots = st.snapshots

		quoteWorker := worker.NewQuoteWorker(st.quotes, cfg.QuoteWorkerInterval, a.metrics)
		go quoteWorker.Run(ctx)

		reportWorker := worker.NewReportWorker(st.snapshots, cfg.MarketWorkerInterval, a.metrics,
			worker.HookFunc(func(_ context.Context, snap snapshot.MarketSnapshot) error {
				a.metrics.ObserveSnapshot(snap)
				return nil
			}),
			st.exporter,
		)
		go reportWorker.Run(ctx)
	} else {
		slog.Warn("DATABASE_URL not set, snapshots and quotes are disabled")
	}

	if cfg.RPCWebSocketURL != "" {
		watcher := worker.NewMarketWatcher(chain.NewLogSubscriber(cfg.RPCWebSocketURL), a.marketplaceAddress(), a.metrics)
		go watcher.Run(ctx)
	}

	go a.metadata.LoadAll(ctx, a.collections)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints are unprotected")
	}

	srv := api.NewServer(cfg.HTTPPort, a.handler(snapshots), a.metrics, cfg.AdminAPIKey)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

func resolve(c *cli.Context) error {
	wallet := c.Args().First()
	if wallet == "" {
		return cli.Exit("wallet address is required", 2)
	}

	a, err := newApp(config.Load())
	if err != nil {
		return err
	}
	holdings, err := a.resolver.Resolve(c.Context, wallet, a.collections)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(holdings)
}

func floor(c *cli.Context) error {
	a, err := newApp(config.Load())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tLISTED\tFLOOR\tVOLUME")
	for _, col := range a.collections {
		m, err := a.market.Market(c.Context, col.Address)
		if err != nil {
			slog.Warn("failed to read market", "collection", col.Name, "error", err)
			fmt.Fprintf(tw, "%s\t-\t-\t-\n", col.Name)
			continue
		}
		floorStr := "-"
		if m.Floor != nil {
			floorStr = currency.DisplayA(*m.Floor)
		}
		volumeStr := "-"
		if m.Volume != nil {
			volumeStr = currency.DisplayA(m.Volume.EquivalentA)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", col.Name, m.ListedCount, floorStr, volumeStr)
	}
	return tw.Flush()
}

func exportXLSX(c *cli.Context) error {
	ctx := c.Context
	a, err := newApp(config.Load())
	if err != nil {
		return err
	}
	pool, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := snapshot.NewPgRepository(pool)
	var stored *snapshot.Snapshot
	if d := c.String("date"); d != "" {
		date, perr := time.Parse(time.DateOnly, d)
		if perr != nil {
			return cli.Exit("invalid --date, expected YYYY-MM-DD", 2)
		}
		stored, err = repo.GetByDate(ctx, date)
	} else {
		stored, err = repo.GetLatest(ctx)
	}
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	snap, err := stored.Decode()
	if err != nil {
		return err
	}

	f, err := os.Create(c.String("out"))
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	if err := export.NewService(repo, export.NewXLSXWriter(f)).Export(ctx, snap); err != nil {
		return err
	}
	slog.Info("exported snapshot", "date", snap.Date.Format(time.DateOnly), "file", c.String("out"))
	return nil
}
