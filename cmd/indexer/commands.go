package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/cache"
	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/httpclient"
	"github.com/castarchive/castarchive/internal/hub"
	"github.com/castarchive/castarchive/internal/ingest"
	"github.com/castarchive/castarchive/internal/neynar"
	"github.com/castarchive/castarchive/internal/render"
	"github.com/castarchive/castarchive/internal/retry"
	"github.com/castarchive/castarchive/pkg/logging"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		fid        uint64
		skipRender bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch an account's casts and replies, archive their threads, then render",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if fid == 0 {
				fid = a.cfg.Ingest.FID
			}
			if fid == 0 {
				return fmt.Errorf("no fid given: pass --fid or set CASTARCHIVE_FID")
			}
			if err := a.cfg.RequireAPIKey(); err != nil {
				return err
			}

			store, err := cache.Open(&a.cfg.Cache)
			if err != nil {
				return fmt.Errorf("failed to open response cache: %w", err)
			}
			defer store.Close()

			database, err := db.New(&a.cfg.Database, a.cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer database.Close()
			repo := db.NewRepository(database.DB)

			policy := retry.FromConfig(&a.cfg.Retry)
			timeout := httpclient.WithTimeout(a.cfg.Ingest.RequestTimeout)

			client, err := neynar.NewClient(&a.cfg.Neynar, timeout)
			if err != nil {
				return err
			}
			feeds := neynar.NewService(client, store, policy, &a.cfg.Neynar, logging.WithComponent("neynar"))

			hubClient, err := hub.NewClient(&a.cfg.Hub, policy, timeout)
			if err != nil {
				return err
			}
			traverser := hub.NewTraverser(hubClient, logging.WithComponent("traverse"))

			tagger := ingest.NewTagger(repo, logging.WithComponent("tagger"))
			hydrator := ingest.NewHydrator(repo, feeds, tagger, a.cfg.Ingest.HydrateConcurrency, logging.WithComponent("hydrator"))
			pipeline := ingest.NewPipeline(feeds, traverser, tagger, hydrator, logging.WithComponent("ingest"))

			stats, err := pipeline.Run(ctx, fid)
			if err != nil {
				return err
			}
			a.logger.Info("Ingestion finished",
				zap.String("run_id", stats.RunID),
				zap.Int("casts", stats.Casts),
				zap.Int("replies", stats.Replies),
				zap.Int("failed", stats.Failed))

			if skipRender {
				return nil
			}
			return renderArchive(cmd, a, repo)
		},
	}

	cmd.Flags().Uint64Var(&fid, "fid", 0, "account to archive (default CASTARCHIVE_FID)")
	cmd.Flags().BoolVar(&skipRender, "no-render", false, "skip writing markdown after ingestion")
	return cmd
}

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Write the archive out as markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.New(&a.cfg.Database, a.cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer database.Close()
			return renderArchive(cmd, a, db.NewRepository(database.DB))
		},
	}
}

func renderArchive(cmd *cobra.Command, a *app, repo *db.Repository) error {
	r := render.NewRenderer(afero.NewOsFs(), a.cfg.Ingest.OutDir, repo, logging.WithComponent("render"))
	users, casts, err := r.Render(cmd.Context())
	if err != nil {
		return err
	}
	a.logger.Info("Render finished",
		zap.String("out", a.cfg.Ingest.OutDir),
		zap.Int("users_written", users.Written),
		zap.Int("casts_written", casts.Written),
		zap.Int("skipped", users.Skipped+casts.Skipped))
	return nil
}

func newTraverseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "traverse <fid> <hash>",
		Short: "Print every message reachable from a cast on the hub, as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid fid %q: %w", args[0], err)
			}

			hubClient, err := hub.NewClient(&a.cfg.Hub, retry.FromConfig(&a.cfg.Retry), httpclient.WithTimeout(a.cfg.Ingest.RequestTimeout))
			if err != nil {
				return err
			}
			nodes, err := hub.NewTraverser(hubClient, logging.WithComponent("traverse")).Traverse(cmd.Context(), fid, args[1])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		},
	}
}
