package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/imagec/engine/internal/commands"
	"github.com/imagec/engine/internal/config"
	"github.com/imagec/engine/internal/iosource"
	"github.com/imagec/engine/internal/job"
	"github.com/imagec/engine/internal/logging"
	"github.com/imagec/engine/internal/metrics"
	"github.com/imagec/engine/internal/plane"
	"github.com/imagec/engine/internal/settings"
	"github.com/imagec/engine/internal/sink"
)

var (
	runSettingsPath string
	runImagesDir    string
	runDBPath       string
	runControlAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan, execute and commit one analysis against a directory of images",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSettingsPath, "settings", "", "path to an AnalyzeSettings JSON document (required)")
	runCmd.Flags().StringVar(&runImagesDir, "images", "", "directory of PNG images to analyze (required)")
	runCmd.Flags().StringVar(&runDBPath, "db", "results.icdb", "path to write the result database")
	runCmd.Flags().StringVar(&runControlAddr, "control-addr", ":9090", "address the /metrics, /state and /stop endpoints listen on")
	_ = runCmd.MarkFlagRequired("settings")
	_ = runCmd.MarkFlagRequired("images")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log.Level, os.Stdout)

	rawSettings, err := os.ReadFile(runSettingsPath)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	s, err := settings.Parse(rawSettings)
	if err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}

	store, err := sink.Open(runDBPath)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer store.Close()

	images, err := discoverImages(runImagesDir)
	if err != nil {
		return fmt.Errorf("discover images: %w", err)
	}
	if len(images) == 0 {
		return fmt.Errorf("no PNG images found under %s", runImagesDir)
	}

	var progressCache job.ProgressCache
	if cfg.Redis.Enabled {
		progressCache = job.NewRedisProgressCache(redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr}), 0)
	}

	ctrl := job.New(job.Config{
		OpenSource: func(ctx context.Context, path string) (plane.Source, error) {
			base, err := iosource.Open(path)
			if err != nil {
				return nil, err
			}
			return plane.NewProjectingPlaneSource(base, nil), nil
		},
		Store:         store,
		Registry:      commands.NewRegistry(),
		Log:           log,
		ProgressCache: progressCache,
		Threads:       cfg.Threads.Max,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/state", controlStateHandler(ctrl))
	mux.HandleFunc("/stop", controlStopHandler(ctrl))
	controlServer := &http.Server{Addr: runControlAddr, Handler: mux}
	go func() {
		if err := controlServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("control server stopped", "error", err.Error())
		}
	}()
	defer controlServer.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, stopping run")
		ctrl.Stop()
	}()

	log.Info("starting run", "runId", string(ctrl.RunId()), "images", len(images))
	if err := ctrl.Start(context.Background(), images, s); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	ctrl.Wait()

	final := map[string]any{
		"runId":    ctrl.RunId(),
		"state":    ctrl.State(),
		"progress": ctrl.Progress(),
	}
	encoded, _ := json.MarshalIndent(final, "", "  ")
	fmt.Println(string(encoded))

	if ctrl.State() == job.StateFailed {
		for _, e := range ctrl.Errors() {
			log.Error("run error", "code", string(e.Code), "message", e.Message)
		}
		return fmt.Errorf("run failed")
	}
	return nil
}

func discoverImages(dir string) ([]job.ImageInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []job.ImageInput
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := iosource.Open(path)
		if err != nil {
			return nil, err
		}
		inv, err := src.Enumerate(context.Background(), path)
		if err != nil {
			return nil, err
		}
		out = append(out, job.ImageInput{Path: path, Inventory: inv})
	}
	return out, nil
}
