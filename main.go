// Copyright 2025 The fawa Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawa-io/tablestat/pkg/analysis"
	"github.com/fawa-io/tablestat/pkg/config"
	"github.com/fawa-io/tablestat/pkg/cors"
	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/metrics"
	"github.com/fawa-io/tablestat/pkg/storage"
	"github.com/fawa-io/tablestat/pkg/sweeper"
	"github.com/fawa-io/tablestat/pkg/util"
	"github.com/fawa-io/tablestat/service"
	analysissvc "github.com/fawa-io/tablestat/service/analysis"
	"github.com/fawa-io/tablestat/service/page"
)

func main() {
	if err := config.InitConfig(); err != nil {
		fwlog.Fatalf("Failed to initialize configuration: %v", err)
	}
	cfg := config.Get()

	for _, dir := range []string{cfg.DatasetStorageDir, cfg.ResultStorageDir} {
		if !util.Exist(dir) {
			if err := util.CreateDir(dir); err != nil {
				fwlog.Fatal(err)
			}
		}
	}

	reg := metrics.NewRegistry()
	datasets := storage.NewDatasetStore(cfg.DatasetStorageDir, storage.WithMetrics(reg))
	results := storage.NewResultStore(cfg.ResultStorageDir, storage.WithMetrics(reg))

	sw := sweeper.New(cfg.TTL(), cfg.CleanupInterval(), reg, datasets, results)
	sw.RunNow()

	pageHdr := page.NewHandler(cfg.ChangelogPath, cfg.TTL(), cfg.MaxContentLengthMB, reg)
	analysisHdr := &analysissvc.Handler{
		Datasets:           datasets,
		Results:            results,
		Engine:             analysis.NewAdapter(analysis.NewExecRunner(cfg.AnalysisCommand), reg),
		TTL:                cfg.TTL(),
		MaxContentLengthMB: cfg.MaxContentLengthMB,
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := service.NewRouter(sw, pageHdr, analysisHdr)
	if err != nil {
		fwlog.Fatalf("Failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.NewCORS(cfg.AllowedOrigins).Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fwlog.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fwlog.Errorf("Server shutdown error: %v", err)
		}

		fwlog.Info("Server shutdown complete")
		os.Exit(0)
	}()

	fwlog.Infof("Server starting on %v (datasets in %s, results in %s, ttl %v)",
		cfg.Addr, cfg.DatasetStorageDir, cfg.ResultStorageDir, cfg.TTL())

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		if util.Exist(cfg.CertFile) && util.Exist(cfg.KeyFile) {
			fwlog.Infof("Starting HTTPS server with certificates: %s, %s", cfg.CertFile, cfg.KeyFile)
			if err := srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fwlog.Fatalf("Failed to start HTTPS server: %v", err)
			}
			return
		}
		fwlog.Warnf("Certificate files not found, falling back to HTTP mode")
	}

	fwlog.Infof("Starting HTTP server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fwlog.Fatalf("Failed to start HTTP server: %v", err)
	}
}
