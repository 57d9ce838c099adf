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

package page

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/metrics"
)

const changelogMissing = template.HTML("<p>Changelog not found.</p>")

// Handler serves the pages that do not touch the stores.
type Handler struct {
	ChangelogPath      string
	TTL                time.Duration
	MaxContentLengthMB int
	Metrics            *metrics.Registry

	markdown goldmark.Markdown
}

func NewHandler(changelogPath string, ttl time.Duration, maxContentLengthMB int, reg *metrics.Registry) *Handler {
	return &Handler{
		ChangelogPath:      changelogPath,
		TTL:                ttl,
		MaxContentLengthMB: maxContentLengthMB,
		Metrics:            reg,
		markdown:           goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Register mounts the page routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.Home)
	r.GET("/about", h.About)
	r.GET("/changelog", h.Changelog)
	r.GET("/health", h.Health)
	r.GET("/metrics", h.MetricsText)
}

func (h *Handler) Home(c *gin.Context) {
	RenderHome(c, http.StatusOK, HomeView{MaxContentLengthMB: h.MaxContentLengthMB})
}

func (h *Handler) About(c *gin.Context) {
	c.HTML(http.StatusOK, "about.html", gin.H{"TTL": h.TTL.String()})
}

// Changelog renders the Markdown changelog, including GFM tables.
func (h *Handler) Changelog(c *gin.Context) {
	c.HTML(http.StatusOK, "changelog.html", gin.H{"Changelog": h.renderChangelog()})
}

func (h *Handler) renderChangelog() template.HTML {
	src, err := os.ReadFile(h.ChangelogPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fwlog.Warnf("read changelog %s: %v", h.ChangelogPath, err)
		}
		return changelogMissing
	}
	var buf bytes.Buffer
	if err := h.markdown.Convert(src, &buf); err != nil {
		fwlog.Warnf("render changelog %s: %v", h.ChangelogPath, err)
		return changelogMissing
	}
	// The changelog ships with the server and is trusted.
	return template.HTML(buf.String())
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MetricsText exposes the counters in the Prometheus exposition format.
func (h *Handler) MetricsText(c *gin.Context) {
	promhttp.HandlerFor(h.Metrics.Gatherer(), promhttp.HandlerOpts{
		ErrorLog: promLogger{},
	}).ServeHTTP(c.Writer, c.Request)
}

// promLogger routes promhttp errors to fwlog.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	fwlog.Error(v...)
}
