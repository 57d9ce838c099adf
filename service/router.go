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

// Package service assembles the HTTP handlers into one gin engine.
package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/sweeper"
	"github.com/fawa-io/tablestat/service/analysis"
	"github.com/fawa-io/tablestat/service/page"
)

// NewRouter returns an engine serving the pages and the analysis routes.
// Every request first gives the sweeper a chance to run.
func NewRouter(sw *sweeper.Sweeper, pages *page.Handler, analyses *analysis.Handler) (*gin.Engine, error) {
	tmpl, err := page.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(RequestLogger(), gin.Recovery(), sw.Middleware())

	pages.Register(r)
	analyses.Register(r)
	r.NoRoute(func(c *gin.Context) {
		page.RenderError(c, http.StatusNotFound, "Page not found.")
	})
	return r, nil
}

// RequestLogger logs one line per request through fwlog.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= http.StatusInternalServerError:
			fwlog.Errorf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, status, latency)
		case status >= http.StatusBadRequest:
			fwlog.Warnf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, status, latency)
		default:
			fwlog.Debugf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, status, latency)
		}
	}
}
