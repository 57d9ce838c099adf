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

// Package sweeper removes expired objects from the temporary stores.
//
// There is no timer: a sweep runs once at startup and afterwards only when
// a request arrives at least one interval after the previous run.
package sweeper

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/metrics"
)

// Store is anything that can drop its expired objects.
type Store interface {
	Name() string
	Sweep(ttl time.Duration) (int, error)
}

// Sweeper sweeps a fixed set of stores with a shared TTL.
type Sweeper struct {
	stores   []Store
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Registry

	mu      sync.Mutex
	lastRun time.Time
}

// New returns a sweeper that has never run.
func New(ttl, interval time.Duration, reg *metrics.Registry, stores ...Store) *Sweeper {
	return &Sweeper{
		stores:   stores,
		ttl:      ttl,
		interval: interval,
		metrics:  reg,
	}
}

// LastRun returns when the last sweep started, or the zero time.
func (s *Sweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// RunNow sweeps every store regardless of the interval and returns the
// number of objects deleted per store name.
func (s *Sweeper) RunNow() map[string]int {
	now := time.Now()
	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
	return s.sweep()
}

// MaybeRun sweeps when at least one interval has passed since the last
// run. It reports whether a sweep happened. The run is claimed before
// sweeping so concurrent callers do not start a second one.
func (s *Sweeper) MaybeRun(now time.Time) bool {
	s.mu.Lock()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.interval {
		s.mu.Unlock()
		return false
	}
	s.lastRun = now
	s.mu.Unlock()

	s.sweep()
	return true
}

// Middleware triggers MaybeRun before every request.
func (s *Sweeper) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.MaybeRun(time.Now())
		c.Next()
	}
}

func (s *Sweeper) sweep() map[string]int {
	counts := make([]int, len(s.stores))
	errs := make([]error, len(s.stores))
	var g errgroup.Group
	for i, st := range s.stores {
		i, st := i, st
		g.Go(func() error {
			n, err := st.Sweep(s.ttl)
			if err != nil {
				errs[i] = fmt.Errorf("%s store: %w", st.Name(), err)
				return errs[i]
			}
			counts[i] = n
			return nil
		})
	}
	// A failing store does not stop the others; every failure is reported
	// once the group is done.
	if err := g.Wait(); err != nil {
		fwlog.Errorf("sweep failed: %v", errors.Join(errs...))
	}

	s.metrics.Inc(metrics.SweepRuns, nil)
	out := make(map[string]int, len(s.stores))
	for i, st := range s.stores {
		out[st.Name()] = counts[i]
		if counts[i] > 0 {
			fwlog.Infof("sweep removed %d expired object(s) from %s store", counts[i], st.Name())
		}
	}
	return out
}
