// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package cache

import "github.com/prometheus/client_golang/prometheus"

// metrics are the write-path counters a pipeline operator scrapes to
// watch ingest throughput. They are always allocated (never nil), but
// registration with a Prometheus registry is opt-in via Register.
type metrics struct {
	inserts prometheus.Counter
	updates prometheus.Counter
	deletes prometheus.Counter
	commits prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reccache", Name: "inserts_total", Help: "Records inserted.",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reccache", Name: "updates_total", Help: "Records updated.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reccache", Name: "deletes_total", Help: "Records deleted.",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reccache", Name: "commits_total", Help: "Write transactions committed.",
		}),
	}
}

// Register adds the cache's counters to reg. Safe to call with a nil
// registerer (e.g. in tests), in which case it is a no-op.
func (m *metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.inserts, m.updates, m.deletes, m.commits} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Register exposes the RwCache's metrics for external registration.
func (c *RwCache) Register(reg prometheus.Registerer) error { return c.metrics.Register(reg) }
