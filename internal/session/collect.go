package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/albertoperdomo2/llm-d-bench/internal/promql"
	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

// metricPlan is one configured metric resolved to its descriptor and
// query set. Descriptors and queries depend only on session config, so
// the plan is built once.
type metricPlan struct {
	name    string
	kind    catalog.Kind
	queries []promql.QuerySpec
}

func buildPlan(cfg Config, cat *catalog.Catalog, logger *zap.Logger) []metricPlan {
	plan := make([]metricPlan, 0, len(cfg.Metrics))
	for _, name := range cfg.Metrics {
		d, ok := cat.Lookup(name)
		if !ok {
			d = catalog.Infer(name)
			logger.Warn("metric not in catalog, kind inferred",
				zap.String("metric", name),
				zap.String("kind", string(d.Kind)))
		}
		plan = append(plan, metricPlan{
			name:    name,
			kind:    d.Kind,
			queries: promql.BuildQueries(d, cfg.Labels, cfg.RateWindow),
		})
	}
	return plan
}

// collect assembles one record: every planned metric in order, then the
// node samples. Queries run sequentially; a failed query contributes an
// absent value, never an error.
func (s *Session) collect(ctx context.Context) *telemetry.CollectionRecord {
	rec := telemetry.NewRecord(time.Now())
	for _, p := range s.plan {
		rec.AddMetric(p.name, s.collectMetric(ctx, p))
	}
	if s.sampler != nil {
		for _, sample := range s.sampler.Sample(ctx) {
			rec.AddNode(sample.Name, sample.Value)
		}
	}
	return rec
}

func (s *Session) collectMetric(ctx context.Context, p metricPlan) telemetry.MetricResult {
	if p.kind == catalog.KindHistogram {
		points := make([]telemetry.DistributionPoint, 0, len(p.queries))
		for _, q := range p.queries {
			points = append(points, telemetry.DistributionPoint{
				Label: q.Label,
				Value: s.executor.Execute(ctx, q.Query),
			})
		}
		return telemetry.Distribution(points)
	}
	return telemetry.Scalar(p.kind, s.executor.Execute(ctx, p.queries[0].Query))
}

func (s *Session) logTickSummary(tick int, rec *telemetry.CollectionRecord) {
	backendOK, backendTotal, nodeOK, nodeTotal := rec.Counts()
	s.logger.Info("collection complete",
		zap.Int("tick", tick),
		zap.Int("backend_ok", backendOK),
		zap.Int("backend_total", backendTotal),
		zap.Int("node_ok", nodeOK),
		zap.Int("node_total", nodeTotal))
	if backendTotal > 0 && backendOK == 0 {
		s.logger.Warn("no backend metrics collected this tick, check the backend URL, authentication, and metric names")
	}
}
