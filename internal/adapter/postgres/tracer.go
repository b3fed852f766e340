package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
)

// queryTracer records query latency and errors, labelled by statement verb
// to keep cardinality low.
type queryTracer struct {
	metrics *metrics.DatabaseMetrics
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	verb string
}

func newQueryTracer(m *metrics.DatabaseMetrics) *queryTracer {
	return &queryTracer{metrics: m}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), verb: statementVerb(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	t.metrics.QueryDuration.WithLabelValues(start.verb).Observe(time.Since(start.at).Seconds())
	if data.Err != nil {
		t.metrics.QueryErrors.WithLabelValues(start.verb).Inc()
	}
}

// statementVerb returns the lowercased first keyword of sql.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	verb := strings.ToLower(fields[0])
	if len(verb) > 20 {
		verb = verb[:20]
	}
	return verb
}
