package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
)

type queryStartKey struct{}

type queryInfo struct {
	start time.Time
	sql   string
}

// SlowQueryTracer records every query's duration and logs the ones above
// the threshold.
type SlowQueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration
}

// NewSlowQueryTracer returns a tracer; a zero threshold means 100ms.
func NewSlowQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &SlowQueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryInfo{start: time.Now(), sql: data.SQL})
}

func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	info, ok := ctx.Value(queryStartKey{}).(queryInfo)
	if !ok {
		return
	}

	duration := time.Since(info.start)
	operation, table := describeSQL(info.sql)
	metrics.RecordDBQueryDuration(operation, table, duration)

	if duration <= t.slowThreshold {
		return
	}

	sqlTruncated := info.sql
	if len(sqlTruncated) > 200 {
		sqlTruncated = sqlTruncated[:200] + "..."
	}

	logger.WithTrace(ctx, t.logger).Warn("slow-query",
		zap.String("sql", sqlTruncated),
		zap.Duration("took", duration),
		zap.String("command_tag", data.CommandTag.String()),
	)
	metrics.IncrementSlowQuery(operation)
}

// describeSQL returns a coarse (operation, table) pair for metric labels.
func describeSQL(sql string) (string, string) {
	fields := strings.Fields(strings.ToLower(sql))
	if len(fields) == 0 {
		return "unknown", "unknown"
	}
	op := fields[0]
	var marker string
	switch op {
	case "select", "delete":
		marker = "from"
	case "insert":
		marker = "into"
	case "update":
		if len(fields) > 1 {
			return op, strings.Trim(fields[1], `"`)
		}
		return op, "unknown"
	default:
		return op, "unknown"
	}
	for i, f := range fields {
		if f == marker && i+1 < len(fields) {
			tbl, _, _ := strings.Cut(fields[i+1], "(")
			return op, strings.Trim(tbl, `"`)
		}
	}
	return op, "unknown"
}
