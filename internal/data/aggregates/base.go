package aggregates

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/neurobridge-mastery/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

var tracer = otel.Tracer("github.com/yungbote/neurobridge-mastery/internal/data/aggregates")

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	// Retry nil means DefaultRetryPolicy. A zero MaxRetries disables retries.
	Retry *RetryPolicy
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Retry == nil {
		p := DefaultRetryPolicy()
		d.Retry = &p
	}
	return d
}

// RetryPolicy bounds how often a write is re-run after a conflict or a
// retryable storage failure. MaxRetries 0 disables retries.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
}

// backoff is exponential in the retry number with full jitter.
func (p RetryPolicy) backoff(retry int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << min(max(retry-1, 0), 16)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

// executeWrite runs fn in one transaction and maps the outcome to an aggregate error.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	err := deps.Runner.InTx(ctx, fn)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

// executeWriteRetry re-runs executeWrite in a fresh transaction on conflicts
// and retryable failures. Exhausting the budget surfaces a conflict.
func executeWriteRetry(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) (int, error) {
	deps = deps.withDefaults()
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	retries := 0
	for {
		err := executeWrite(ctx, deps, op, fn)
		if err == nil || !domainagg.IsTransient(err) || ctx.Err() != nil {
			endSpan(span, retries, err)
			return retries, err
		}
		if retries >= deps.Retry.MaxRetries {
			if retries > 0 {
				err = domainagg.NewError(domainagg.CodeConflict, op, fmt.Sprintf("gave up after %d retries", retries), err)
			}
			endSpan(span, retries, err)
			return retries, err
		}
		retries++
		wait := deps.Retry.backoff(retries)
		if deps.Log != nil {
			deps.Log.Debug("retrying aggregate write", "op", op, "retry", retries, "wait_ms", wait.Milliseconds(), "cause", string(domainagg.CodeOf(err)))
		}
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				err = MapError(op, ctx.Err())
				endSpan(span, retries, err)
				return retries, err
			case <-t.C:
			}
		}
	}
}

func endSpan(span trace.Span, retries int, err error) {
	span.SetAttributes(
		attribute.Int("aggregate.retries", retries),
		attribute.String("aggregate.status", aggregateErrorStatus(err)),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
