package aggregates

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/neurobridge-mastery/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

// TxRunner opens the write boundary an aggregate owns. fn must not retain dbc
// after it returns.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	ctx, span := tracer.Start(ctx, "aggregate.tx")
	defer span.End()
	if d := r.db.Dialector; d != nil {
		span.SetAttributes(attribute.String("db.system", d.Name()))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("db.tx.rolled_back", true))
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
