package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// OutOfStockMessage is shown to the shopper when an add is rejected for
// insufficient stock.
const OutOfStockMessage = "Product is out of stock..."

// ErrUnavailable is returned by Adder.Add for a product whose last-known stock
// is zero. Such a product offers no add-to-cart action at all.
var ErrUnavailable = errors.New("product is not available for purchase")

var (
	errEmptyStock        = errors.New("empty stock response")
	errInsufficientStock = errors.New("insufficient stock")
)

// StockReader performs the authoritative stock read by product identifier.
type StockReader interface {
	ProductByID(ctx context.Context, id string) (*product.Product, error)
}

// Status is the result kind of an add-to-cart attempt.
type Status int

const (
	// StatusAccepted means the line was upserted into the cart.
	StatusAccepted Status = iota + 1
	// StatusOutOfStock means authoritative stock is below the desired quantity.
	StatusOutOfStock
	// StatusStockUnknown means the stock read failed. The add is rejected
	// because accepting on unknown stock could exceed inventory.
	StatusStockUnknown
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusOutOfStock:
		return "out_of_stock"
	case StatusStockUnknown:
		return "stock_unknown"
	default:
		return "unknown"
	}
}

// Outcome is the accept/reject result surfaced to the shopper.
type Outcome struct {
	Status Status
	// Line is the upserted line, set only when accepted.
	Line Line
	// Message is the user-facing rejection reason, empty when accepted.
	Message string
}

// Accepted reports whether the cart was updated.
func (o Outcome) Accepted() bool {
	return o.Status == StatusAccepted
}

// AdderConfig holds optional collaborators of Adder.
type AdderConfig struct {
	// ErrorMessage maps a failed stock read into a display string.
	// Defaults to err.Error().
	ErrorMessage   func(error) string
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Adder adds products to the cart after re-validating stock.
type Adder struct {
	stock    StockReader
	store    *Store
	errMsg   func(error) string
	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// NewAdder creates an Adder that reads stock from stock and writes to store.
func NewAdder(stock StockReader, store *Store, cfg AdderConfig) (*Adder, error) {
	if cfg.ErrorMessage == nil {
		cfg.ErrorMessage = func(err error) string { return err.Error() }
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}

	const scope = "github.com/xenking/kart-storefront/internal/domain/cart"
	outcomes, err := cfg.MeterProvider.Meter(scope).Int64Counter("storefront.cart.add",
		metric.WithDescription("Add-to-cart attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create outcome counter")
	}

	return &Adder{
		stock:    stock,
		store:    store,
		errMsg:   cfg.ErrorMessage,
		tracer:   cfg.TracerProvider.Tracer(scope),
		outcomes: outcomes,
	}, nil
}

// Add puts one more unit of p into the cart.
//
// The product's current stock is read by identifier first. Then, in one store
// update, the desired quantity is taken as the existing line's quantity plus
// one (or one) and the line is upserted only if the fresh stock covers it, so
// concurrent adds and removals are never lost. Nothing reserves the stock, so
// it may change right after the check.
//
// A non-nil error is returned only for ErrUnavailable; every other failure is
// a rejected Outcome.
func (a *Adder) Add(ctx context.Context, p product.Product) (Outcome, error) {
	if !p.InStock() {
		return Outcome{}, ErrUnavailable
	}

	ctx, span := a.tracer.Start(ctx, "cart.Add", trace.WithAttributes(
		attribute.String("product.id", p.ID),
	))
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("product_id", p.ID))

	current, err := a.stock.ProductByID(ctx, p.ID)
	if err == nil && current == nil {
		err = errEmptyStock
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock read failed")
		lg.Warn("Stock re-check failed", zap.Error(err))
		return a.finish(ctx, Outcome{Status: StatusStockUnknown, Message: a.errMsg(err)}), nil
	}

	var (
		desired int
		line    Line
	)
	_, err = a.store.Update(func(s State) (Action, error) {
		desired = 1
		if existing, ok := s.Line(p.ID); ok {
			desired = existing.Quantity + 1
		}
		if current.CountInStock < desired {
			return nil, errInsufficientStock
		}
		// Display fields come from the loaded product, stock from the fresh read.
		snapshot := p
		snapshot.CountInStock = current.CountInStock
		line = NewLine(snapshot, desired)
		return AddItem{Line: line}, nil
	})
	span.SetAttributes(attribute.Int("cart.desired_quantity", desired))
	if err != nil {
		lg.Info("Add rejected: insufficient stock",
			zap.Int("desired", desired),
			zap.Int("in_stock", current.CountInStock),
		)
		return a.finish(ctx, Outcome{Status: StatusOutOfStock, Message: OutOfStockMessage}), nil
	}

	lg.Debug("Added to cart", zap.Int("quantity", desired))
	return a.finish(ctx, Outcome{Status: StatusAccepted, Line: line}), nil
}

func (a *Adder) finish(ctx context.Context, o Outcome) Outcome {
	a.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", o.Status.String())))
	return o
}
