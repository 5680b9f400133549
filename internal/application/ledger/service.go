package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/limetech/storeledger/internal/domain/catalog"
	domoutbox "github.com/limetech/storeledger/internal/domain/outbox"
	"github.com/limetech/storeledger/internal/observability"
	"github.com/limetech/storeledger/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "ledger-service"
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond

	// DefaultWarrantyWindow is the number of clock ticks after purchase during
	// which a return is accepted.
	DefaultWarrantyWindow uint64 = 100
)

// Service is the inventory ledger: a single state machine over products and
// ownership records. Every mutating operation runs under whole-operation
// mutual exclusion, samples the clock once, and emits exactly one domain
// event on success. Global locking is chosen over per-product locking;
// throughput is not a concern for a single administrator store.
type Service struct {
	mu sync.Mutex

	products  catalog.Repository
	access    AccessPolicy
	clock     Clock
	treasury  Treasury
	publisher domoutbox.Publisher
	warranty  uint64

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

// NewService wires the ledger with its collaborators. A zero warrantyWindow
// selects DefaultWarrantyWindow.
func NewService(
	products catalog.Repository,
	access AccessPolicy,
	clock Clock,
	treasury Treasury,
	publisher domoutbox.Publisher,
	warrantyWindow uint64,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	if warrantyWindow == 0 {
		warrantyWindow = DefaultWarrantyWindow
	}
	metricsProvider := tel.Metrics()
	return &Service{
		products:     products,
		access:       access,
		clock:        clock,
		treasury:     treasury,
		publisher:    publisher,
		warranty:     warrantyWindow,
		log:          tel.Logger().With(observability.F("service", serviceName)),
		tracer:       tel.Tracer(),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

// WarrantyWindow reports the configured return window in ticks.
func (s *Service) WarrantyWindow() uint64 { return s.warranty }

// Admin reports the administrator identity of this ledger.
func (s *Service) Admin() catalog.Address { return s.access.Admin() }

type AddProductInput struct {
	Name     string
	Quantity uint64
	Price    uint64
}

// AddProduct registers a new product under a fresh sequential id.
// Administrator only. Duplicate names are rejected, never merged.
func (s *Service) AddProduct(ctx context.Context, caller catalog.Address, in AddProductInput) (_ uint64, err error) {
	ctx, finish := s.instrument(ctx, "ledger.add_product", "AddProduct",
		attribute.String("caller", string(caller)),
		attribute.String("product.name", in.Name),
	)
	defer func() { finish(ctx, err) }()

	if !s.access.IsAdmin(caller) {
		return 0, catalog.ErrUnauthorized
	}

	product, err := catalog.NewProduct(in.Name, in.Quantity, in.Price)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, lookupErr := s.products.FindByName(ctx, in.Name); lookupErr == nil {
		return 0, catalog.ErrProductExists
	} else if !errors.Is(lookupErr, catalog.ErrProductNotFound) {
		return 0, fmt.Errorf("ledger: name lookup: %w", lookupErr)
	}

	if err = s.products.Insert(ctx, product); err != nil {
		return 0, fmt.Errorf("ledger: insert product: %w", err)
	}

	s.publish(ctx, catalog.NewProductAddedEvent(product, s.clock.Now()))
	return product.ID, nil
}

// AdjustQuantity increases or decreases the stock of a product.
// Administrator only. A decrease may not exceed the current stock.
func (s *Service) AdjustQuantity(ctx context.Context, caller catalog.Address, productID, amount uint64, increase bool) (err error) {
	ctx, finish := s.instrument(ctx, "ledger.adjust_quantity", "AdjustQuantity",
		attribute.String("caller", string(caller)),
		attribute.Int64("product.id", int64(productID)),
		attribute.Bool("increase", increase),
	)
	defer func() { finish(ctx, err) }()

	if !s.access.IsAdmin(caller) {
		return catalog.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	if increase {
		err = product.Restock(amount)
	} else {
		err = product.Reduce(amount)
	}
	if err != nil {
		return err
	}

	if err = s.products.Update(ctx, product); err != nil {
		return fmt.Errorf("ledger: update product: %w", err)
	}

	tick := s.clock.Now()
	if increase {
		s.publish(ctx, catalog.NewQuantityIncreasedEvent(product, amount, tick))
	} else {
		s.publish(ctx, catalog.NewQuantityDecreasedEvent(product, amount, tick))
	}
	return nil
}

// ChangePrice sets a new unit price. Administrator only. Price changes apply
// only to future purchases; escrowed funds are never restated.
func (s *Service) ChangePrice(ctx context.Context, caller catalog.Address, productID, price uint64) (err error) {
	ctx, finish := s.instrument(ctx, "ledger.change_price", "ChangePrice",
		attribute.String("caller", string(caller)),
		attribute.Int64("product.id", int64(productID)),
	)
	defer func() { finish(ctx, err) }()

	if !s.access.IsAdmin(caller) {
		return catalog.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if err = product.SetPrice(price); err != nil {
		return err
	}
	if err = s.products.Update(ctx, product); err != nil {
		return fmt.Errorf("ledger: update product: %w", err)
	}

	s.publish(ctx, catalog.NewPriceChangedEvent(product, s.clock.Now()))
	return nil
}

// Buy purchases quantity units for the caller. The caller must not already
// hold an active ownership of the product. The paid amount is collected into
// the product's escrow before any state mutates; overpayment is retained.
func (s *Service) Buy(ctx context.Context, caller catalog.Address, productID, quantity, paid uint64) (err error) {
	ctx, finish := s.instrument(ctx, "ledger.buy", "Buy",
		attribute.String("caller", string(caller)),
		attribute.Int64("product.id", int64(productID)),
		attribute.Int64("quantity", int64(quantity)),
	)
	defer func() { finish(ctx, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if quantity == 0 {
		return catalog.ErrIllegalQuantity
	}
	if quantity > product.Quantity {
		return catalog.ErrOutOfStock
	}

	if _, ownErr := s.products.Ownership(ctx, productID, caller); ownErr == nil {
		return catalog.ErrAlreadyOwned
	} else if !errors.Is(ownErr, catalog.ErrNotOwned) {
		return fmt.Errorf("ledger: ownership lookup: %w", ownErr)
	}

	if !product.CoversPrice(quantity, paid) {
		return catalog.ErrInsufficientPayment
	}

	if err = s.transfer(ctx, "collect", func(ctx context.Context) error {
		return s.treasury.Collect(ctx, caller, productID, paid)
	}); err != nil {
		return fmt.Errorf("ledger: collect payment: %w", err)
	}

	tick := s.clock.Now()
	if err = product.Sell(quantity, paid); err != nil {
		return err
	}
	ownership, err := catalog.NewOwnership(productID, caller, quantity, tick)
	if err != nil {
		return err
	}
	if err = s.products.Update(ctx, product); err != nil {
		return fmt.Errorf("ledger: update product: %w", err)
	}
	if err = s.products.SaveOwnership(ctx, ownership); err != nil {
		return fmt.Errorf("ledger: save ownership: %w", err)
	}

	s.publish(ctx, catalog.NewProductBoughtEvent(product, caller, quantity, paid, tick))
	return nil
}

// Return gives back quantity units bought by the caller, provided the
// warranty window has not elapsed. Stock is restored; escrowed funds are not
// refunded — returns affect inventory, not revenue.
func (s *Service) Return(ctx context.Context, caller catalog.Address, productID, quantity uint64) (err error) {
	ctx, finish := s.instrument(ctx, "ledger.return", "Return",
		attribute.String("caller", string(caller)),
		attribute.Int64("product.id", int64(productID)),
		attribute.Int64("quantity", int64(quantity)),
	)
	defer func() { finish(ctx, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	ownership, err := s.products.Ownership(ctx, productID, caller)
	if err != nil {
		return err
	}
	if quantity == 0 || quantity > ownership.Quantity {
		return catalog.ErrNotOwned
	}

	now := s.clock.Now()
	if !ownership.WithinWarranty(now, s.warranty) {
		return catalog.ErrWarrantyExpired
	}

	if err = ownership.Release(quantity); err != nil {
		return err
	}
	product.Restitute(quantity)

	if err = s.products.Update(ctx, product); err != nil {
		return fmt.Errorf("ledger: update product: %w", err)
	}
	if ownership.Quantity == 0 {
		err = s.products.DeleteOwnership(ctx, productID, caller)
	} else {
		err = s.products.SaveOwnership(ctx, ownership)
	}
	if err != nil {
		return fmt.Errorf("ledger: store ownership: %w", err)
	}

	s.publish(ctx, catalog.NewProductReturnedEvent(product, caller, quantity, now))
	return nil
}

// RemoveProduct deletes a product and frees its name. Administrator only.
// Removal is blocked while any buyer still holds an active ownership.
func (s *Service) RemoveProduct(ctx context.Context, caller catalog.Address, productID uint64) (err error) {
	ctx, finish := s.instrument(ctx, "ledger.remove_product", "RemoveProduct",
		attribute.String("caller", string(caller)),
		attribute.Int64("product.id", int64(productID)),
	)
	defer func() { finish(ctx, err) }()

	if !s.access.IsAdmin(caller) {
		return catalog.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	owners, err := s.products.OwnersOf(ctx, productID)
	if err != nil {
		return fmt.Errorf("ledger: owners lookup: %w", err)
	}
	if len(owners) > 0 {
		return catalog.ErrHasActiveOwners
	}

	if err = s.products.Remove(ctx, productID); err != nil {
		return fmt.Errorf("ledger: remove product: %w", err)
	}

	s.publish(ctx, catalog.NewProductRemovedEvent(product, s.clock.Now()))
	return nil
}

// Withdraw transfers the product's accumulated escrow balance to the
// administrator and zeroes it. Administrator only. A zero balance is a
// successful no-op transfer.
func (s *Service) Withdraw(ctx context.Context, caller catalog.Address, productID uint64) (_ uint64, err error) {
	ctx, finish := s.instrument(ctx, "ledger.withdraw", "Withdraw",
		attribute.String("caller", string(caller)),
		attribute.Int64("product.id", int64(productID)),
	)
	defer func() { finish(ctx, err) }()

	if !s.access.IsAdmin(caller) {
		return 0, catalog.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return 0, err
	}

	amount := product.Escrow
	if amount > 0 {
		if err = s.transfer(ctx, "release", func(ctx context.Context) error {
			return s.treasury.Release(ctx, productID, s.access.Admin(), amount)
		}); err != nil {
			return 0, fmt.Errorf("ledger: release escrow: %w", err)
		}
	}

	product.DrainEscrow()
	if err = s.products.Update(ctx, product); err != nil {
		return 0, fmt.Errorf("ledger: update product: %w", err)
	}

	s.publish(ctx, catalog.NewPaymentWithdrawnEvent(product, s.access.Admin(), amount, s.clock.Now()))
	return amount, nil
}

// instrument opens a span, starts the latency timer, and returns a finish
// callback that records the outcome in the span, the RED metrics, and a
// use_case_done log line. Every operation wraps itself with it.
func (s *Service) instrument(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, func(ctx context.Context, err error)) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))

	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := s.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	start := time.Now()

	finish := func(ctx context.Context, err error) {
		statusText := statusFromError(err)
		outcome := "success"
		if err != nil {
			outcome = "error"
		}

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		latency := time.Since(start).Seconds()
		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(latency,
			observability.L("use_case", useCase),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}

	return ctx, finish
}

// transfer runs a treasury call under a timeout and records it as an external
// request in the metrics.
func (s *Service) transfer(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := fn(callCtx)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if callCtx.Err() != nil {
		outcome = "canceled"
		err = callCtx.Err()
	}
	cancel()

	s.extCounter.Add(1,
		observability.L("peer", "treasury"),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	s.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", "treasury"),
		observability.L("endpoint", endpoint),
	)
	return err
}

// publish hands a domain event to the outbox. Publish failures never fail the
// operation; the mutation has already committed, so the failure is surfaced
// through logs and the external-request metrics instead.
func (s *Service) publish(ctx context.Context, event domoutbox.Event) {
	if s.publisher == nil || event == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := s.publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	s.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
		observability.L("outcome", outcome),
	)
	s.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
	)

	if err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", event.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func statusFromError(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, catalog.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, catalog.ErrBlankField):
		return "BLANK_FIELD"
	case errors.Is(err, catalog.ErrIllegalQuantity):
		return "ILLEGAL_QUANTITY"
	case errors.Is(err, catalog.ErrIllegalPrice):
		return "ILLEGAL_PRICE"
	case errors.Is(err, catalog.ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, catalog.ErrProductExists):
		return "PRODUCT_EXISTS"
	case errors.Is(err, catalog.ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, catalog.ErrAlreadyOwned):
		return "ALREADY_OWNED"
	case errors.Is(err, catalog.ErrInsufficientPayment):
		return "INSUFFICIENT_PAYMENT"
	case errors.Is(err, catalog.ErrNotOwned):
		return "NOT_OWNED"
	case errors.Is(err, catalog.ErrWarrantyExpired):
		return "WARRANTY_EXPIRED"
	case errors.Is(err, catalog.ErrHasActiveOwners):
		return "HAS_ACTIVE_OWNERS"
	default:
		return "INTERNAL"
	}
}
