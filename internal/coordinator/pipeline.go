// Package coordinator runs the order-assembly pipeline for one inbound event.
//
// A run takes the customer's lock, resolves the customer and every product
// through the catalog, prices the order and stores it. The lock is released
// exactly once on every path after it was acquired, panics included. The
// pipeline never acknowledges messages; that is the listener's job.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-worker/internal/coordinator/runlog"
	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/orderstore"
	"github.com/jcmexdev/order-worker/internal/pkg/clock"
	"github.com/jcmexdev/order-worker/internal/pkg/lock"
	"github.com/jcmexdev/order-worker/internal/pkg/telemetry"
)

const tracerName = "github.com/jcmexdev/order-worker/internal/coordinator"

// CatalogClient resolves customers and products.
type CatalogClient interface {
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type Config struct {
	LockTTL           time.Duration
	LockMaxAttempts   int
	LockRetryInterval time.Duration
	// ReleaseTimeout bounds the lock release, which runs on a context
	// detached from the run's cancellation.
	ReleaseTimeout time.Duration
	// ProductFetchLimit caps concurrent product requests per run. Zero means
	// no cap.
	ProductFetchLimit int
}

func DefaultConfig() Config {
	return Config{
		LockTTL:           30 * time.Second,
		LockMaxAttempts:   3,
		LockRetryInterval: 100 * time.Millisecond,
		ReleaseTimeout:    5 * time.Second,
		ProductFetchLimit: 8,
	}
}

// Pipeline is safe for concurrent use, for the same customer too.
type Pipeline struct {
	locker  lock.Locker
	catalog CatalogClient
	orders  orderstore.Repository
	runs    runlog.Repository
	metrics *telemetry.Metrics
	clock   clock.Clock
	tracer  trace.Tracer
	cfg     Config
}

type Option func(*Pipeline)

// WithRunLog appends every state transition to repo.
func WithRunLog(repo runlog.Repository) Option {
	return func(p *Pipeline) { p.runs = repo }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

func New(locker lock.Locker, catalog CatalogClient, orders orderstore.Repository, cfg Config, opts ...Option) *Pipeline {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = DefaultConfig().ReleaseTimeout
	}
	p := &Pipeline{
		locker:  locker,
		catalog: catalog,
		orders:  orders,
		clock:   clock.NewSystem(),
		tracer:  otel.Tracer(tracerName),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries one execution across its stages.
type run struct {
	id       string
	evt      domain.InboundOrderEvent
	stage    State
	customer domain.Customer
	results  []productResult
	products []domain.Product
	order    domain.AssembledOrder
	stored   domain.StoredOrder
}

// stage is one step of the locked section, executed in order.
type stage struct {
	state State
	exec  func(ctx context.Context, r *run) error
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{StateFetchingCustomer, p.fetchCustomer},
		{StateValidatingCustomer, p.validateCustomer},
		{StateFetchingProducts, p.fetchProducts},
		{StateValidatingProducts, p.validateProducts},
		{StateAssembling, p.assemble},
		{StatePersisting, p.persist},
	}
}

// Process runs the pipeline for evt, which must already be decoded and
// validated. Failures are reported in the Outcome, never as panics; a panic
// raised by a dependency propagates after the lock is released.
func (p *Pipeline) Process(ctx context.Context, evt domain.InboundOrderEvent) Outcome {
	begin := time.Now()
	r := &run{id: uuid.NewString(), evt: evt}

	ctx, span := p.tracer.Start(ctx, "order.pipeline", trace.WithAttributes(
		attribute.String("order.id", evt.OrderID),
		attribute.String("customer.id", evt.CustomerID),
		attribute.Int("order.product_count", len(evt.ProductIDs)),
		attribute.String("pipeline.run_id", r.id),
	))
	defer span.End()

	out := p.process(ctx, r)

	p.metrics.ObservePipeline(out.Reason, time.Since(begin))
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Reason)
	}
	return out
}

func (p *Pipeline) process(ctx context.Context, r *run) Outcome {
	payload, _ := json.Marshal(r.evt)
	p.enter(ctx, r, StateStart, "", string(payload))

	p.enter(ctx, r, StateLocking, "", "")
	h, ok := p.acquire(ctx, lock.CustomerKey(r.evt.CustomerID))
	if !ok {
		p.metrics.LockAcquireFailed()
		return p.fail(ctx, r, fmt.Errorf("%w: %s", domain.ErrLockUnavailable, lock.CustomerKey(r.evt.CustomerID)))
	}
	defer p.release(ctx, h)
	p.enter(ctx, r, StateLocked, "", "")

	for _, st := range p.stages() {
		p.enter(ctx, r, st.state, "", "")
		if err := p.runStage(ctx, st, r); err != nil {
			return p.fail(ctx, r, err)
		}
	}

	p.enter(ctx, r, StateDone, "", "")
	slog.InfoContext(ctx, "order processed",
		"order_id", r.evt.OrderID,
		"customer_id", r.evt.CustomerID,
		"items", len(r.stored.Items),
		"total", r.stored.TotalAmount.StringFixed(2),
		"created", r.stored.Created,
	)

	stored := r.stored
	return Outcome{Order: &stored, State: StateDone, Stage: StatePersisting, RunID: r.id}
}

func (p *Pipeline) runStage(ctx context.Context, st stage, r *run) error {
	ctx, span := p.tracer.Start(ctx, "order.pipeline."+strings.ToLower(string(st.state)))
	defer span.End()

	err := st.exec(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) acquire(ctx context.Context, key string) (lock.Handle, bool) {
	ctx, span := p.tracer.Start(ctx, "order.pipeline.lock", trace.WithAttributes(attribute.String("lock.key", key)))
	defer span.End()

	h, ok := p.locker.AcquireWithRetry(ctx, key, p.cfg.LockTTL, p.cfg.LockMaxAttempts, p.cfg.LockRetryInterval)
	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	return h, ok
}

func (p *Pipeline) release(ctx context.Context, h lock.Handle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ReleaseTimeout)
	defer cancel()

	if !p.locker.Release(ctx, h) {
		slog.WarnContext(ctx, "customer lock not released, it will expire", "key", h.Key, "expiry", h.Expiry)
	}
}

func (p *Pipeline) fetchCustomer(ctx context.Context, r *run) error {
	customer, err := p.catalog.GetCustomer(ctx, r.evt.CustomerID)
	if err != nil {
		return fmt.Errorf("fetch customer %s: %w", r.evt.CustomerID, err)
	}
	r.customer = customer
	return nil
}

func (p *Pipeline) validateCustomer(_ context.Context, r *run) error {
	if !r.customer.Active {
		return fmt.Errorf("%w: %s", domain.ErrCustomerInactive, r.evt.CustomerID)
	}
	return nil
}

func (p *Pipeline) fetchProducts(ctx context.Context, r *run) error {
	r.results = fetchProducts(ctx, p.catalog, r.evt.ProductIDs, p.cfg.ProductFetchLimit)
	return nil
}

func (p *Pipeline) validateProducts(_ context.Context, r *run) error {
	products, err := resolvedProducts(r.results)
	if err != nil {
		return err
	}
	r.products = products
	return nil
}

func (p *Pipeline) assemble(_ context.Context, r *run) error {
	r.order = domain.NewAssembledOrder(r.evt, r.customer, r.products, p.clock.Now())
	return nil
}

func (p *Pipeline) persist(ctx context.Context, r *run) error {
	stored, err := p.orders.Save(ctx, r.order)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if !stored.Created {
		slog.InfoContext(ctx, "order was already stored", "order_id", r.evt.OrderID, "id", stored.ID)
	}
	r.stored = stored
	return nil
}

func (p *Pipeline) fail(ctx context.Context, r *run, err error) Outcome {
	stage := r.stage
	reason := reasonFor(stage, err)
	p.enter(ctx, r, StateFailed, reason, "")

	slog.WarnContext(ctx, "order processing failed",
		"order_id", r.evt.OrderID,
		"customer_id", r.evt.CustomerID,
		"state", stage,
		"reason", reason,
		"error", err,
	)
	return Outcome{Err: err, Reason: reason, State: StateFailed, Stage: stage, RunID: r.id}
}

func reasonFor(stage State, err error) string {
	switch stage {
	case StateLocking:
		return ReasonLockNotAcquired
	case StateFetchingCustomer:
		if errors.Is(err, domain.ErrUpstreamNotFound) {
			return ReasonCustomerNotFound
		}
		return ReasonCustomerFetchFailed
	case StateValidatingCustomer:
		return ReasonCustomerInactive
	case StateValidatingProducts:
		return ReasonIncompleteProducts
	case StatePersisting:
		return ReasonPersistenceFailed
	default:
		return strings.ToLower(string(stage)) + " failed"
	}
}

// enter records a transition. Run log failures are logged and ignored.
func (p *Pipeline) enter(ctx context.Context, r *run, state State, reason, payload string) {
	if state != StateDone && state != StateFailed {
		r.stage = state
	}

	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(attribute.String("pipeline.state", string(state))))
	slog.DebugContext(ctx, "pipeline state", "order_id", r.evt.OrderID, "state", state)

	if p.runs == nil {
		return
	}
	entry := runlog.NewEntry(ctx, r.id, r.evt.OrderID, r.evt.CustomerID, string(state), reason, payload, p.clock.Now())
	if err := p.runs.Save(context.WithoutCancel(ctx), entry); err != nil {
		slog.WarnContext(ctx, "run log write failed", "order_id", r.evt.OrderID, "state", state, "error", err)
	}
}
