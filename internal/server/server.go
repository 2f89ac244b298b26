package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/factory"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/storage"
)

// providerAll labels operations that span every provider.
const providerAll = "all"

var (
	ErrNameRequired = errors.New("name required")
	ErrIDRequired   = errors.New("id required")
)

// Server runs provider factories against a record store.
type Server struct {
	store     storage.Store
	publisher Publisher
	subject   string
	metrics   *Metrics
	tracer    trace.Tracer
	logger    *zap.Logger

	// operations mutex per vm id
	opMu sync.Map
}

type Option func(*Server)

func WithPublisher(p Publisher, subject string) Option {
	return func(s *Server) {
		s.publisher = p
		if subject != "" {
			s.subject = subject
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new server instance.
func New(store storage.Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		subject: DefaultEventSubject,
		tracer:  noop.NewTracerProvider().Tracer("vmfacade"),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsValidation reports whether err stems from bad caller input.
func IsValidation(err error) bool {
	return factory.IsValidation(err) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrIDRequired) ||
		errors.Is(err, models.ErrUnsupportedValue)
}

// Provision validates the request, builds a record with the provider's
// factory and stores it.
func (s *Server) Provision(ctx context.Context, req models.CreateRequest) (vm *models.VM, err error) {
	provider := ""
	ctx, done := s.begin(ctx, "provision")
	defer func() { done(err, provider) }()

	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	f, err := factory.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	provider = string(f.Provider())
	vm, err = f.Provision(req.Name, req.Params)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveVM(ctx, vm); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	s.logger.Info("vm provisioned",
		zap.String("id", vm.ID),
		zap.String("provider", string(vm.Provider)),
		zap.String("requested_by", models.Requester(req.RequestedBy)))
	s.publish(ctx, newEvent(EventProvisioned, vm, req.RequestedBy))
	return vm, nil
}

// Get fetches a VM by ID.
func (s *Server) Get(ctx context.Context, id string) (vm *models.VM, err error) {
	provider := ""
	ctx, done := s.begin(ctx, "get")
	defer func() { done(err, provider) }()

	if id == "" {
		return nil, ErrIDRequired
	}
	vm, err = s.store.GetVM(ctx, id)
	if err != nil {
		return nil, err
	}
	provider = string(vm.Provider)
	return vm, nil
}

// List returns every stored VM.
func (s *Server) List(ctx context.Context) (vms []*models.VM, err error) {
	ctx, done := s.begin(ctx, "list")
	defer func() { done(err, providerAll) }()

	return s.store.ListVMs(ctx)
}

// Update applies a sparse spec patch using the record's own provider factory.
func (s *Server) Update(ctx context.Context, id string, changes models.UpdateRequest) (*models.VM, error) {
	return s.mutate(ctx, "update", id, func(f factory.Factory, vm *models.VM) (*models.VM, error) {
		return f.Update(vm, changes), nil
	}, func(vm *models.VM) Event {
		return newEvent(EventUpdated, vm, "")
	})
}

// Action applies a lifecycle action. Repeating an action is not an error.
func (s *Server) Action(ctx context.Context, id string, req models.ActionRequest) (*models.VM, error) {
	return s.mutate(ctx, "action", id, func(f factory.Factory, vm *models.VM) (*models.VM, error) {
		return f.ApplyAction(vm, req.Action)
	}, func(vm *models.VM) Event {
		ev := newEvent(EventAction, vm, req.RequestedBy)
		ev.Action = req.Action
		return ev
	})
}

// mutate is the guarded read-modify-write cycle shared by Update and Action.
// Nothing is saved or published when apply fails.
func (s *Server) mutate(
	ctx context.Context,
	op, id string,
	apply func(factory.Factory, *models.VM) (*models.VM, error),
	event func(*models.VM) Event,
) (vm *models.VM, err error) {
	provider := ""
	ctx, done := s.begin(ctx, op)
	defer func() { done(err, provider) }()

	if id == "" {
		return nil, ErrIDRequired
	}

	// Records are never deleted, so locking only known ids bounds opMu by
	// the number of stored records.
	if _, err := s.store.GetVM(ctx, id); err != nil {
		return nil, err
	}

	s.acquireOpLock(id)
	defer s.releaseOpLock(id)

	current, err := s.store.GetVM(ctx, id)
	if err != nil {
		return nil, err
	}
	provider = string(current.Provider)

	f, err := factory.Get(current.Provider)
	if err != nil {
		return nil, err
	}
	vm, err = apply(f, current)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveVM(ctx, vm); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	s.logger.Debug("vm "+op, zap.String("id", vm.ID), zap.String("status", string(vm.Status)))
	s.publish(ctx, event(vm))
	return vm, nil
}

// begin opens a span for op and returns a closure that records the outcome
// once the provider involved is known.
func (s *Server) begin(ctx context.Context, op string) (context.Context, func(error, string)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "vm."+op, trace.WithAttributes(attribute.String("vm.operation", op)))
	return ctx, func(err error, provider string) {
		if provider != "" {
			span.SetAttributes(attribute.String("vm.provider", provider))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.observe(op, provider, err, time.Since(start).Seconds())
	}
}

// acquireOpLock ensures only one op per vm at a time.
func (s *Server) acquireOpLock(id string) {
	v, _ := s.opMu.LoadOrStore(id, &sync.Mutex{})
	v.(*sync.Mutex).Lock()
}

// releaseOpLock releases the op lock.
func (s *Server) releaseOpLock(id string) {
	v, ok := s.opMu.Load(id)
	if !ok {
		return
	}
	v.(*sync.Mutex).Unlock()
}
