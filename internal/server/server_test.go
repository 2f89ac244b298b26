package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/factory"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/storage"
)

type recordingPublisher struct {
	mu      sync.Mutex
	subject string
	events  []Event
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = subject
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Event
	}
	return out
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store, err := storage.NewInMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, opts...)
}

func awsRequest() models.CreateRequest {
	return models.CreateRequest{
		Provider: models.ProviderAWS,
		Name:     "web",
		Params: models.Params{
			"instance_type": models.String("t2.micro"),
			"region":        models.String("us-east-1"),
			"vpc":           models.String("vpc-1"),
			"ami":           models.String("ami-1"),
		},
		RequestedBy: "alice",
	}
}

func TestProvisionStartStopSequence(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestServer(t, WithPublisher(pub, "test.events"))
	ctx := context.Background()

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, vm.Status)

	got, err := s.Get(ctx, vm.ID)
	require.NoError(t, err)
	assert.Equal(t, vm, got)

	vm, err = s.Action(ctx, vm.ID, models.ActionRequest{Action: models.ActionStart})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, vm.Status)

	vm, err = s.Action(ctx, vm.ID, models.ActionRequest{Action: models.ActionStop})
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, vm.Status)

	got, err = s.Get(ctx, vm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, got.Status)

	assert.Equal(t, "test.events", pub.subject)
	assert.Equal(t, []string{EventProvisioned, EventAction, EventAction}, pub.kinds())
	assert.Equal(t, "alice", pub.events[0].RequestedBy)
	assert.Equal(t, models.DefaultRequester, pub.events[1].RequestedBy)
	assert.Equal(t, models.ActionStop, pub.events[2].Action)
}

func TestProvisionValidation(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestServer(t, WithPublisher(pub, ""))
	ctx := context.Background()

	req := awsRequest()
	req.Name = "  "
	_, err := s.Provision(ctx, req)
	assert.ErrorIs(t, err, ErrNameRequired)
	assert.True(t, IsValidation(err))

	req = awsRequest()
	req.Provider = "oracle"
	_, err = s.Provision(ctx, req)
	assert.ErrorIs(t, err, factory.ErrUnsupportedProvider)

	req = awsRequest()
	delete(req.Params, "vpc")
	_, err = s.Provision(ctx, req)
	var mpe *factory.MissingParametersError
	require.True(t, errors.As(err, &mpe))
	assert.Equal(t, []string{"vpc"}, mpe.Keys)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, pub.kinds())
}

func TestUpdatePersists(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)

	it := "m5.large"
	cpu := int64(2)
	size := "Standard_B1s"
	out, err := s.Update(ctx, vm.ID, models.UpdateRequest{InstanceType: &it, CPU: &cpu, Size: &size})
	require.NoError(t, err)
	assert.Equal(t, vm.ID, out.ID)

	got, err := s.Get(ctx, vm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.String("m5.large"), got.Specs["instance_type"])
	assert.Equal(t, models.Int(2), got.Specs["cpu"])
	assert.False(t, got.Specs.Has("size"))
	assert.Equal(t, models.String("us-east-1"), got.Specs["region"])
}

func TestUpdateEmptyLeavesRecord(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)

	out, err := s.Update(ctx, vm.ID, models.UpdateRequest{})
	require.NoError(t, err)
	assert.Equal(t, vm, out)
}

func TestActionInvalidDoesNotPersist(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestServer(t, WithPublisher(pub, ""))
	ctx := context.Background()

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)
	_, err = s.Action(ctx, vm.ID, models.ActionRequest{Action: models.ActionRestart})
	require.NoError(t, err)

	_, err = s.Action(ctx, vm.ID, models.ActionRequest{Action: "hibernate"})
	assert.ErrorIs(t, err, factory.ErrInvalidAction)

	got, err := s.Get(ctx, vm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Equal(t, []string{EventProvisioned, EventAction}, pub.kinds())
}

func TestMutateUnknownID(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.Action(ctx, "aws-missing", models.ActionRequest{Action: models.ActionStart})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Update(ctx, "", models.UpdateRequest{})
	assert.ErrorIs(t, err, ErrIDRequired)

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrIDRequired)
}

func TestPublishFailureIsNotReturned(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	s := newTestServer(t, WithPublisher(pub, ""))

	_, err := s.Provision(context.Background(), awsRequest())
	require.NoError(t, err)
	assert.Equal(t, DefaultEventSubject, pub.subject)
}

func TestConcurrentActionsSerialize(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cpu := int64(i)
			_, err := s.Update(ctx, vm.ID, models.UpdateRequest{CPU: &cpu})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, vm.ID)
	require.NoError(t, err)
	assert.True(t, got.Specs.Has("cpu"))
	assert.Len(t, got.Specs, 5)
}

func TestMetricsAndSpans(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	s := newTestServer(t, WithMetrics(metrics), WithTracer(tp.Tracer("test")))
	ctx := context.Background()

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)
	_, err = s.Action(ctx, vm.ID, models.ActionRequest{Action: "bogus"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("provision", "aws", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("action", "aws", "error")))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "vm.provision", spans[0].Name())
	assert.Equal(t, "vm.action", spans[1].Name())
	assert.Len(t, spans[1].Events(), 1)
}

func TestNotFoundMutationsTakeNoLock(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("aws-missing-%d", i)
		_, err := s.Action(ctx, id, models.ActionRequest{Action: models.ActionStart})
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.Update(ctx, id, models.UpdateRequest{})
		require.ErrorIs(t, err, storage.ErrNotFound)
	}

	count := func() int {
		n := 0
		s.opMu.Range(func(_, _ any) bool { n++; return true })
		return n
	}
	assert.Equal(t, 0, count())

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.Action(ctx, vm.ID, models.ActionRequest{Action: models.ActionStop})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, count())
}

func TestReadMetricsCarryProvider(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	s := newTestServer(t, WithMetrics(metrics))
	ctx := context.Background()

	vm, err := s.Provision(ctx, awsRequest())
	require.NoError(t, err)
	_, err = s.Get(ctx, vm.ID)
	require.NoError(t, err)
	_, err = s.Get(ctx, "aws-missing")
	require.Error(t, err)
	_, err = s.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("get", "aws", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("get", "unknown", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("list", "all", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.operations.WithLabelValues("get", "unknown", "ok")))
}
