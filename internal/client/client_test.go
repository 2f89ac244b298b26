package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/api"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/server"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	store, err := storage.NewInMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ts := httptest.NewServer(api.NewHTTPHandler(server.New(store), nil))
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	vm, err := c.Create(ctx, models.CreateRequest{
		Provider: models.ProviderAWS,
		Name:     "edge",
		Params: models.Params{
			"instance_type": models.String("t3.small"),
			"region":        models.String("eu-west-1"),
			"vpc":           models.String("vpc-9"),
			"ami":           models.String("ami-9"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, vm.Status)

	ram := int64(4)
	vm, err = c.Update(ctx, vm.ID, models.UpdateRequest{RAMGB: &ram})
	require.NoError(t, err)
	assert.Equal(t, models.Int(4), vm.Specs["ram_gb"])

	vm, err = c.Action(ctx, vm.ID, models.ActionRequest{Action: models.ActionStart})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, vm.Status)

	got, err := c.Get(ctx, vm.ID)
	require.NoError(t, err)
	assert.Equal(t, vm, got)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestClientAPIError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Get(context.Background(), "gcp-none")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not found", apiErr.Message)

	_, err = c.Create(context.Background(), models.CreateRequest{Provider: models.ProviderGCP, Name: "g"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "missing GCP params")
}

func TestParseParam(t *testing.T) {
	tests := []struct {
		in      string
		key     string
		want    models.SpecValue
		wantErr bool
	}{
		{in: "cpu=4", key: "cpu", want: models.Int(4)},
		{in: "ram_gb=16", key: "ram_gb", want: models.Int(16)},
		{in: "disk_gb=007", key: "disk_gb", want: models.String("007")},
		{in: "cpu=four", key: "cpu", want: models.String("four")},
		{in: "nic=eth0", key: "nic", want: models.String("eth0")},
		{in: "vpc=42", key: "vpc", want: models.String("42")},
		{in: "ami=123", key: "ami", want: models.String("123")},
		{in: "vpc=007", key: "vpc", want: models.String("007")},
		{in: "tag=a=b", key: "tag", want: models.String("a=b")},
		{in: "empty=", key: "empty", want: models.String("")},
		{in: "quota:=12", key: "quota", want: models.Int(12)},
		{in: "cpu:=-2", key: "cpu", want: models.Int(-2)},
		{in: "quota:=twelve", wantErr: true},
		{in: "novalue", wantErr: true},
		{in: "=x", wantErr: true},
		{in: ":=5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, v, err := ParseParam(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, k)
			assert.Equal(t, tt.want, v)
		})
	}
}
