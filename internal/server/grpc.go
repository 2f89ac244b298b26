package server

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/storage"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "vmfacade.v1.VMService"

// CodecName is the content-subtype clients must request.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return CodecName
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type GetRequest struct {
	ID string `json:"id"`
}

type ListRequest struct{}

type UpdateRequest struct {
	ID      string               `json:"id"`
	Changes models.UpdateRequest `json:"changes"`
}

type ActionRequest struct {
	ID string `json:"id"`
	models.ActionRequest
}

// RegisterGRPC registers the VM service and a health service on gs.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&vmServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
}

// grpcError maps service errors to gRPC status codes.
func grpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// unary adapts a typed handler to grpc.MethodDesc.
func unary[Req any](method string, call func(*Server, context.Context, *Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(*Server), ctx, req.(*Req))
				return out, grpcError(err)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var vmServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary("Provision", func(s *Server, ctx context.Context, req *models.CreateRequest) (any, error) {
			return s.Provision(ctx, *req)
		}),
		unary("Get", func(s *Server, ctx context.Context, req *GetRequest) (any, error) {
			return s.Get(ctx, req.ID)
		}),
		unary("List", func(s *Server, ctx context.Context, _ *ListRequest) (any, error) {
			vms, err := s.List(ctx)
			if err != nil {
				return nil, err
			}
			return &models.VMListResponse{Items: vms}, nil
		}),
		unary("Update", func(s *Server, ctx context.Context, req *UpdateRequest) (any, error) {
			return s.Update(ctx, req.ID, req.Changes)
		}),
		unary("Action", func(s *Server, ctx context.Context, req *ActionRequest) (any, error) {
			return s.Action(ctx, req.ID, req.ActionRequest)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vmfacade/v1/vm.proto",
}
