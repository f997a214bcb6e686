package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The Pipeline service is described with well-known types only, so no
// generated stubs are needed. Structured responses travel as
// google.protobuf.Struct with snake_case keys.
const PipelineServiceName = "invoice2order.v1.Pipeline"

const (
	Pipeline_Process_FullMethodName    = "/invoice2order.v1.Pipeline/Process"
	Pipeline_Submit_FullMethodName     = "/invoice2order.v1.Pipeline/Submit"
	Pipeline_GetRun_FullMethodName     = "/invoice2order.v1.Pipeline/GetRun"
	Pipeline_ListRuns_FullMethodName   = "/invoice2order.v1.Pipeline/ListRuns"
	Pipeline_ExportRuns_FullMethodName = "/invoice2order.v1.Pipeline/ExportRuns"
)

// Metadata keys read by the Pipeline service.
const (
	MDFilename  = "x-filename"
	MDForce     = "x-force"
	MDRequestID = "x-request-id"
)

// PipelineServer is the server API for the Pipeline service.
type PipelineServer interface {
	// Process runs an uploaded file through the pipeline synchronously.
	Process(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	// Submit queues a file already visible to the server by path.
	Submit(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetRun(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ExportRuns returns an XLSX workbook of the matching runs.
	ExportRuns(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

// UnimplementedPipelineServer can be embedded to have forward compatible implementations.
type UnimplementedPipelineServer struct{}

func (UnimplementedPipelineServer) Process(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Process not implemented")
}
func (UnimplementedPipelineServer) Submit(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedPipelineServer) GetRun(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRun not implemented")
}
func (UnimplementedPipelineServer) ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRuns not implemented")
}
func (UnimplementedPipelineServer) ExportRuns(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ExportRuns not implemented")
}

func RegisterPipelineServer(s grpc.ServiceRegistrar, srv PipelineServer) {
	s.RegisterService(&Pipeline_ServiceDesc, srv)
}

func processHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Pipeline_Process_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).Process(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Pipeline_Submit_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).Submit(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).GetRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Pipeline_GetRun_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).GetRun(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listRunsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).ListRuns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Pipeline_ListRuns_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).ListRuns(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func exportRunsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).ExportRuns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Pipeline_ExportRuns_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).ExportRuns(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Pipeline_ServiceDesc is the grpc.ServiceDesc for the Pipeline service.
var Pipeline_ServiceDesc = grpc.ServiceDesc{
	ServiceName: PipelineServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: processHandler},
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "GetRun", Handler: getRunHandler},
		{MethodName: "ListRuns", Handler: listRunsHandler},
		{MethodName: "ExportRuns", Handler: exportRunsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoice2order/v1/pipeline.proto",
}

// PipelineClient is the client API for the Pipeline service.
type PipelineClient struct {
	cc grpc.ClientConnInterface
}

func NewPipelineClient(cc grpc.ClientConnInterface) *PipelineClient {
	return &PipelineClient{cc: cc}
}

func (c *PipelineClient) Process(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Pipeline_Process_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PipelineClient) Submit(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Pipeline_Submit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PipelineClient) GetRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Pipeline_GetRun_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PipelineClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Pipeline_ListRuns_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PipelineClient) ExportRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, Pipeline_ExportRuns_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
