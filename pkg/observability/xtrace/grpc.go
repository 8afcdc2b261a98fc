package xtrace

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/omeyang/xcorr/pkg/context/xctx"
	"github.com/omeyang/xcorr/pkg/observability/xlog"
)

const (
	grpcMethodUnary  = "UNARY"
	grpcMethodStream = "STREAM"
)

// =============================================================================
// gRPC Metadata 提取
// =============================================================================

// ExtractFromMetadata 从 gRPC Metadata 提取追踪信息（取第一个值，去除空白）
func ExtractFromMetadata(md metadata.MD) Inbound {
	if md == nil {
		return Inbound{}
	}
	return Inbound{
		TraceID:      getMetadataValue(md, MetaTraceID),
		ParentSpanID: getMetadataValue(md, MetaParentSpanID),
	}
}

// ExtractFromIncomingContext 从 incoming context 提取追踪信息
func ExtractFromIncomingContext(ctx context.Context) Inbound {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Inbound{}
	}
	return ExtractFromMetadata(md)
}

// =============================================================================
// gRPC 服务端拦截器
// =============================================================================

// UnaryServerInterceptor 返回一元服务端拦截器。
//
// handler 返回的 error 即失败信号：输出 failed 日志后原样返回。
// 成功时追踪 ID 通过 header metadata 返回给调用方。
// handler panic 时记录日志、清空 Store 后以原值重新 panic。
func (m *Middleware) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		r := m.begin(ctx, transportGRPC, grpcMethodUnary, info.FullMethod, ExtractFromIncomingContext(ctx))
		defer r.End()
		defer recoverAndRepanic(r)

		resp, err := handler(r.Context(), req)
		if err != nil {
			r.fail(int(status.Code(err)), err, nil)
			return resp, err
		}
		if setErr := grpc.SetHeader(r.Context(), r.responseMetadata()); setErr != nil {
			m.log().Debug(r.Context(), "set trace header metadata failed", xlog.Err(setErr))
		}
		r.Complete(int(codes.OK))
		return resp, nil
	}
}

// StreamServerInterceptor 返回流式服务端拦截器。
// 追踪 metadata 在首次 SendHeader/SendMsg 前设置，handler 未发送任何消息时在其返回后设置。
func (m *Middleware) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		r := m.begin(ss.Context(), transportGRPC, grpcMethodStream, info.FullMethod, ExtractFromIncomingContext(ss.Context()))
		defer r.End()
		defer recoverAndRepanic(r)

		ws := &tracedServerStream{ServerStream: ss, req: r}
		if err := handler(srv, ws); err != nil {
			r.fail(int(status.Code(err)), err, nil)
			return err
		}
		ws.injectHeader()
		r.Complete(int(codes.OK))
		return nil
	}
}

func recoverAndRepanic(r *Request) {
	if v := recover(); v != nil {
		r.fail(int(codes.Internal), PanicError(v), debug.Stack())
		panic(v)
	}
}

func (r *Request) responseMetadata() metadata.MD {
	return metadata.New(r.ResponseHeaders())
}

// tracedServerStream 覆盖 Context 并在首次发送前设置追踪 metadata
type tracedServerStream struct {
	grpc.ServerStream
	req  *Request
	once sync.Once
}

// Context 返回挂载了请求 Store 的 context
func (s *tracedServerStream) Context() context.Context {
	return s.req.Context()
}

// SendHeader 合并追踪 metadata 后发送
func (s *tracedServerStream) SendHeader(md metadata.MD) error {
	s.injectHeader()
	return s.ServerStream.SendHeader(md)
}

// SendMsg 首条消息前设置追踪 metadata
func (s *tracedServerStream) SendMsg(msg any) error {
	s.injectHeader()
	return s.ServerStream.SendMsg(msg)
}

func (s *tracedServerStream) injectHeader() {
	s.once.Do(func() {
		// header 已发送时 SetHeader 返回错误，此时无法再补发
		_ = s.ServerStream.SetHeader(s.req.responseMetadata())
	})
}

// =============================================================================
// gRPC 客户端拦截器
// =============================================================================

// UnaryClientInterceptor 返回使用默认 Propagator 的客户端一元拦截器
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return defaultPropagator.UnaryClientInterceptor()
}

// StreamClientInterceptor 返回使用默认 Propagator 的客户端流式拦截器
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return defaultPropagator.StreamClientInterceptor()
}

// UnaryClientInterceptor 返回客户端一元拦截器，将追踪信息注入 outgoing metadata
func (p *Propagator) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(p.InjectToOutgoingContext(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor 返回客户端流式拦截器，将追踪信息注入 outgoing metadata
func (p *Propagator) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(p.InjectToOutgoingContext(ctx), desc, cc, method, opts...)
	}
}

// =============================================================================
// gRPC Metadata 注入（跨服务传播）
// =============================================================================

// InjectToOutgoingContext 使用默认 Propagator 注入 outgoing metadata
func InjectToOutgoingContext(ctx context.Context) context.Context {
	return defaultPropagator.InjectToOutgoingContext(ctx)
}

// InjectToOutgoingContext 将追踪 Header 以小写 key 写入 outgoing metadata。
// 已存在的 key 不会被覆盖；没有可传播的内容时返回原 ctx。
func (p *Propagator) InjectToOutgoingContext(ctx context.Context) context.Context {
	if ctx == nil {
		return nil
	}
	headers := p.TraceHeaders(ctx)
	if len(headers) == 0 {
		return ctx
	}

	// 复制现有 metadata，避免修改原 metadata
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	for k, v := range headers {
		key := strings.ToLower(k)
		if len(md.Get(key)) == 0 {
			md.Set(key, v)
		}
	}
	return metadata.NewOutgoingContext(ctx, md)
}

// InjectTraceToMetadata 将 tc 写入 md，用于手动构造 metadata 的场景
func InjectTraceToMetadata(md metadata.MD, tc xctx.TraceContext) {
	if md == nil {
		return
	}
	if tc.TraceID != "" {
		md.Set(MetaTraceID, tc.TraceID)
	}
	if tc.RequestID != "" {
		md.Set(MetaParentSpanID, tc.RequestID)
	}
}

// getMetadataValue 获取 metadata 中的值（取第一个，去除空白）
func getMetadataValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
