package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/order"
)

const (
	OrderServiceName = "storefront.OrderService"

	methodGetOrder      = "GetOrder"
	methodMarkPaid      = "MarkPaid"
	methodMarkDelivered = "MarkDelivered"
)

// OrderServiceServer takes an order id and answers with the {success, message, data} envelope.
type OrderServiceServer interface {
	GetOrder(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	MarkPaid(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	MarkDelivered(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodGetOrder, Handler: unaryHandler(methodGetOrder, OrderServiceServer.GetOrder)},
		{MethodName: methodMarkPaid, Handler: unaryHandler(methodMarkPaid, OrderServiceServer.MarkPaid)},
		{MethodName: methodMarkDelivered, Handler: unaryHandler(methodMarkDelivered, OrderServiceServer.MarkDelivered)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/order.proto",
}

func fullMethod(method string) string {
	return "/" + OrderServiceName + "/" + method
}

func unaryHandler(method string, call func(OrderServiceServer, context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type OrderServer struct {
	orders *order.Service
	health *health.Server
	server *grpc.Server
	logger *zap.Logger
	config *config.Config
}

func NewOrderServer(cfg *config.Config, orders *order.Service, logger *zap.Logger) *OrderServer {
	logger = logger.Named("grpc")
	s := &OrderServer{
		orders: orders,
		health: health.NewServer(),
		logger: logger,
		config: cfg,
	}
	s.server = grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	s.server.RegisterService(&OrderServiceDesc, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	return s
}

func (s *OrderServer) Start() error {
	addr := s.config.Server.Address()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("Order service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	s.health.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_SERVING)
	return s.server.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *OrderServer) GetOrder(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	o, err := s.orders.GetOrder(ctx, in.GetValue())
	return s.reply(methodGetOrder, "", o, err)
}

// MarkPaid is the admin settlement of a cash on delivery order.
func (s *OrderServer) MarkPaid(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	o, err := s.orders.MarkPaidCashOnDelivery(ctx, in.GetValue())
	return s.reply(methodMarkPaid, order.MsgOrderPaid, o, err)
}

func (s *OrderServer) MarkDelivered(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	o, err := s.orders.MarkDelivered(ctx, in.GetValue())
	return s.reply(methodMarkDelivered, order.MsgOrderDelivered, o, err)
}

// reply returns failures as gRPC status errors; AlreadyPaid still travels as a successful envelope.
func (s *OrderServer) reply(method, okMessage string, o *models.Order, err error) (*structpb.Struct, error) {
	r := apperr.OK(okMessage, o)
	if err != nil {
		r = apperr.FromError(err, o)
		if !r.Success {
			if apperr.KindOf(err) == apperr.KindInternal {
				s.logger.Error("Order call failed", zap.String("method", method), zap.Error(err))
			}
			return nil, status.Error(apperr.GRPCCode(err), r.Message)
		}
	}
	return envelope(r)
}

func envelope(r apperr.Result) (*structpb.Struct, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, status.Errorf(apperr.GRPCCode(err), "failed to encode result: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(apperr.GRPCCode(err), "failed to encode result: %v", err)
	}
	return structpb.NewStruct(m)
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("gRPC request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
