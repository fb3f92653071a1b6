package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
)

const defaultOrderAddress = "localhost:50052"

// OrderClient calls storefront.OrderService without generated stubs.
type OrderClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderClient(cc grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{cc: cc}
}

func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (apperr.Result, error) {
	return c.call(ctx, methodGetOrder, orderID)
}

func (c *OrderClient) MarkPaid(ctx context.Context, orderID string) (apperr.Result, error) {
	return c.call(ctx, methodMarkPaid, orderID)
}

func (c *OrderClient) MarkDelivered(ctx context.Context, orderID string) (apperr.Result, error) {
	return c.call(ctx, methodMarkDelivered, orderID)
}

func (c *OrderClient) call(ctx context.Context, method, orderID string) (apperr.Result, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), wrapperspb.String(orderID), out); err != nil {
		return apperr.Result{}, err
	}

	var r apperr.Result
	b, err := json.Marshal(out.AsMap())
	if err != nil {
		return apperr.Result{}, fmt.Errorf("failed to decode %s reply: %w", method, err)
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return apperr.Result{}, fmt.Errorf("failed to decode %s reply: %w", method, err)
	}
	return r, nil
}

// ClientManager manages the gRPC connection to the order service
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	orderConn   *grpc.ClientConn
	orderClient *OrderClient
}

func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger.Named("clients"),
	}
}

func (m *ClientManager) Connect(ctx context.Context) error {
	if err := m.connectOrderService(ctx); err != nil {
		return fmt.Errorf("failed to connect to order service: %w", err)
	}
	return nil
}

// orderTarget prefers an instance registered in etcd and falls back to the configured address.
func (m *ClientManager) orderTarget(ctx context.Context) string {
	target := m.config.Services.OrderAddress
	if target == "" {
		target = defaultOrderAddress
	}
	if m.discovery == nil {
		return target
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	instances, err := m.discovery.Discover(ctx, m.config.Services.Order)
	if err == nil && len(instances) > 0 {
		target = instances[0].Address()
		m.logger.Info("Discovered order service", zap.String("address", target))
	} else {
		m.logger.Info("Using default address for order service", zap.String("address", target))
	}
	return target
}

func (m *ClientManager) connectOrderService(ctx context.Context) error {
	target := m.orderTarget(ctx)
	m.logger.Info("Connecting to order service", zap.String("target", target))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return err
	}

	m.orderConn = conn
	m.orderClient = NewOrderClient(conn)
	m.logger.Info("Successfully connected to order service")
	return nil
}

func (m *ClientManager) OrderClient() *OrderClient {
	return m.orderClient
}

func (m *ClientManager) Close() error {
	if m.orderConn == nil {
		return nil
	}
	if err := m.orderConn.Close(); err != nil {
		return fmt.Errorf("order connection close error: %w", err)
	}
	return nil
}
