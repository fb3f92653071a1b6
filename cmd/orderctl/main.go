// Command orderctl drives the order service from the shell:
//
//	orderctl [-config path] get|pay|deliver <order-id>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	timeout := flag.Duration("timeout", 10*time.Second, "call timeout")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: orderctl [flags] get|pay|deliver <order-id>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	command, orderID := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Log.OutputPaths = []string{"stderr"}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		log.Warn("Failed to connect to etcd, using the configured address", zap.Error(err))
		sd = nil
	} else {
		defer sd.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	clients := grpc.NewClientManager(cfg, log, sd)
	if err := clients.Connect(ctx); err != nil {
		log.Fatal("Failed to connect", zap.Error(err))
	}
	defer clients.Close()

	r, err := run(ctx, clients.OrderClient(), command, orderID)
	if err != nil {
		if st, ok := status.FromError(err); ok {
			fmt.Fprintf(os.Stderr, "%s: %s\n", st.Code(), st.Message())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *grpc.OrderClient, command, orderID string) (apperr.Result, error) {
	switch command {
	case "get":
		return c.GetOrder(ctx, orderID)
	case "pay":
		return c.MarkPaid(ctx, orderID)
	case "deliver":
		return c.MarkDelivered(ctx, orderID)
	default:
		return apperr.Result{}, fmt.Errorf("unknown command %q", command)
	}
}
