package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/internal/config"
	"github.com/rmacdonaldsmith/meshchat-go/internal/discovery"
	"github.com/rmacdonaldsmith/meshchat-go/internal/eventlog"
	"github.com/rmacdonaldsmith/meshchat-go/internal/grpcapi"
	"github.com/rmacdonaldsmith/meshchat-go/internal/httpapi"
	"github.com/rmacdonaldsmith/meshchat-go/internal/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/internal/observability"
	"github.com/rmacdonaldsmith/meshchat-go/internal/peerlink"
	"github.com/rmacdonaldsmith/meshchat-go/internal/routingtable"
	eventlogpkg "github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
	meshnodepkg "github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

const shutdownTimeout = 10 * time.Second

// app wires a node to its history, routing table and control surfaces
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	history *eventlog.InMemoryEventLog
	routes  *routingtable.InMemoryRoutingTable
	node    *meshnode.TCPMeshNode

	httpServer   *httpapi.Server
	httpListener net.Listener
	grpcServer   *grpcapi.Server
	grpcListener net.Listener

	wg   sync.WaitGroup
	errs chan error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		history: eventlog.NewInMemoryEventLog(cfg.History.Capacity),
		routes:  routingtable.NewInMemoryRoutingTable(),
		errs:    make(chan error, 2),
	}

	observer := meshnodepkg.MultiObserver{
		eventlogpkg.Recorder(a.history),
		a.routes,
		observability.NewEventLogger(logger),
	}

	nodeConfig := meshnode.NewConfig(cfg.ListenAddress()).
		WithAdvertiseAddress(cfg.Node.AdvertiseAddress).
		WithPeerLinkConfig(&peerlink.Config{
			Network:        cfg.Node.Network,
			ReadBufferSize: cfg.Node.ReadBufferSize,
			DialTimeout:    cfg.Node.DialTimeout,
		}).
		WithLogger(logger.Named("node"))

	node, err := meshnode.NewTCPMeshNode(nodeConfig, observer)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("failed to start node: %w", err)
	}
	a.node = node

	if cfg.HTTP.Enabled {
		if err := a.setupHTTP(); err != nil {
			a.shutdown()
			return nil, err
		}
	}
	if cfg.GRPC.Enabled {
		if err := a.setupGRPC(); err != nil {
			a.shutdown()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) setupHTTP() error {
	server, err := httpapi.NewServer(a.node, a.history, a.routes, httpapi.Config{
		SecretKey:      a.cfg.HTTP.Secret,
		NoAuth:         a.cfg.HTTP.NoAuth,
		RateLimit:      a.cfg.HTTP.RateLimit,
		RateBurst:      a.cfg.HTTP.RateBurst,
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
		Logger:         a.logger.Named("http"),
	})
	if err != nil {
		return fmt.Errorf("failed to create http api: %w", err)
	}
	listener, err := net.Listen("tcp", a.cfg.HTTPAddress())
	if err != nil {
		return fmt.Errorf("failed to listen for http api: %w", err)
	}
	if a.cfg.HTTP.NoAuth {
		a.logger.Warn("http api running without authentication")
	}
	a.httpServer = server
	a.httpListener = listener
	return nil
}

func (a *app) setupGRPC() error {
	server, err := grpcapi.NewServer(a.node, a.routes, grpcapi.Config{
		Address: a.cfg.GRPC.Address,
		Logger:  a.logger.Named("grpc"),
	})
	if err != nil {
		return fmt.Errorf("failed to create grpc api: %w", err)
	}
	listener, err := net.Listen("tcp", a.cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("failed to listen for grpc api: %w", err)
	}
	a.grpcServer = server
	a.grpcListener = listener
	return nil
}

// start serves the control surfaces and joins the first reachable seed
func (a *app) start(ctx context.Context) {
	a.logger.Info("meshchat node started",
		zap.Stringer("endpoint", a.node.LocalEndpoint()),
		zap.String("version", appVersion),
	)

	if a.httpServer != nil {
		a.serve(func() error { return a.httpServer.Serve(a.httpListener) })
	}
	if a.grpcServer != nil {
		a.serve(func() error { return a.grpcServer.Serve(a.grpcListener) })
	}

	if len(a.cfg.Node.Seeds) == 0 {
		return
	}
	_, err := discovery.Bootstrap(ctx, a.node, discovery.NewStaticDiscovery(a.cfg.Node.Seeds), a.logger.Named("discovery"))
	if err != nil && !errors.Is(err, context.Canceled) {
		// a lone node is still a valid chat others can join
		a.logger.Warn("could not join any seed, waiting for peers", zap.Error(err))
	}
}

func (a *app) serve(fn func() error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(); err != nil {
			a.errs <- err
		}
	}()
}

// wait blocks until ctx is done, the node stops or a control surface fails
func (a *app) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-a.node.Done():
		return a.node.Err()
	case err := <-a.errs:
		return err
	}
}

// shutdown stops the control surfaces, then the node
func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http api: %w", err))
		}
	}
	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}
	// listeners that were never served are still open
	for _, l := range []net.Listener{a.httpListener, a.grpcListener} {
		if l != nil {
			_ = l.Close()
		}
	}
	if a.node != nil {
		if err := a.node.Close(); err != nil {
			errs = append(errs, fmt.Errorf("node: %w", err))
		}
	}
	a.wg.Wait()
	a.closeStores()

	a.logger.Info("meshchat node stopped")
	return errors.Join(errs...)
}

func (a *app) closeStores() {
	_ = a.routes.Close()
	_ = a.history.Close()
}
