/*
Package node assembles a registry node from its configuration: the storage
backend, the name registry, the resolver and the monitoring services.
*/
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/somnia-names/somns/pkg/config"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/somnia-names/somns/pkg/registry"
	"github.com/somnia-names/somns/pkg/resolver"
	"github.com/somnia-names/somns/pkg/services/metrics"
	"github.com/somnia-names/somns/pkg/services/notify"
	"go.uber.org/zap"
)

// Node is a registry node.
type Node struct {
	Registry *registry.Registry
	Resolver *resolver.Resolver

	cfg        config.ApplicationConfiguration
	log        *zap.Logger
	prometheus *metrics.Service
	pprof      *metrics.Service
	notify     *notify.Service
}

// New opens the configured store and creates registry services over it.
// now is used as a clock, time.Now is used if it's nil.
func New(cfg config.Config, log *zap.Logger, now func() time.Time) (*Node, error) {
	if log == nil {
		return nil, errors.New("empty logger")
	}
	st, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return nil, fmt.Errorf("could not initialize storage: %w", err)
	}
	reg, err := registry.New(registry.Config{
		RegistryConfiguration: cfg.Registry,
		CacheSize:             cfg.ApplicationConfiguration.CacheSize,
		Now:                   now,
	}, st, log)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("could not initialize registry: %w", err)
	}
	res, err := resolver.New(st, reg, log)
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("could not initialize resolver: %w", err)
	}
	return &Node{
		Registry:   reg,
		Resolver:   res,
		cfg:        cfg.ApplicationConfiguration,
		log:        log,
		prometheus: metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log),
		pprof:      metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log),
		notify:     notify.New(cfg.ApplicationConfiguration.Notifications, reg, log),
	}, nil
}

// Close releases the storage.
func (n *Node) Close() error {
	return n.Registry.Close()
}

// Run starts monitoring services and updates registry statistics until the
// context is done. It returns after the services are stopped.
func (n *Node) Run(ctx context.Context) error {
	if err := n.prometheus.Start(); err != nil {
		return err
	}
	defer n.prometheus.ShutDown()
	if err := n.pprof.Start(); err != nil {
		return err
	}
	defer n.pprof.ShutDown()
	if err := n.notify.Start(); err != nil {
		return err
	}
	defer n.notify.ShutDown()

	t := time.NewTicker(n.cfg.MonitorInterval)
	defer t.Stop()
	n.updateStats()
	for {
		select {
		case <-ctx.Done():
			n.log.Info("shutting down node")
			return nil
		case <-t.C:
			n.updateStats()
		}
	}
}

func (n *Node) updateStats() {
	s, err := n.Registry.GetStats()
	if err != nil {
		n.log.Error("failed to get registry stats", zap.Error(err))
		return
	}
	n.log.Debug("registry stats",
		zap.Int("active", s.Active),
		zap.Int("expired", s.Expired))
}

// PrometheusAddresses returns the addresses Prometheus service is bound to.
func (n *Node) PrometheusAddresses() []string {
	return n.prometheus.Addresses()
}

// NotificationsAddresses returns the addresses websocket notification
// service is bound to.
func (n *Node) NotificationsAddresses() []string {
	return n.notify.Addresses()
}
