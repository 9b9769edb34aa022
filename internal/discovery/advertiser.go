// Package discovery advertises the service on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/config"
	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
)

const (
	defaultService = "_telemetry._tcp"
	defaultDomain  = "local."
)

// Advertiser registers the HTTP endpoint as an mDNS service
type Advertiser struct {
	cfg    config.DiscoveryConfig
	port   int
	text   []string
	logger *logrus.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser prepares an advertisement for port. Empty fields in cfg get
// defaults: the host name as instance, _telemetry._tcp and local.
func NewAdvertiser(cfg config.DiscoveryConfig, port int, version string, logger *logrus.Logger) *Advertiser {
	if cfg.Instance == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "telemetry"
		}
		cfg.Instance = host
	}
	if cfg.Service == "" {
		cfg.Service = defaultService
	}
	if cfg.Domain == "" {
		cfg.Domain = defaultDomain
	}

	return &Advertiser{
		cfg:    cfg,
		port:   port,
		text:   []string{"version=" + version, "path=/api/v1"},
		logger: logger,
	}
}

// Start registers the service
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return fmt.Errorf("service already advertised")
	}

	server, err := zeroconf.Register(a.cfg.Instance, a.cfg.Service, a.cfg.Domain, a.port, a.text, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = server

	a.logger.WithFields(logrus.Fields{
		"instance": a.cfg.Instance,
		"service":  a.cfg.Service,
		"domain":   a.cfg.Domain,
		"port":     a.port,
	}).Info("mDNS service advertised")

	return nil
}

// Stop withdraws the advertisement
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mDNS service withdrawn")
}

// Instance is one advertised service found on the network
type Instance struct {
	Name  string   `json:"name"`
	Host  string   `json:"host"`
	Port  int      `json:"port"`
	Addrs []string `json:"addrs"`
	Text  []string `json:"text"`
}

// Browse lists instances of service on domain seen within timeout
func Browse(ctx context.Context, service, domain string, timeout time.Duration) ([]Instance, error) {
	if service == "" {
		service = defaultService
	}
	if domain == "" {
		domain = defaultDomain
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 10)
	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := resolver.Browse(browseCtx, service, domain, entries); err != nil {
		return nil, fmt.Errorf("mDNS browse failed: %w", err)
	}

	var found []Instance
	for {
		select {
		case <-browseCtx.Done():
			return found, nil
		case entry, ok := <-entries:
			if !ok {
				return found, nil
			}
			found = append(found, toInstance(entry))
		}
	}
}

func toInstance(entry *zeroconf.ServiceEntry) Instance {
	inst := Instance{
		Name: entry.Instance,
		Host: entry.HostName,
		Port: entry.Port,
		Text: entry.Text,
	}
	for _, ip := range entry.AddrIPv4 {
		inst.Addrs = append(inst.Addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		inst.Addrs = append(inst.Addrs, ip.String())
	}
	return inst
}
