// Package consul registers the HTTP service with a Consul agent and reads
// environment configuration overrides from the Consul KV store.
package consul

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	consulapi "github.com/hashicorp/consul/api"
)

// serviceName is the name the daemon registers under.
const serviceName = "siprouted"

// databaseURLKey is the KV key that, when set, overrides the configured
// database URL.
const databaseURLKey = "siprouted/database_url"

// Service wraps a Consul agent client and the identity of this node's
// registration.
type Service struct {
	client    *consulapi.Client
	serviceID string
	logger    *slog.Logger
}

// Connect dials the Consul agent at consulURI (e.g. "http://127.0.0.1:8500").
func Connect(consulURI string, logger *slog.Logger) (*Service, error) {
	u, err := url.Parse(consulURI)
	if err != nil {
		return nil, fmt.Errorf("parsing consul uri: %w", err)
	}

	cfg := consulapi.DefaultConfig()
	cfg.Address = u.Host
	if u.Scheme != "" {
		cfg.Scheme = u.Scheme
	}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}

	return &Service{
		client:    client,
		serviceID: fmt.Sprintf("%s-%s", serviceName, uuid.New()),
		logger:    logger.With("subsystem", "consul"),
	}, nil
}

// DatabaseURL returns the database URL override from the KV store, or empty
// when none is set.
func (s *Service) DatabaseURL() (string, error) {
	pair, _, err := s.client.KV().Get(databaseURLKey, nil)
	if err != nil {
		return "", fmt.Errorf("reading %s from consul: %w", databaseURLKey, err)
	}
	if pair == nil {
		return "", nil
	}
	return string(pair.Value), nil
}

// Register advertises the HTTP API with a health check against /status.
func (s *Service) Register(advertiseHost string, advertisePort int) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      s.serviceID,
		Name:    serviceName,
		Address: advertiseHost,
		Port:    advertisePort,
		Tags:    []string{serviceName, "sip-router", "routing-api"},
		Check: &consulapi.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%d/status", advertiseHost, advertisePort),
			Method:   "GET",
			Interval: "10s",
			Timeout:  "1s",
		},
	}
	if err := s.client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("registering service: %w", err)
	}
	s.logger.Info("service registered", "service_id", s.serviceID,
		"address", advertiseHost, "port", advertisePort)
	return nil
}

// Deregister removes this node's registration. Called on shutdown.
func (s *Service) Deregister() {
	if err := s.client.Agent().ServiceDeregister(s.serviceID); err != nil {
		s.logger.Error("deregistering service failed", "service_id", s.serviceID, "error", err)
		return
	}
	s.logger.Info("service deregistered", "service_id", s.serviceID)
}
