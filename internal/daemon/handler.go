package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/larsks/omada-poe/internal/api"
	"github.com/larsks/omada-poe/internal/cli"
	"github.com/larsks/omada-poe/internal/coordinator"
	"github.com/larsks/omada-poe/internal/hub"
	"github.com/larsks/omada-poe/internal/mqtt"
	"github.com/larsks/omada-poe/internal/omada"
	"github.com/larsks/omada-poe/internal/poeswitch"
	"github.com/larsks/omada-poe/internal/store"
)

// ClientFactory connects to the controller site named in cfg.
type ClientFactory func(ctx context.Context, cfg *Config) (omada.SiteClient, error)

// Handler implements the CLI handler for omada-poe
type Handler struct {
	newClient ClientFactory
	timer     coordinator.Timer
}

// NewHandler creates a handler that talks to a real controller.
func NewHandler() *Handler {
	return &Handler{newClient: connectController}
}

func connectController(ctx context.Context, cfg *Config) (omada.SiteClient, error) {
	client, err := omada.NewClient(cfg.clientConfig())
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	site, err := client.Site(ctx, cfg.Controller.Site)
	if err != nil {
		return nil, err
	}
	return site, nil
}

// service is a fully wired omada-poe instance.
type service struct {
	store       *store.Store
	hub         *hub.Hub
	integration *poeswitch.Integration
	server      *api.Server
	mqtt        *mqtt.Client
}

// Start implements the CommandHandler interface
func (h *Handler) Start(ctx context.Context, config cli.Configurable) error {
	cfg, ok := config.(*Config)
	if !ok {
		return fmt.Errorf("%w: %T", ErrInvalidConfig, config)
	}

	svc, err := h.build(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	return svc.server.Start(ctx)
}

func (h *Handler) build(ctx context.Context, cfg *Config) (_ *service, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &service{}
	defer func() {
		if err != nil {
			svc.close()
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.RegistryDB), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	svc.store, err = store.Open(cfg.RegistryDB)
	if err != nil {
		return nil, err
	}

	svc.hub, err = hub.New(hub.WithStore(svc.store))
	if err != nil {
		return nil, err
	}

	client, err := h.newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller: %w", err)
	}

	svc.integration, err = poeswitch.New(client, svc.hub, poeswitch.Options{
		PollInterval: cfg.PollInterval,
		Timer:        h.timer,
	})
	if err != nil {
		return nil, err
	}

	if cfg.MQTT.Server != "" {
		bridge := mqtt.NewBridge(svc.hub, cfg.MQTT.Prefix)
		svc.hub.Subscribe(bridge.HandleStateChange)
		svc.mqtt, err = mqtt.NewClient(mqtt.Config{
			ServerURL: cfg.MQTT.Server,
			OnConnect: bridge.OnConnect,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := svc.integration.Setup(ctx); err != nil {
		return nil, err
	}

	svc.server, err = api.NewServer(cfg.apiConfig(), svc.hub, svc.integration)
	if err != nil {
		return nil, err
	}

	return svc, nil
}

func (s *service) close() {
	if s.integration != nil {
		s.integration.Teardown()
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect(250)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("failed to close registry: %v", err)
		}
	}
}
