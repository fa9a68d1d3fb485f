package kurrentdb

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/carecircle/guardrail/internal/shared/config"
	"go.uber.org/zap"
)

// Client owns the gRPC connection used by the KurrentDB audit sink
type Client struct {
	db  *esdb.Client
	log *zap.Logger
	mu  sync.RWMutex
}

// ConnectionString returns the esdb:// connection string for cfg
func ConnectionString(cfg config.KurrentDBConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = url.UserPassword(cfg.Username, cfg.Password).String() + "@"
	}

	var tls string
	if cfg.Insecure {
		tls = "?tls=false"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, tls)
}

// NewClient creates a client. No connection is made until first use.
func NewClient(cfg config.KurrentDBConfig, log *zap.Logger) (*Client, error) {
	settings, err := esdb.ParseConnectionString(ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	db, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{db: db, log: log.Named("kurrentdb")}, nil
}

// Connect verifies the server answers within 10 seconds
func (c *Client) Connect(ctx context.Context) error {
	if err := c.ping(ctx, 10*time.Second); err != nil {
		return fmt.Errorf("failed to verify connection: %w", err)
	}
	c.log.Info("connected to kurrentdb")
	return nil
}

// HealthCheck verifies the connection is alive
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.ping(ctx, 5*time.Second); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (c *Client) ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stream, err := c.DB().ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return err
	}
	stream.Close()
	return nil
}

// DB returns the underlying EventStore client
func (c *Client) DB() *esdb.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}
