package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cinerank/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	defaultClientName = "cinerank"
	readyPollInterval = 100 * time.Millisecond
)

// Config holds connection parameters. The catalog, index, L2 cache and
// token budget share one logical database.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	ClientName string // reported in CLIENT LIST; defaults to "cinerank"
}

// Store implements db.Store over rueidis. It needs Redis 8+ or Redis Stack,
// where FT.* is built in.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the configured addresses.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	name := cfg.ClientName
	if name == "" {
		name = defaultClientName
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		ClientName:  name,
		// Server-assisted client caching would duplicate the L1 tier.
		DisableCache: true,
		// KNN replies are parsed as RESP2 arrays.
		AlwaysRESP2: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the server answers, then checks that the
// search module is loaded. A server without it fails immediately with
// db.ErrSearchUnavailable instead of waiting out the timeout.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err != nil {
				continue
			}
			err := s.checkSearch(ctx)
			if err == nil || errors.Is(err, db.ErrSearchUnavailable) {
				return err
			}
		}
	}
}

func (s *Store) checkSearch(ctx context.Context) error {
	err := s.do(ctx, s.b().Arbitrary("FT._LIST").Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "unknown command"):
		return &db.Error{Op: db.OpIndexList, Err: db.ErrSearchUnavailable}
	default:
		return &db.Error{Op: db.OpIndexList, Err: err}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server error mentioning substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
