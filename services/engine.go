package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ephembbs/models"
)

// Config holds the tunables of the engine.
type Config struct {
	FlagThreshold   int
	DefaultTTL      time.Duration
	MaxTTL          time.Duration
	MaxBodyLength   int
	SweepOnRead     bool
	DefaultMute     time.Duration
	PopupMaxReplies int
	PopupMaxMinutes int
	StatusCacheTTL  time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FlagThreshold:   3,
		DefaultTTL:      30 * 24 * time.Hour,
		MaxTTL:          365 * 24 * time.Hour,
		MaxBodyLength:   2000,
		SweepOnRead:     true,
		DefaultMute:     time.Hour,
		PopupMaxReplies: 1000,
		PopupMaxMinutes: 7 * 24 * 60,
		StatusCacheTTL:  5 * time.Minute,
	}
}

// StatusCache stores small JSON values for restriction lookups.
// Implementations are best-effort; a miss falls through to the database.
type StatusCache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// Publisher pushes notification events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Actor is the verified identity performing an operation.
type Actor struct {
	UserID   uint
	Username string
	Role     string
}

// Elevated reports whether the actor may moderate.
func (a Actor) Elevated() bool { return models.IsElevatedRole(a.Role) }

// Engine implements content lifecycle and moderation state.
type Engine struct {
	db        *gorm.DB
	cfg       Config
	now       func() time.Time
	log       *zap.Logger
	cache     StatusCache
	publisher Publisher
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithStatusCache enables caching of mute and ban lookups.
func WithStatusCache(c StatusCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithPublisher enables push of stored notifications.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// New builds an Engine on top of db.
func New(db *gorm.DB, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.FlagThreshold <= 0 {
		cfg.FlagThreshold = def.FlagThreshold
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.MaxTTL < cfg.DefaultTTL {
		cfg.MaxTTL = cfg.DefaultTTL
	}
	if cfg.MaxBodyLength <= 0 {
		cfg.MaxBodyLength = def.MaxBodyLength
	}
	if cfg.DefaultMute <= 0 {
		cfg.DefaultMute = def.DefaultMute
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = def.StatusCacheTTL
	}
	e := &Engine{
		db:    db,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		log:   zap.NewNop(),
		cache: noopCache{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) dbx(ctx context.Context) *gorm.DB {
	return e.db.WithContext(ctx)
}

// notFound maps a missing record to kind while passing through other errors.
func notFound(err error, kind *Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kind
	}
	return err
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, any) bool          { return false }
func (noopCache) Set(context.Context, string, any, time.Duration) {}
func (noopCache) Delete(context.Context, ...string)               {}
