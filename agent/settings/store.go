package settings

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrInvalidGuild = errors.New("guild id is empty")

const defaultKeyPrefix = "guildbot:settings:"

type Config struct {
	Addr     string        `envconfig:"ADDR" split_words:"true" default:"localhost:6379"`
	Password string        `envconfig:"PASSWORD" split_words:"true"`
	DB       int           `envconfig:"DB" default:"0"`
	TLS      bool          `envconfig:"TLS" default:"false"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"3s"`
}

// NewClient builds a go-redis client from cfg.
func NewClient(cfg Config) *redis.Client {
	opts := &redis.Options{
		Addr:         strings.TrimSpace(cfg.Addr),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

type StoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *RedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

// WithTTL expires saved settings after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// RedisStore keeps one JSON document per guild.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

var _ contractx.SettingsStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, opts ...StoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &RedisStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return s, nil
}

// Load returns the stored settings, or defaults for an unconfigured guild.
func (s *RedisStore) Load(ctx context.Context, guildID string) (contractx.GuildSettings, error) {
	key, err := s.key(guildID)
	if err != nil {
		return contractx.GuildSettings{}, err
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return contractx.DefaultGuildSettings(strings.TrimSpace(guildID)), nil
	}
	if err != nil {
		return contractx.GuildSettings{}, fmt.Errorf("get guild settings: %w", err)
	}

	settings := contractx.DefaultGuildSettings(strings.TrimSpace(guildID))
	if err := json.Unmarshal(raw, &settings); err != nil {
		return contractx.GuildSettings{}, fmt.Errorf("decode guild settings: %w", err)
	}
	settings.GuildID = strings.TrimSpace(guildID)
	return settings, nil
}

func (s *RedisStore) Save(ctx context.Context, settings contractx.GuildSettings) error {
	key, err := s.key(settings.GuildID)
	if err != nil {
		return err
	}
	if settings.MaxAward < 0 {
		return fmt.Errorf("%w: max award must not be negative", contractx.ErrValidation)
	}
	settings.UpdatedAt = s.now().UTC()

	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal guild settings: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set guild settings: %w", err)
	}

	log.Info().
		Str("guild_id", settings.GuildID).
		Strs("disabled_actions", settings.DisabledActions).
		Bool("leveling_enabled", settings.LevelingEnabled).
		Msg("guild settings saved")
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, guildID string) error {
	key, err := s.key(guildID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) key(guildID string) (string, error) {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return "", ErrInvalidGuild
	}
	return s.keyPrefix + guildID, nil
}
