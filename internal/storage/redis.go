package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/constants"
	"docintel-go/internal/nlp"
	"docintel-go/internal/tracing"
	"docintel-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var redisTracer = otel.Tracer("docintel-go/storage/redis")

// Redis wraps the client used for upload dedup and small caches.
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

var _ nlp.VectorCache = (*Redis)(nil)

// NewRedisAdapter connects and instruments the client with OpenTelemetry.
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) md5Expire() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

func (r *Redis) vectorExpire() time.Duration {
	if r.config.VectorExpireDays <= 0 {
		return constants.VectorCacheTTL
	}
	return time.Duration(r.config.VectorExpireDays) * 24 * time.Hour
}

func (r *Redis) settingsTTL() time.Duration {
	if r.config.SettingsCacheSeconds <= 0 {
		return constants.SettingsCacheTTL
	}
	return time.Duration(r.config.SettingsCacheSeconds) * time.Second
}

// CheckAndRecordFileMD5 records md5 for documentID unless it is already
// known. For a known md5 it returns true and the first document's ID.
func (r *Redis) CheckAndRecordFileMD5(ctx context.Context, md5, documentID string) (bool, string, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndRecordFileMD5", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.Int("db.redis.database", r.config.DB),
		attribute.String("db.redis.key", constants.KeyFileMD5Set),
		attribute.String("file.md5", md5),
	)

	dup, existing, err := r.checkAndSetMD5(ctx, md5, documentID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, "", err
	}
	span.SetAttributes(attribute.Bool("already_exists", dup))
	span.SetStatus(codes.Ok, "")
	return dup, existing, nil
}

func (r *Redis) checkAndSetMD5(ctx context.Context, md5, documentID string) (bool, string, error) {
	setKey := constants.KeyFileMD5Set
	mapKey := fmt.Sprintf(constants.KeyFileMD5ToDocumentID, md5)

	exists, err := r.Client.SIsMember(ctx, setKey, md5).Result()
	if err != nil {
		return false, "", fmt.Errorf("check md5 membership: %w", err)
	}
	if exists {
		existing, err := r.Client.Get(ctx, mapKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return true, "", fmt.Errorf("read document id for md5: %w", err)
		}
		return true, existing, nil
	}

	pipe := r.Client.Pipeline()
	addCmd := pipe.SAdd(ctx, setKey, md5)
	setNXCmd := pipe.SetNX(ctx, mapKey, documentID, r.md5Expire())
	pipe.Expire(ctx, setKey, r.md5Expire())
	if _, err := pipe.Exec(ctx); err != nil {
		return false, "", fmt.Errorf("record md5: %w", err)
	}
	if addCmd.Val() > 0 && setNXCmd.Val() {
		return false, "", nil
	}
	// Lost a race with a concurrent upload of the same file.
	existing, err := r.Client.Get(ctx, mapKey).Result()
	if err != nil {
		return true, "", fmt.Errorf("read document id for md5: %w", err)
	}
	return true, existing, nil
}

// RemoveFileMD5 forgets an upload so the same file can be processed again.
func (r *Redis) RemoveFileMD5(ctx context.Context, md5 string) error {
	pipe := r.Client.TxPipeline()
	pipe.SRem(ctx, constants.KeyFileMD5Set, md5)
	pipe.Del(ctx, fmt.Sprintf(constants.KeyFileMD5ToDocumentID, md5))
	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedSettings returns the cached settings, if any.
func (r *Redis) GetCachedSettings(ctx context.Context) (types.ExtractionSettings, bool, error) {
	var s types.ExtractionSettings
	raw, err := r.Client.Get(ctx, constants.KeyExtractionSettings).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, false, fmt.Errorf("decode cached settings: %w", err)
	}
	return s, true, nil
}

// CacheSettings stores s for the configured TTL.
func (r *Redis) CacheSettings(ctx context.Context, s types.ExtractionSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, constants.KeyExtractionSettings, raw, r.settingsTTL()).Err()
}

// InvalidateSettings drops the cached settings.
func (r *Redis) InvalidateSettings(ctx context.Context) error {
	return r.Client.Del(ctx, constants.KeyExtractionSettings).Err()
}

// GetVector implements nlp.VectorCache.
func (r *Redis) GetVector(ctx context.Context, key string) ([]float64, bool, error) {
	raw, err := r.Client.Get(ctx, fmt.Sprintf(constants.KeyEmbeddingVector, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// SetVector implements nlp.VectorCache.
func (r *Redis) SetVector(ctx context.Context, key string, vector []float64) error {
	return r.Client.Set(ctx, fmt.Sprintf(constants.KeyEmbeddingVector, key), encodeVector(vector), r.vectorExpire()).Err()
}

// encodeVector packs the vector as little-endian float32 values.
func encodeVector(v []float64) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(f)))
	}
	return out
}

func decodeVector(raw []byte) ([]float64, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes", len(raw))
	}
	out := make([]float64, len(raw)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}
	return out, nil
}
