package distillation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/magicfactory/internal/modules/noise"
)

// Cache is a byte store for previously computed results.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

// Service runs simulations at a fixed working precision, memoising results in
// an optional cache.
type Service struct {
	precision uint
	cache     Cache
	log       zerolog.Logger
}

// NewService creates a simulation service. cache may be nil.
func NewService(precision uint, cache Cache, log zerolog.Logger) *Service {
	if precision == 0 {
		precision = noise.DefaultPrecision
	}
	return &Service{
		precision: precision,
		cache:     cache,
		log:       log.With().Str("service", "distillation").Logger(),
	}
}

// Precision returns the working precision in bits.
func (s *Service) Precision() uint {
	return s.precision
}

// Estimate simulates proto at p. Cache failures are logged and otherwise ignored.
func (s *Service) Estimate(ctx context.Context, proto Protocol, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := CacheKey(proto, p, s.precision)

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to read cached result")
		} else if ok {
			var res Result
			if err := msgpack.Unmarshal(raw, &res); err == nil {
				return &res, nil
			}
			s.log.Warn().Str("key", key).Msg("Discarding undecodable cached result")
		}
	}

	start := time.Now()
	res, err := Simulate(proto, p, s.precision)
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("protocol", string(proto)).
		Float64("pout", res.Outcome.POut).
		Float64("pfail", res.Outcome.PFail).
		Dur("elapsed", time.Since(start)).
		Msg("Simulated factory")

	if s.cache != nil {
		raw, err := msgpack.Marshal(res)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to encode result for cache")
		} else if err := s.cache.Put(key, raw); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache result")
		}
	}
	return res, nil
}

// CacheKey identifies a simulation by everything that determines its output.
func CacheKey(proto Protocol, p Params, precision uint) string {
	return fmt.Sprintf("%s|%s|%d,%d,%d|%d,%d,%d|%d|%d",
		proto, strconv.FormatFloat(p.PPhys, 'g', -1, 64),
		p.DX, p.DZ, p.DM, p.DX2, p.DZ2, p.DM2, p.NL1, precision)
}
