package material

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type MaterialService struct {
	repo   MaterialRepo
	tracer trace.Tracer

	mu    sync.RWMutex
	cache Cache
}

// NewMaterialService builds the service. cache may be nil, in which case every
// lookup reads the store.
func NewMaterialService(repo MaterialRepo, cache Cache) *MaterialService {
	return &MaterialService{repo: repo, cache: cache, tracer: otel.Tracer("fabricqr/material")}
}

// UseCache swaps the cache; nil turns caching off. A cache is only correct
// while something calls Invalidate on store changes.
func (s *MaterialService) UseCache(cache Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cache
}

func (s *MaterialService) currentCache() Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// GetByQRCodeID serves from the cache when possible. Cache failures are
// logged and fall through to the store; not-found results are never cached.
func (s *MaterialService) GetByQRCodeID(ctx context.Context, qrCodeID string) (*Material, error) {
	ctx, span := s.tracer.Start(ctx, "MaterialService.GetByQRCodeID")
	defer span.End()
	span.SetAttributes(attribute.String("material.qr_code_id", qrCodeID))

	cache := s.currentCache()
	if cache != nil {
		m, ok, err := cache.Get(ctx, qrCodeID)
		if err != nil {
			slog.WarnContext(ctx, "material cache get failed", slog.String("qr_code_id", qrCodeID), slog.Any("error", err))
		} else if ok {
			span.SetAttributes(attribute.Bool("material.cache_hit", true))
			return m, nil
		}
	}

	m, err := s.repo.GetByQRCodeID(ctx, qrCodeID)
	if err != nil {
		if !errors.Is(err, ErrMaterialNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	if cache != nil {
		if err := cache.Set(ctx, m); err != nil {
			slog.WarnContext(ctx, "material cache set failed", slog.String("qr_code_id", qrCodeID), slog.Any("error", err))
		}
	}
	return m, nil
}

// Import upserts materials by qrCodeId. It stops at the first invalid or
// failed record and reports how many were written before it.
func (s *MaterialService) Import(ctx context.Context, materials []Material) (int, error) {
	cache := s.currentCache()
	for i := range materials {
		m := &materials[i]
		if m.Features == nil {
			m.Features = []string{}
		}
		if err := s.repo.Upsert(ctx, m); err != nil {
			return i, fmt.Errorf("material %d (%q): %w", i, m.QRCodeID, err)
		}
		if cache != nil {
			if err := cache.Set(ctx, m); err != nil {
				slog.WarnContext(ctx, "material cache set failed", slog.String("qr_code_id", m.QRCodeID), slog.Any("error", err))
			}
		}
	}
	return len(materials), nil
}

// Invalidate drops one cached material after it changed in the store.
func (s *MaterialService) Invalidate(ctx context.Context, qrCodeID string) {
	cache := s.currentCache()
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, qrCodeID); err != nil {
		slog.WarnContext(ctx, "material cache delete failed", slog.String("qr_code_id", qrCodeID), slog.Any("error", err))
	}
}

func (s *MaterialService) InvalidateAll(ctx context.Context) {
	cache := s.currentCache()
	if cache == nil {
		return
	}
	if err := cache.Purge(ctx); err != nil {
		slog.WarnContext(ctx, "material cache purge failed", slog.Any("error", err))
	}
}

func (s *MaterialService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
