package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/repository"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/cache"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/printful"
	"go.uber.org/zap"
)

// ErrNoSizeGuide is returned for products not built from a provider catalog item.
var ErrNoSizeGuide = errors.New("product has no size guide")

// SizeGuideService serves provider size tables through a cache.
type SizeGuideService struct {
	store    repository.CatalogStore
	provider SizeGuideProvider
	cache    cache.Cache
	ttl      time.Duration
	log      *zap.Logger
}

func NewSizeGuideService(store repository.CatalogStore, provider SizeGuideProvider, c cache.Cache, ttl time.Duration, log *zap.Logger) *SizeGuideService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SizeGuideService{store: store, provider: provider, cache: c, ttl: ttl, log: log.Named("size-guide")}
}

// Get 获取商品尺码表
func (s *SizeGuideService) Get(ctx context.Context, productID uint) (*printful.SizeGuide, error) {
	if _, err := s.store.FindProductByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	variants, err := s.store.ListVariantsByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	var catalogID int64
	for _, v := range variants {
		if v.Link != nil && v.Link.ProductID != 0 {
			catalogID = v.Link.ProductID
			break
		}
	}
	if catalogID == 0 {
		return nil, ErrNoSizeGuide
	}

	key := fmt.Sprintf("size-guide:%d", catalogID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var guide printful.SizeGuide
		if err := json.Unmarshal(raw, &guide); err == nil {
			return &guide, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("size guide cache read failed", zap.Error(err))
	}

	guide, err := s.provider.GetSizeGuide(ctx, catalogID)
	if err != nil {
		if printful.IsNotFound(err) {
			return nil, ErrNoSizeGuide
		}
		return nil, fmt.Errorf("fetch size guide: %w", err)
	}
	if raw, err := json.Marshal(guide); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.Warn("size guide cache write failed", zap.Error(err))
		}
	}
	return guide, nil
}
