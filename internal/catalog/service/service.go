package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/repository"
	"github.com/develoddy/api-sequelize-sub002/internal/config"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/cache"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/feishu"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/lock"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/printful"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SyncLockKey is held by both the catalog and the stock sync.
const SyncLockKey = "printful:sync"

// 错误定义
var (
	ErrSyncInProgress  = errors.New("a printful sync is already running")
	ErrProductNotFound = errors.New("product not found")
)

// StageError reports a run that failed as a whole, naming the stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("sync failed at stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CatalogProvider is the read-only remote catalog.
type CatalogProvider interface {
	ListAll(ctx context.Context) ([]printful.ProductSummary, error)
	GetDetail(ctx context.Context, productID int64) (*printful.ProductDetail, error)
	GetCategory(ctx context.Context, categoryID int64) (*printful.Category, error)
}

// SizeGuideProvider 尺码表来源
type SizeGuideProvider interface {
	GetSizeGuide(ctx context.Context, catalogProductID int64) (*printful.SizeGuide, error)
}

// ImageStore materializes remote images on local disk.
type ImageStore interface {
	Exists(kind imagestore.Kind, name string) bool
	Download(ctx context.Context, url string, kind imagestore.Kind, name string) error
}

// Services 服务集合
type Services struct {
	Sync      *SyncService
	Stock     *StockService
	Product   *ProductService
	SizeGuide *SizeGuideService
}

// NewServices 创建服务集合. A nil rdb selects the in-process lock and cache.
func NewServices(store repository.CatalogStore, client *printful.Client, images *imagestore.Store, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *Services {
	var locker lock.Locker
	var sizeCache cache.Cache
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, "lock:", log)
		sizeCache = cache.NewRedisCache(rdb, "cache:")
	} else {
		locker = lock.NewLocalLocker()
		sizeCache = cache.NewMemoryCache()
	}

	svc := &Services{
		Sync:      NewSyncService(store, client, images, locker, cfg.Sync.LockTTL, log),
		Stock:     NewStockService(store, client, locker, cfg.Sync.LockTTL, cfg.Printful.ProductDelay, log),
		Product:   NewProductService(store, log),
		SizeGuide: NewSizeGuideService(store, client, sizeCache, cfg.SizeGuide.CacheTTL, log),
	}
	if cfg.Notify.WebhookURL != "" {
		bot := feishu.NewBotClient(cfg.Notify.WebhookURL, cfg.Notify.Secret)
		svc.Sync.SetNotifier(bot, cfg.Notify.OnlyFailures)
		svc.Stock.SetNotifier(bot, cfg.Notify.OnlyFailures)
	}
	return svc
}

func acquireSyncLock(ctx context.Context, locker lock.Locker, ttl time.Duration) (func(), error) {
	release, err := locker.Acquire(ctx, SyncLockKey, ttl)
	if errors.Is(err, lock.ErrLocked) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, &StageError{Stage: "lock", Err: err}
	}
	return release, nil
}

// discontinueFields is the soft delete: the row and its history stay.
func discontinueFields(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"state":           entity.ProductStateInactive,
		"discontinued":    true,
		"discontinued_at": now,
	}
}

// parsePrice reads a provider price string. Unparseable prices read as zero.
func parsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
