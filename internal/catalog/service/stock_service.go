package service

import (
	"context"
	"fmt"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/repository"
	"github.com/develoddy/api-sequelize-sub002/internal/metrics"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/feishu"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/lock"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/printful"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Price change directions
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
)

var hundred = decimal.NewFromInt(100)

// StockService keeps prices and availability current and flags products the
// provider no longer lists. It never creates rows.
type StockService struct {
	store        repository.CatalogStore
	provider     CatalogProvider
	locker       lock.Locker
	lockTTL      time.Duration
	productDelay time.Duration
	log          *zap.Logger
	now          func() time.Time
	runNotifier
}

func NewStockService(store repository.CatalogStore, provider CatalogProvider, locker lock.Locker, lockTTL, productDelay time.Duration, log *zap.Logger) *StockService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockService{
		store:        store,
		provider:     provider,
		locker:       locker,
		lockTTL:      lockTTL,
		productDelay: productDelay,
		log:          log.Named("stock-sync"),
		now:          time.Now,
	}
}

// PriceChange 价格变动记录
type PriceChange struct {
	ProductID     uint            `json:"productId"`
	Product       string          `json:"product"`
	SKU           string          `json:"sku"`
	OldPrice      decimal.Decimal `json:"oldPrice"`
	NewPrice      decimal.Decimal `json:"newPrice"`
	PercentChange decimal.Decimal `json:"percentChange"`
	Direction     string          `json:"direction"`
}

// StockError is one product the stock sync could not process.
type StockError struct {
	Product string `json:"product"`
	Message string `json:"message"`
}

// StockSyncReport 库存同步统计
type StockSyncReport struct {
	Total        int           `json:"total"`
	Updated      int           `json:"updated"`
	Discontinued int           `json:"discontinued"`
	PriceChanges []PriceChange `json:"priceChanges"`
	Errors       []StockError  `json:"errors"`
	Duration     string        `json:"duration"`
}

// newPriceChange computes the delta. A change from zero counts as 100%.
func newPriceChange(product *entity.Product, sku string, oldPrice, newPrice decimal.Decimal) PriceChange {
	pc := PriceChange{
		ProductID: product.ID,
		Product:   product.Title,
		SKU:       sku,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		Direction: DirectionIncrease,
	}
	if newPrice.LessThan(oldPrice) {
		pc.Direction = DirectionDecrease
	}
	if oldPrice.IsZero() {
		pc.PercentChange = hundred
	} else {
		pc.PercentChange = newPrice.Sub(oldPrice).Div(oldPrice).Mul(hundred).Round(2)
	}
	return pc
}

// SyncStock walks the synced products one by one with a fixed delay between
// provider calls. Only a failed listing fails the run.
func (s *StockService) SyncStock(ctx context.Context) (*StockSyncReport, error) {
	release, err := acquireSyncLock(ctx, s.locker, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	start := s.now()
	report := &StockSyncReport{PriceChanges: []PriceChange{}, Errors: []StockError{}}
	err = s.syncStock(ctx, report)
	elapsed := s.now().Sub(start)
	metrics.RecordSync("stock", err, elapsed, map[string]int{
		"updated":      report.Updated,
		"discontinued": report.Discontinued,
		"errors":       len(report.Errors),
	})
	if err != nil {
		s.log.Error("stock sync failed", zap.Error(err))
		s.notify(ctx, s.log, true, func() feishu.InteractiveCard { return failureCard("Stock sync", err) })
		return nil, err
	}
	report.Duration = fmt.Sprintf("%.2fs", elapsed.Seconds())
	s.log.Info("stock sync finished",
		zap.Int("total", report.Total),
		zap.Int("updated", report.Updated),
		zap.Int("discontinued", report.Discontinued),
		zap.Int("price_changes", len(report.PriceChanges)),
		zap.Int("errors", len(report.Errors)),
	)
	s.notify(ctx, s.log, len(report.Errors) > 0, func() feishu.InteractiveCard { return stockCard(report) })
	return report, nil
}

func (s *StockService) syncStock(ctx context.Context, report *StockSyncReport) error {
	locals, err := s.store.ListSyncedProducts(ctx)
	if err != nil {
		return &StageError{Stage: "load", Err: err}
	}
	report.Total = len(locals)

	remote, err := s.provider.ListAll(ctx)
	if err != nil {
		return &StageError{Stage: "list", Err: err}
	}
	listed := make(map[int64]struct{}, len(remote))
	for _, p := range remote {
		listed[p.ID] = struct{}{}
	}

	fetched := 0
	for i := range locals {
		product := &locals[i]
		if _, ok := listed[*product.PrintfulID]; !ok {
			if product.Discontinued {
				continue
			}
			if err := s.store.UpdateProductFields(ctx, product.ID, discontinueFields(s.now())); err != nil {
				report.Errors = append(report.Errors, StockError{Product: product.Title, Message: err.Error()})
				continue
			}
			report.Discontinued++
			continue
		}

		if fetched > 0 {
			if err := sleepCtx(ctx, s.productDelay); err != nil {
				return &StageError{Stage: "products", Err: err}
			}
		}
		fetched++

		detail, err := s.provider.GetDetail(ctx, *product.PrintfulID)
		if err != nil {
			report.Errors = append(report.Errors, StockError{Product: product.Title, Message: err.Error()})
			continue
		}
		changes, changed, err := s.syncProduct(ctx, product, detail)
		if err != nil {
			report.Errors = append(report.Errors, StockError{Product: product.Title, Message: err.Error()})
			continue
		}
		report.PriceChanges = append(report.PriceChanges, changes...)
		if changed {
			report.Updated++
		}
	}
	return nil
}

// syncProduct matches variants by remote variant id and applies the changes in
// one transaction.
func (s *StockService) syncProduct(ctx context.Context, product *entity.Product, detail *printful.ProductDetail) ([]PriceChange, bool, error) {
	var changes []PriceChange
	changed := false

	err := s.store.Transaction(ctx, func(tx repository.CatalogStore) error {
		changes, changed = nil, false

		variants, err := tx.ListVariantsByProduct(ctx, product.ID)
		if err != nil {
			return fmt.Errorf("load variants: %w", err)
		}
		byRemoteID := make(map[int64]*printful.SyncVariant, len(detail.SyncVariants))
		for i := range detail.SyncVariants {
			rv := &detail.SyncVariants[i]
			if _, ok := byRemoteID[rv.ID]; !ok {
				byRemoteID[rv.ID] = rv
			}
		}

		for i := range variants {
			local := &variants[i]
			rv, ok := byRemoteID[local.PrintfulVariantID]
			if !ok {
				continue
			}
			want := &entity.Variedad{
				RetailPrice:        parsePrice(rv.RetailPrice),
				Currency:           rv.Currency,
				SKU:                rv.SKU,
				Name:               rv.Name,
				AvailabilityStatus: rv.AvailabilityStatus,
			}
			if want.SKU == "" {
				want.SKU = local.SKU
			}
			fields := diffFields(stockVariantRules, local, want)
			if len(fields) == 0 {
				continue
			}
			if err := tx.UpdateVariantFields(ctx, local.ID, fields); err != nil {
				return fmt.Errorf("update variant %s: %w", local.SKU, err)
			}
			changed = true
			if _, ok := fields["retail_price"]; ok {
				pc := newPriceChange(product, want.SKU, local.RetailPrice, want.RetailPrice)
				changes = append(changes, pc)
				s.log.Info("price changed",
					zap.String("product", product.Title),
					zap.String("sku", pc.SKU),
					zap.String("old", pc.OldPrice.StringFixed(2)),
					zap.String("new", pc.NewPrice.StringFixed(2)),
					zap.String("percent", pc.PercentChange.String()),
				)
			}
		}

		if primary := detail.Primary(); primary != nil {
			price := parsePrice(primary.RetailPrice)
			if !product.Price.Equal(price) || product.Currency != primary.Currency {
				if err := tx.UpdateProductFields(ctx, product.ID, map[string]interface{}{
					"price":    price,
					"currency": primary.Currency,
				}); err != nil {
					return fmt.Errorf("update product price: %w", err)
				}
				changed = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return changes, changed, nil
}
