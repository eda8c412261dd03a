package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/repository"
	"github.com/develoddy/api-sequelize-sub002/internal/metrics"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/feishu"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/lock"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/printful"
	"go.uber.org/zap"
)

// SyncService reconciles the local catalog with the Printful store.
type SyncService struct {
	store    repository.CatalogStore
	provider CatalogProvider
	images   ImageStore
	locker   lock.Locker
	lockTTL  time.Duration
	log      *zap.Logger
	now      func() time.Time
	runNotifier
}

func NewSyncService(store repository.CatalogStore, provider CatalogProvider, images ImageStore, locker lock.Locker, lockTTL time.Duration, log *zap.Logger) *SyncService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncService{
		store:    store,
		provider: provider,
		images:   images,
		locker:   locker,
		lockTTL:  lockTTL,
		log:      log.Named("catalog-sync"),
		now:      time.Now,
	}
}

// VariantStats 变体变更统计
type VariantStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// GalleryStats 图库变更统计
type GalleryStats struct {
	Created int `json:"created"`
	Deleted int `json:"deleted"`
}

// ItemError is one product that could not be reconciled.
type ItemError struct {
	PrintfulID int64  `json:"printfulId,omitempty"`
	Product    string `json:"product"`
	Message    string `json:"message"`
}

// SyncReport is the outcome of SyncCatalog.
type SyncReport struct {
	Sync              bool         `json:"sync"`
	ProductsProcessed int          `json:"productsProcessed"`
	Created           int          `json:"created"`
	Updated           int          `json:"updated"`
	Deleted           int          `json:"deleted"`
	Skipped           int          `json:"skipped"`
	Variants          VariantStats `json:"variants"`
	Galleries         GalleryStats `json:"galleries"`
	Errors            []ItemError  `json:"errors"`
	Duration          string       `json:"duration"`
	Timestamp         time.Time    `json:"timestamp"`
}

func (r *SyncReport) addError(id int64, product string, err error) {
	r.Errors = append(r.Errors, ItemError{PrintfulID: id, Product: product, Message: err.Error()})
}

// syncRun carries the per-run state.
type syncRun struct {
	report *SyncReport
	// remote category id -> local category id, nil when the category has no title
	categories map[int64]*uint
}

// SyncCatalog pulls the whole remote catalog and brings the local store in line.
// Only a failed listing fails the run; per-product failures land in Errors.
func (s *SyncService) SyncCatalog(ctx context.Context) (*SyncReport, error) {
	release, err := acquireSyncLock(ctx, s.locker, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	start := s.now()
	run := &syncRun{
		report:     &SyncReport{Errors: []ItemError{}, Timestamp: start},
		categories: make(map[int64]*uint),
	}
	report := run.report

	err = s.syncCatalog(ctx, run)
	elapsed := s.now().Sub(start)
	metrics.RecordSync("catalog", err, elapsed, map[string]int{
		"created":      report.Created,
		"updated":      report.Updated,
		"discontinued": report.Deleted,
		"skipped":      report.Skipped,
		"errors":       len(report.Errors),
	})
	if err != nil {
		s.log.Error("catalog sync failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		s.notify(ctx, s.log, true, func() feishu.InteractiveCard { return failureCard("Catalog sync", err) })
		return nil, err
	}

	report.Sync = true
	report.Duration = fmt.Sprintf("%.2fs", elapsed.Seconds())
	s.log.Info("catalog sync finished",
		zap.Int("processed", report.ProductsProcessed),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("discontinued", report.Deleted),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("elapsed", elapsed),
	)
	s.notify(ctx, s.log, len(report.Errors) > 0, func() feishu.InteractiveCard { return catalogCard(report) })
	return report, nil
}

func (s *SyncService) syncCatalog(ctx context.Context, run *syncRun) error {
	report := run.report

	remote, err := s.provider.ListAll(ctx)
	if err != nil {
		return &StageError{Stage: "list", Err: err}
	}

	locals, err := s.store.ListSyncedProducts(ctx)
	if err != nil {
		return &StageError{Stage: "load", Err: err}
	}

	remoteIDs := make(map[int64]struct{}, len(remote))
	for _, p := range remote {
		remoteIDs[p.ID] = struct{}{}
	}

	byRemoteID := make(map[int64]*entity.Product, len(locals))
	for i := range locals {
		p := &locals[i]
		byRemoteID[*p.PrintfulID] = p
		if _, ok := remoteIDs[*p.PrintfulID]; ok || p.Discontinued {
			continue
		}
		if err := s.store.UpdateProductFields(ctx, p.ID, discontinueFields(s.now())); err != nil {
			report.addError(*p.PrintfulID, p.Title, fmt.Errorf("discontinue: %w", err))
			continue
		}
		report.Deleted++
		s.log.Info("product discontinued", zap.Uint("id", p.ID), zap.Int64("printful_id", *p.PrintfulID))
	}

	for _, summary := range remote {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: "products", Err: err}
		}
		report.ProductsProcessed++

		detail, err := s.provider.GetDetail(ctx, summary.ID)
		if err != nil {
			report.addError(summary.ID, summary.Name, fmt.Errorf("fetch detail: %w", err))
			continue
		}

		local, ok := byRemoteID[summary.ID]
		if !ok {
			if err := s.createProduct(ctx, run, summary, detail); err != nil {
				report.addError(summary.ID, summary.Name, err)
				continue
			}
			report.Created++
			continue
		}

		reasons, err := s.drift(ctx, local, summary, detail)
		if err != nil {
			report.addError(summary.ID, summary.Name, err)
			continue
		}
		if len(reasons) == 0 {
			report.Skipped++
			continue
		}
		s.log.Debug("product drifted", zap.Int64("printful_id", summary.ID), zap.Strings("fields", reasons))
		if err := s.updateProduct(ctx, run, local, summary, detail); err != nil {
			report.addError(summary.ID, summary.Name, err)
			continue
		}
		report.Updated++
	}
	return nil
}

// drift names the cheap signals that differ. An empty result means the
// product is left untouched by this run.
func (s *SyncService) drift(ctx context.Context, local *entity.Product, summary printful.ProductSummary, detail *printful.ProductDetail) ([]string, error) {
	var reasons []string
	if local.Title != productTitle(summary, detail) {
		reasons = append(reasons, "title")
	}
	if local.IsIgnored != productIgnored(summary, detail) {
		reasons = append(reasons, "is_ignored")
	}
	if local.Discontinued {
		reasons = append(reasons, "discontinued")
	}
	if primary := detail.Primary(); primary != nil && !local.Price.Equal(parsePrice(primary.RetailPrice)) {
		reasons = append(reasons, "price")
	}

	variants, err := s.store.ListVariantsByProduct(ctx, local.ID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	localSKUs := make([]string, 0, len(variants))
	for _, v := range variants {
		localSKUs = append(localSKUs, v.SKU)
	}
	if !sameSet(localSKUs, remoteSKUs(detail)) {
		reasons = append(reasons, "variants")
	}
	return reasons, nil
}

func (s *SyncService) createProduct(ctx context.Context, run *syncRun, summary printful.ProductSummary, detail *printful.ProductDetail) error {
	categoryID, err := s.resolveCategory(ctx, run, detail)
	if err != nil {
		return err
	}

	product := s.desiredProduct(summary, detail, categoryID)
	remoteID := summary.ID
	product.PrintfulID = &remoteID
	product.Slug = Slugify(product.Title)
	product.State = entity.ProductStateActive

	s.fetchCover(ctx, summary, product.Portada)

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	s.log.Info("product created", zap.Uint("id", product.ID), zap.Int64("printful_id", remoteID), zap.String("slug", product.Slug))

	return s.reconcileChildren(ctx, run, product, detail)
}

func (s *SyncService) updateProduct(ctx context.Context, run *syncRun, local *entity.Product, summary printful.ProductSummary, detail *printful.ProductDetail) error {
	categoryID, err := s.resolveCategory(ctx, run, detail)
	if err != nil {
		s.log.Warn("category not resolved, keeping current", zap.Int64("printful_id", summary.ID), zap.Error(err))
		categoryID = local.CategoryID
	}

	want := s.desiredProduct(summary, detail, categoryID)
	fields := diffFields(productRules, local, want)
	if local.Discontinued {
		fields["discontinued"] = false
		fields["discontinued_at"] = nil
		fields["state"] = entity.ProductStateActive
	}
	if _, ok := fields["portada"]; ok {
		s.fetchCover(ctx, summary, want.Portada)
	}
	if err := s.store.UpdateProductFields(ctx, local.ID, fields); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return s.reconcileChildren(ctx, run, local, detail)
}

func (s *SyncService) reconcileChildren(ctx context.Context, run *syncRun, product *entity.Product, detail *printful.ProductDetail) error {
	var errs []error
	if err := s.reconcileVariants(ctx, product, detail.SyncVariants, &run.report.Variants); err != nil {
		errs = append(errs, err)
	}
	if err := s.reconcileGalleries(ctx, product, &run.report.Galleries); err != nil {
		errs = append(errs, fmt.Errorf("galleries: %w", err))
	}
	return errors.Join(errs...)
}

// desiredProduct is the product row the provider currently describes.
func (s *SyncService) desiredProduct(summary printful.ProductSummary, detail *printful.ProductDetail, categoryID *uint) *entity.Product {
	p := &entity.Product{
		Title:          productTitle(summary, detail),
		IsIgnored:      productIgnored(summary, detail),
		CategoryID:     categoryID,
		Portada:        imagestore.GenerateImageName(productThumbnail(summary, detail)),
		TypeInventario: entity.InventoryUnit,
	}
	if len(detail.SyncVariants) > 1 {
		p.TypeInventario = entity.InventoryVariant
	}
	if primary := detail.Primary(); primary != nil {
		p.SKU = productSKU(primary.SKU)
		p.Price = parsePrice(primary.RetailPrice)
		p.Currency = primary.Currency
	}
	return p
}

// fetchCover downloads the cover unless a file with that name is already on disk.
func (s *SyncService) fetchCover(ctx context.Context, summary printful.ProductSummary, name string) {
	url := summary.ThumbnailURL
	if name == "" || url == "" || s.images.Exists(imagestore.KindProduct, name) {
		return
	}
	if err := s.images.Download(ctx, url, imagestore.KindProduct, name); err != nil {
		s.log.Warn("cover download failed", zap.Int64("printful_id", summary.ID), zap.Error(err))
	}
}

// resolveCategory finds or creates the category named by the primary variant.
// The image is only fetched for a category this call created.
func (s *SyncService) resolveCategory(ctx context.Context, run *syncRun, detail *printful.ProductDetail) (*uint, error) {
	primary := detail.Primary()
	if primary == nil || primary.MainCategoryID == 0 {
		return nil, nil
	}
	if id, ok := run.categories[primary.MainCategoryID]; ok {
		return id, nil
	}

	remote, err := s.provider.GetCategory(ctx, primary.MainCategoryID)
	if err != nil {
		return nil, fmt.Errorf("fetch category %d: %w", primary.MainCategoryID, err)
	}
	title := strings.TrimSpace(remote.Title)
	if title == "" {
		run.categories[primary.MainCategoryID] = nil
		return nil, nil
	}

	existing, err := s.store.FindCategoryByTitle(ctx, title)
	switch {
	case err == nil:
		run.categories[primary.MainCategoryID] = &existing.ID
		return &existing.ID, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find category: %w", err)
	}

	remoteID := remote.ID
	category := &entity.Category{
		Title:      title,
		Imagen:     imagestore.GenerateImageName(remote.ImageURL),
		State:      1,
		PrintfulID: &remoteID,
	}
	created, err := s.store.CreateCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	if created && category.Imagen != "" {
		if err := s.images.Download(ctx, remote.ImageURL, imagestore.KindCategory, category.Imagen); err != nil {
			s.log.Warn("category image download failed", zap.String("category", title), zap.Error(err))
		}
		s.log.Info("category created", zap.Uint("id", category.ID), zap.String("title", title))
	}
	run.categories[primary.MainCategoryID] = &category.ID
	return &category.ID, nil
}

func productTitle(summary printful.ProductSummary, detail *printful.ProductDetail) string {
	if detail != nil && detail.SyncProduct.Name != "" {
		return detail.SyncProduct.Name
	}
	return summary.Name
}

func productIgnored(summary printful.ProductSummary, detail *printful.ProductDetail) bool {
	if detail != nil && detail.SyncProduct.ID != 0 {
		return detail.SyncProduct.IsIgnored
	}
	return summary.IsIgnored
}

func productThumbnail(summary printful.ProductSummary, detail *printful.ProductDetail) string {
	if summary.ThumbnailURL != "" {
		return summary.ThumbnailURL
	}
	if detail != nil {
		return detail.SyncProduct.ThumbnailURL
	}
	return ""
}

// remoteSKUs lists the distinct non-empty skus in payload order.
func remoteSKUs(detail *printful.ProductDetail) []string {
	seen := make(map[string]struct{}, len(detail.SyncVariants))
	skus := make([]string, 0, len(detail.SyncVariants))
	for _, v := range detail.SyncVariants {
		if v.SKU == "" {
			continue
		}
		if _, ok := seen[v.SKU]; ok {
			continue
		}
		seen[v.SKU] = struct{}{}
		skus = append(skus, v.SKU)
	}
	return skus
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
