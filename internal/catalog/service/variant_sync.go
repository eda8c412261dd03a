package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/repository"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/printful"
	"go.uber.org/zap"
)

// reconcileVariants makes the product's variants match the remote ones, keyed
// by sku. A failing variant is reported and the others still proceed.
func (s *SyncService) reconcileVariants(ctx context.Context, product *entity.Product, remote []printful.SyncVariant, stats *VariantStats) error {
	locals, err := s.store.ListVariantsByProduct(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	bySKU := make(map[string]*entity.Variedad, len(locals))
	for i := range locals {
		bySKU[locals[i].SKU] = &locals[i]
	}

	var errs []error
	wanted := make(map[string]struct{}, len(remote))
	for i := range remote {
		rv := &remote[i]
		if rv.SKU == "" {
			s.log.Warn("remote variant without sku skipped", zap.Int64("variant", rv.ID))
			continue
		}
		if _, dup := wanted[rv.SKU]; dup {
			s.log.Warn("duplicate remote sku ignored", zap.String("sku", rv.SKU), zap.Int64("variant", rv.ID))
			continue
		}
		wanted[rv.SKU] = struct{}{}

		if local, ok := bySKU[rv.SKU]; ok {
			changed, err := s.updateVariant(ctx, local, rv)
			if err != nil {
				errs = append(errs, fmt.Errorf("update variant %s: %w", rv.SKU, err))
				continue
			}
			if changed {
				stats.Updated++
			}
			continue
		}

		if err := s.createVariant(ctx, product.ID, rv); err != nil {
			errs = append(errs, fmt.Errorf("create variant %s: %w", rv.SKU, err))
			continue
		}
		stats.Created++
	}

	for i := range locals {
		local := &locals[i]
		if _, ok := wanted[local.SKU]; ok {
			continue
		}
		if err := s.store.DeleteVariantCascade(ctx, local.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete variant %s: %w", local.SKU, err))
			continue
		}
		stats.Deleted++
		s.log.Debug("variant deleted", zap.Uint("product", product.ID), zap.String("sku", local.SKU))
	}
	return errors.Join(errs...)
}

func (s *SyncService) updateVariant(ctx context.Context, local *entity.Variedad, rv *printful.SyncVariant) (bool, error) {
	want := desiredVariant(local.ProductID, rv)
	fields := diffFields(variantRules, local, want)
	if err := s.store.UpdateVariantFields(ctx, local.ID, fields); err != nil {
		return false, err
	}

	options := buildOptions(rv.Options)
	optionsChanged := !sameOptions(local.Options, options)
	if optionsChanged {
		if err := s.store.ReplaceOptions(ctx, local.ID, options); err != nil {
			return false, fmt.Errorf("replace options: %w", err)
		}
	}
	return len(fields) > 0 || optionsChanged, nil
}

// createVariant writes the variant, its link, files and options as one unit.
// A single file that fails is rolled back to its savepoint and skipped.
func (s *SyncService) createVariant(ctx context.Context, productID uint, rv *printful.SyncVariant) error {
	return s.store.Transaction(ctx, func(tx repository.CatalogStore) error {
		variant := desiredVariant(productID, rv)
		variant.AvailabilityStatus = rv.AvailabilityStatus
		if err := tx.CreateVariant(ctx, variant); err != nil {
			return err
		}

		link := &entity.ProductVariantLink{
			VariedadID: variant.ID,
			VariantID:  rv.Product.VariantID,
			ProductID:  rv.Product.ProductID,
			Image:      rv.Product.Image,
			Name:       rv.Product.Name,
		}
		if err := tx.CreateVariantLink(ctx, link); err != nil {
			return fmt.Errorf("create link: %w", err)
		}

		for _, rf := range rv.Files {
			file := buildFile(variant.ID, rf)
			err := tx.Transaction(ctx, func(ftx repository.CatalogStore) error {
				return ftx.CreateFile(ctx, file)
			})
			if err != nil {
				s.log.Warn("variant file skipped",
					zap.String("sku", rv.SKU),
					zap.Int64("file", rf.ID),
					zap.Error(err),
				)
			}
		}

		if options := buildOptions(rv.Options); len(options) > 0 {
			if err := tx.ReplaceOptions(ctx, variant.ID, options); err != nil {
				return fmt.Errorf("create options: %w", err)
			}
		}
		return nil
	})
}

func desiredVariant(productID uint, rv *printful.SyncVariant) *entity.Variedad {
	return &entity.Variedad{
		ProductID:         productID,
		PrintfulVariantID: rv.ID,
		VariantID:         rv.VariantID,
		ExternalID:        rv.ExternalID,
		Valor:             rv.Size,
		Color:             rv.Color,
		RetailPrice:       parsePrice(rv.RetailPrice),
		Currency:          rv.Currency,
		SKU:               rv.SKU,
		Name:              rv.Name,
	}
}

func buildFile(variantID uint, rf printful.File) *entity.File {
	f := &entity.File{
		VariedadID:     variantID,
		PrintfulFileID: rf.ID,
		Type:           rf.Type,
		URL:            rf.URL,
		PreviewURL:     rf.PreviewURL,
		ThumbnailURL:   rf.ThumbnailURL,
		Filename:       rf.Filename,
		MimeType:       rf.MimeType,
		Width:          rf.Width,
		Height:         rf.Height,
		DPI:            rf.DPI,
		Status:         rf.Status,
		Visible:        rf.Visible,
	}
	f.ImageName = imagestore.GenerateImageName(fileImageURL(f))
	return f
}

// fileImageURL is the URL the file's image is fetched from.
func fileImageURL(f *entity.File) string {
	if f.PreviewURL != "" {
		return f.PreviewURL
	}
	return f.URL
}

// buildOptions keeps string values as they are and stores anything else as JSON.
func buildOptions(remote []printful.Option) []entity.Option {
	options := make([]entity.Option, 0, len(remote))
	for _, ro := range remote {
		options = append(options, entity.Option{Key: ro.ID, Value: optionValue(ro.Value)})
	}
	return options
}

func optionValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func sameOptions(cur, want []entity.Option) bool {
	if len(cur) != len(want) {
		return false
	}
	for i := range cur {
		if cur[i].Key != want[i].Key || cur[i].Value != want[i].Value {
			return false
		}
	}
	return true
}
