package service

import (
	"context"
	"fmt"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"go.uber.org/zap"
)

type galleryImage struct {
	name  string
	color string
	url   string
}

// expectedGallery lists the distinct preview images reachable from the
// product's variants, in variant order. The first variant to reach an image
// gives it its color.
func (s *SyncService) expectedGallery(ctx context.Context, productID uint) ([]galleryImage, error) {
	variants, err := s.store.ListVariantsByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	colors := make(map[uint]string, len(variants))
	for _, v := range variants {
		colors[v.ID] = v.Color
	}

	files, err := s.store.ListFilesByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}

	seen := make(map[string]struct{})
	var images []galleryImage
	for i := range files {
		f := &files[i]
		if !f.IsPreview() {
			continue
		}
		if _, ok := seen[f.ImageName]; ok {
			continue
		}
		seen[f.ImageName] = struct{}{}
		images = append(images, galleryImage{name: f.ImageName, color: colors[f.VariedadID], url: fileImageURL(f)})
	}
	return images, nil
}

// reconcileGalleries recomputes the gallery from the current variants: missing
// images are added, stale and duplicate rows removed.
func (s *SyncService) reconcileGalleries(ctx context.Context, product *entity.Product, stats *GalleryStats) error {
	expected, err := s.expectedGallery(ctx, product.ID)
	if err != nil {
		return err
	}
	want := make(map[string]struct{}, len(expected))
	for _, img := range expected {
		want[img.name] = struct{}{}
	}

	existing, err := s.store.ListGalleries(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("load galleries: %w", err)
	}
	kept := make(map[string]struct{}, len(existing))
	for _, g := range existing {
		_, wanted := want[g.Imagen]
		_, dup := kept[g.Imagen]
		if wanted && !dup {
			kept[g.Imagen] = struct{}{}
			continue
		}
		if err := s.store.DeleteGallery(ctx, g.ID); err != nil {
			return fmt.Errorf("delete gallery %d: %w", g.ID, err)
		}
		stats.Deleted++
	}

	for _, img := range expected {
		if _, ok := kept[img.name]; ok {
			continue
		}
		if img.url != "" && !s.images.Exists(imagestore.KindProduct, img.name) {
			if err := s.images.Download(ctx, img.url, imagestore.KindProduct, img.name); err != nil {
				s.log.Warn("gallery image download failed", zap.String("image", img.name), zap.Error(err))
			}
		}
		gallery := &entity.Gallery{ProductID: product.ID, Imagen: img.name, Color: img.color}
		if err := s.store.CreateGallery(ctx, gallery); err != nil {
			return fmt.Errorf("create gallery %s: %w", img.name, err)
		}
		stats.Created++
	}
	return nil
}
