package service

import (
	"context"
	"errors"
	"testing"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/testutil"
	"go.uber.org/zap"
)

func TestProductService_DeleteCascade(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.sync(t)
	products := NewProductService(f.store, zap.NewNop())
	ctx := context.Background()

	a := f.product(t, 100)
	result, err := products.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Delete A: %v", err)
	}
	if result.VariantsDeleted != 1 || result.GalleriesDeleted != 1 {
		t.Errorf("unexpected cascade %+v", result)
	}
	if result.CategoryDeleted {
		t.Error("category still used by B must survive")
	}
	if n := f.store.OrphanCount(); n != 0 {
		t.Errorf("%d orphaned rows", n)
	}

	b := f.product(t, 200)
	result, err = products.Delete(ctx, b.ID)
	if err != nil {
		t.Fatalf("Delete B: %v", err)
	}
	if !result.CategoryDeleted {
		t.Error("unreferenced category should be removed")
	}
	if f.store.CategoryCount() != 0 || f.store.ProductCount() != 0 {
		t.Errorf("store not empty: %d categories, %d products", f.store.CategoryCount(), f.store.ProductCount())
	}

	if _, err := products.Delete(ctx, b.ID); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductService_DeletedProductIsRecreated(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA())
	f.sync(t)
	products := NewProductService(f.store, zap.NewNop())

	if _, err := products.Delete(context.Background(), f.product(t, 100).ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	report := f.sync(t)
	if report.Created != 1 {
		t.Errorf("a hard-deleted product still listed remotely comes back: %+v", report)
	}
}

func TestProductService_GetBySlug(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.sync(t)
	products := NewProductService(f.store, zap.NewNop())
	ctx := context.Background()

	p, err := products.GetBySlug(ctx, "camiseta-basica")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if len(p.Variedades) != 1 || len(p.Galleries) != 1 || p.Category == nil {
		t.Errorf("product not fully loaded: %d variants, %d galleries", len(p.Variedades), len(p.Galleries))
	}

	if _, err := products.GetBySlug(ctx, "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}

	f.provider.Set(productA())
	f.sync(t)
	if _, err := products.GetBySlug(ctx, "sudadera-ninos"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("discontinued product must not be served, got %v", err)
	}
}

func TestProductService_GetBySlug_RecreatedProduct(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA())
	f.sync(t)

	// the provider re-creates the product under a new id with the same title
	f.provider.Set(testutil.Detail(101, "Camiseta Básica", thumbA,
		testutil.Variant(701, "A2-RED", "M", "Red", "19.50", catTShirts, previewRed),
	))
	report := f.sync(t)
	if report.Created != 1 || report.Deleted != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	p, err := NewProductService(f.store, zap.NewNop()).GetBySlug(context.Background(), "camiseta-basica")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if *p.PrintfulID != 101 {
		t.Errorf("expected the active product 101, got %d", *p.PrintfulID)
	}
}

func TestProductService_ListActivePaging(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.sync(t)
	products := NewProductService(f.store, zap.NewNop())
	ctx := context.Background()

	list, total, err := products.ListActive(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("expected 2 products, got %d of %d", len(list), total)
	}

	list, total, _ = products.ListActive(ctx, 2, 1)
	if total != 2 || len(list) != 1 || *list[0].PrintfulID != 100 {
		t.Errorf("page 2 should hold the oldest product")
	}

	list, _, _ = products.ListActive(ctx, 5, 1)
	if len(list) != 0 {
		t.Errorf("page past the end should be empty, got %d", len(list))
	}
}
