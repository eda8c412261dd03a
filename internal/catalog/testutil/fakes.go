package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/develoddy/api-sequelize-sub002/internal/shared/feishu"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/printful"
)

// FakeProvider serves a mutable in-memory Printful store.
type FakeProvider struct {
	mu         sync.Mutex
	Products   []printful.ProductDetail
	Categories map[int64]printful.Category
	SizeGuides map[int64]printful.SizeGuide

	ListErr    error
	DetailErrs map[int64]error
	// ListHook runs at the start of ListAll, outside the fake's mutex.
	ListHook func()

	ListCalls      int
	DetailCalls    int
	CategoryCalls  int
	SizeGuideCalls int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Categories: map[int64]printful.Category{},
		SizeGuides: map[int64]printful.SizeGuide{},
		DetailErrs: map[int64]error{},
	}
}

// Set replaces the remote catalog.
func (p *FakeProvider) Set(products ...printful.ProductDetail) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Products = products
}

func (p *FakeProvider) ListAll(ctx context.Context) ([]printful.ProductSummary, error) {
	if p.ListHook != nil {
		p.ListHook()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListCalls++
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	out := make([]printful.ProductSummary, 0, len(p.Products))
	for _, d := range p.Products {
		out = append(out, d.SyncProduct)
	}
	return out, nil
}

func (p *FakeProvider) GetDetail(ctx context.Context, productID int64) (*printful.ProductDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetailCalls++
	if err := p.DetailErrs[productID]; err != nil {
		return nil, err
	}
	for _, d := range p.Products {
		if d.SyncProduct.ID == productID {
			detail := d
			detail.SyncVariants = append([]printful.SyncVariant(nil), d.SyncVariants...)
			return &detail, nil
		}
	}
	return nil, &printful.FetchError{Op: "get product", Path: fmt.Sprintf("/store/products/%d", productID), StatusCode: http.StatusNotFound, Err: fmt.Errorf("not found")}
}

func (p *FakeProvider) GetCategory(ctx context.Context, categoryID int64) (*printful.Category, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CategoryCalls++
	c, ok := p.Categories[categoryID]
	if !ok {
		return nil, &printful.FetchError{Op: "get category", Path: fmt.Sprintf("/categories/%d", categoryID), StatusCode: http.StatusNotFound, Err: fmt.Errorf("not found")}
	}
	return &c, nil
}

func (p *FakeProvider) GetSizeGuide(ctx context.Context, catalogProductID int64) (*printful.SizeGuide, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SizeGuideCalls++
	g, ok := p.SizeGuides[catalogProductID]
	if !ok {
		return nil, &printful.FetchError{Op: "get size guide", Path: fmt.Sprintf("/products/%d/sizes", catalogProductID), StatusCode: http.StatusNotFound, Err: fmt.Errorf("not found")}
	}
	return &g, nil
}

// Detail builds a remote product.
func Detail(id int64, name, thumbnail string, variants ...printful.SyncVariant) printful.ProductDetail {
	for i := range variants {
		variants[i].SyncProductID = id
	}
	return printful.ProductDetail{
		SyncProduct: printful.ProductSummary{
			ID:           id,
			Name:         name,
			ThumbnailURL: thumbnail,
			Variants:     len(variants),
			Synced:       len(variants),
		},
		SyncVariants: variants,
	}
}

// Variant builds a remote sync variant with one preview file.
func Variant(id int64, sku, size, color, price string, categoryID int64, previewURL string) printful.SyncVariant {
	v := printful.SyncVariant{
		ID:                 id,
		ExternalID:         fmt.Sprintf("ext-%d", id),
		Name:               sku,
		Synced:             true,
		VariantID:          id + 10000,
		MainCategoryID:     categoryID,
		RetailPrice:        price,
		Currency:           "EUR",
		SKU:                sku,
		Size:               size,
		Color:              color,
		AvailabilityStatus: "active",
		Product: printful.CatalogVariant{
			VariantID: id + 10000,
			ProductID: 71,
			Image:     "https://files.cdn.printful.com/products/71/catalog.jpg",
			Name:      "Catalog " + sku,
		},
		Options: []printful.Option{{ID: "embroidery_type", Value: []byte(`"flat"`)}},
	}
	if previewURL != "" {
		v.Files = []printful.File{
			{ID: id*10 + 1, Type: "default", URL: fmt.Sprintf("https://files.cdn.printful.com/files/d%d/design.png", id)},
			{ID: id*10 + 2, Type: "preview", PreviewURL: previewURL},
		}
	}
	return v
}

// FakeImages records downloads instead of touching the network or disk.
type FakeImages struct {
	mu        sync.Mutex
	stored    map[string]bool
	Downloads []string
	FailURLs  map[string]bool
}

func NewFakeImages() *FakeImages {
	return &FakeImages{stored: map[string]bool{}, FailURLs: map[string]bool{}}
}

func imageKey(kind imagestore.Kind, name string) string {
	return string(kind) + "/" + name
}

func (f *FakeImages) Exists(kind imagestore.Kind, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored[imageKey(kind, name)]
}

func (f *FakeImages) Download(ctx context.Context, url string, kind imagestore.Kind, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailURLs[url] {
		return fmt.Errorf("download %s: unexpected status 404 Not Found", url)
	}
	f.Downloads = append(f.Downloads, imageKey(kind, name))
	f.stored[imageKey(kind, name)] = true
	return nil
}

// Put marks an image as already present.
func (f *FakeImages) Put(kind imagestore.Kind, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[imageKey(kind, name)] = true
}

// DownloadCount returns the number of downloads so far.
func (f *FakeImages) DownloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Downloads)
}

// FakeNotifier records the cards it receives.
type FakeNotifier struct {
	mu    sync.Mutex
	Cards []feishu.InteractiveCard
	Err   error
}

func (n *FakeNotifier) SendCard(ctx context.Context, card feishu.InteractiveCard) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Cards = append(n.Cards, card)
	return n.Err
}

// Titles lists the header title of each received card.
func (n *FakeNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	titles := make([]string, 0, len(n.Cards))
	for _, c := range n.Cards {
		titles = append(titles, c.Header.Title.Content)
	}
	return titles
}
