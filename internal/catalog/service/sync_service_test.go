package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/testutil"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/lock"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/printful"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	catTShirts   = int64(24)
	thumbA       = "https://files.cdn.printful.com/files/t1/cover-a.png"
	thumbB       = "https://files.cdn.printful.com/files/t2/cover-b.png"
	previewRed   = "https://files.cdn.printful.com/files/p1/red.png?v=1"
	previewBlue  = "https://files.cdn.printful.com/files/p2/blue.png?v=1"
	previewGreen = "https://files.cdn.printful.com/files/p3/green.png"
)

type syncFixture struct {
	svc      *SyncService
	store    *testutil.MemStore
	provider *testutil.FakeProvider
	images   *testutil.FakeImages
	locker   *lock.LocalLocker
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	store := testutil.NewMemStore()
	provider := testutil.NewFakeProvider()
	provider.Categories[catTShirts] = printful.Category{
		ID:       catTShirts,
		Title:    "T-Shirts",
		ImageURL: "https://files.cdn.printful.com/upload/catalog_category/24/tshirts.jpg",
	}
	images := testutil.NewFakeImages()
	locker := lock.NewLocalLocker()
	return &syncFixture{
		svc:      NewSyncService(store, provider, images, locker, time.Minute, zap.NewNop()),
		store:    store,
		provider: provider,
		images:   images,
		locker:   locker,
	}
}

func (f *syncFixture) sync(t *testing.T) *SyncReport {
	t.Helper()
	report, err := f.svc.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	if !report.Sync {
		t.Fatal("report.Sync should be true")
	}
	return report
}

func (f *syncFixture) product(t *testing.T, printfulID int64) entity.Product {
	t.Helper()
	products, _ := f.store.ListSyncedProducts(context.Background())
	for _, p := range products {
		if *p.PrintfulID == printfulID {
			return p
		}
	}
	t.Fatalf("product %d not stored", printfulID)
	return entity.Product{}
}

func (f *syncFixture) skus(t *testing.T, productID uint) []string {
	t.Helper()
	variants, _ := f.store.ListVariantsByProduct(context.Background(), productID)
	var skus []string
	for _, v := range variants {
		skus = append(skus, v.SKU)
	}
	sort.Strings(skus)
	return skus
}

func (f *syncFixture) galleryNames(t *testing.T, productID uint) []string {
	t.Helper()
	galleries, _ := f.store.ListGalleries(context.Background(), productID)
	var names []string
	for _, g := range galleries {
		names = append(names, g.Imagen)
	}
	sort.Strings(names)
	return names
}

func productA(variants ...printful.SyncVariant) printful.ProductDetail {
	if len(variants) == 0 {
		variants = []printful.SyncVariant{testutil.Variant(501, "A1-RED", "M", "Red", "19.50", catTShirts, previewRed)}
	}
	return testutil.Detail(100, "Camiseta Básica", thumbA, variants...)
}

func productB() printful.ProductDetail {
	return testutil.Detail(200, "Sudadera Niños", thumbB,
		testutil.Variant(601, "B1_S", "S", "Black", "35.00", catTShirts, previewGreen),
	)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSyncCatalog_CreatesProductTree(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA())

	report := f.sync(t)
	if report.Created != 1 || report.ProductsProcessed != 1 {
		t.Fatalf("expected 1 created of 1 processed, got %+v", report)
	}
	if report.Variants.Created != 1 || report.Galleries.Created != 1 {
		t.Errorf("unexpected child stats: %+v / %+v", report.Variants, report.Galleries)
	}

	p := f.product(t, 100)
	if p.Slug != "camiseta-basica" {
		t.Errorf("Slug = %q", p.Slug)
	}
	if p.SKU != "A1-RED" || !p.Price.Equal(decimal.RequireFromString("19.50")) || p.Currency != "EUR" {
		t.Errorf("unexpected product fields: sku=%s price=%s currency=%s", p.SKU, p.Price, p.Currency)
	}
	if p.State != entity.ProductStateActive || p.TypeInventario != entity.InventoryUnit {
		t.Errorf("state=%d type_inventario=%d", p.State, p.TypeInventario)
	}
	if p.Portada != "t1-cover-a.png" {
		t.Errorf("Portada = %q", p.Portada)
	}
	if p.CategoryID == nil {
		t.Fatal("category not linked")
	}
	cat, err := f.store.FindCategoryByID(context.Background(), *p.CategoryID)
	if err != nil || cat.Title != "T-Shirts" || cat.Imagen != "24-tshirts.jpg" {
		t.Errorf("unexpected category %+v, %v", cat, err)
	}

	variants, _ := f.store.ListVariantsByProduct(context.Background(), p.ID)
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}
	v := variants[0]
	if v.PrintfulVariantID != 501 || v.Valor != "M" || v.Color != "Red" || v.Link == nil || v.Link.ProductID != 71 {
		t.Errorf("unexpected variant %+v", v)
	}
	if len(v.Options) != 1 || v.Options[0].Key != "embroidery_type" || v.Options[0].Value != "flat" {
		t.Errorf("unexpected options %+v", v.Options)
	}
	if files := f.store.FilesOfVariant(v.ID); len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}

	if got := f.galleryNames(t, p.ID); !equalStrings(got, []string{"p1-red.png"}) {
		t.Errorf("galleries = %v", got)
	}
	for _, img := range []struct {
		kind imagestore.Kind
		name string
	}{
		{imagestore.KindCategory, "24-tshirts.jpg"},
		{imagestore.KindProduct, "t1-cover-a.png"},
		{imagestore.KindProduct, "p1-red.png"},
	} {
		if !f.images.Exists(img.kind, img.name) {
			t.Errorf("image %s/%s not downloaded", img.kind, img.name)
		}
	}
}

func TestSyncCatalog_Idempotent(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(
		testutil.Variant(501, "A1-RED", "M", "Red", "19.50", catTShirts, previewRed),
		testutil.Variant(502, "A1-BLUE", "L", "Blue", "21.00", catTShirts, previewBlue),
	), productB())

	first := f.sync(t)
	if first.Created != 2 {
		t.Fatalf("first run: expected 2 created, got %+v", first)
	}
	writes := f.store.Writes
	downloads := f.images.DownloadCount()

	second := f.sync(t)
	if second.Created != 0 || second.Updated != 0 || second.Deleted != 0 {
		t.Errorf("second run must not change anything: %+v", second)
	}
	if second.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", second.Skipped)
	}
	if second.Variants != (VariantStats{}) || second.Galleries != (GalleryStats{}) {
		t.Errorf("unexpected child stats: %+v %+v", second.Variants, second.Galleries)
	}
	if f.store.Writes != writes {
		t.Errorf("second run wrote %d times", f.store.Writes-writes)
	}
	if f.images.DownloadCount() != downloads {
		t.Errorf("second run downloaded %d images", f.images.DownloadCount()-downloads)
	}
}

func TestSyncCatalog_SKURenameScenario(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA())

	f.sync(t)
	p := f.product(t, 100)
	if got := f.skus(t, p.ID); !equalStrings(got, []string{"A1-RED"}) {
		t.Fatalf("skus after first sync = %v", got)
	}

	writes := f.store.Writes
	unchanged := f.sync(t)
	if unchanged.Skipped != 1 || f.store.Writes != writes {
		t.Fatalf("unchanged remote must produce zero writes: %+v", unchanged)
	}

	f.provider.Set(productA(testutil.Variant(502, "A1-BLUE", "M", "Blue", "19.50", catTShirts, previewBlue)))
	report := f.sync(t)
	if report.Updated != 1 {
		t.Fatalf("expected product update, got %+v", report)
	}
	if report.Variants.Created != 1 || report.Variants.Deleted != 1 {
		t.Errorf("variant stats = %+v", report.Variants)
	}
	if report.Galleries.Created != 1 || report.Galleries.Deleted != 1 {
		t.Errorf("gallery stats = %+v", report.Galleries)
	}
	if got := f.skus(t, p.ID); !equalStrings(got, []string{"A1-BLUE"}) {
		t.Errorf("skus = %v", got)
	}
	if got := f.galleryNames(t, p.ID); !equalStrings(got, []string{"p2-blue.png"}) {
		t.Errorf("galleries = %v", got)
	}
	if n := f.store.OrphanCount(); n != 0 {
		t.Errorf("%d orphaned rows left behind", n)
	}
	if got := f.product(t, 100).SKU; got != "A1-BLUE" {
		t.Errorf("product sku = %q", got)
	}
}

func TestSyncCatalog_DiscontinuesMissingProduct(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.sync(t)

	f.provider.Set(productA())
	report := f.sync(t)
	if report.Deleted != 1 || report.Skipped != 1 {
		t.Fatalf("expected 1 discontinued and 1 skipped, got %+v", report)
	}

	b := f.product(t, 200)
	if !b.Discontinued || b.State != entity.ProductStateInactive || b.DiscontinuedAt == nil {
		t.Errorf("product B not discontinued: %+v", b)
	}
	if f.store.ProductCount() != 2 {
		t.Errorf("row must be kept, have %d products", f.store.ProductCount())
	}
	if got := f.skus(t, b.ID); !equalStrings(got, []string{"B1_S"}) {
		t.Errorf("variant history lost: %v", got)
	}

	active, total, _ := f.store.ListActiveProducts(context.Background(), 1, 20)
	if total != 1 || len(active) != 1 || *active[0].PrintfulID != 100 {
		t.Errorf("active listing should only hold A, got %d", total)
	}

	writes := f.store.Writes
	again := f.sync(t)
	if again.Deleted != 0 || f.store.Writes != writes {
		t.Errorf("already discontinued product must be left alone: %+v", again)
	}
}

func TestSyncCatalog_ReactivatesProduct(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.sync(t)
	f.provider.Set(productA())
	f.sync(t)

	f.provider.Set(productA(), productB())
	report := f.sync(t)
	if report.Updated != 1 {
		t.Fatalf("expected reactivation update, got %+v", report)
	}
	b := f.product(t, 200)
	if b.Discontinued || b.State != entity.ProductStateActive || b.DiscontinuedAt != nil {
		t.Errorf("product B not reactivated: %+v", b)
	}
}

func TestSyncCatalog_VariantSetCompleteness(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(
		testutil.Variant(501, "A1_RED_S", "S", "Red", "19.50", catTShirts, previewRed),
		testutil.Variant(502, "A1_RED_M", "M", "Red", "19.50", catTShirts, previewRed),
		testutil.Variant(503, "A1_RED_M", "M", "Red", "19.50", catTShirts, previewRed),
		testutil.Variant(504, "", "XL", "Red", "19.50", catTShirts, previewRed),
	))

	report := f.sync(t)
	p := f.product(t, 100)
	if got := f.skus(t, p.ID); !equalStrings(got, []string{"A1_RED_M", "A1_RED_S"}) {
		t.Fatalf("skus = %v", got)
	}
	if report.Variants.Created != 2 {
		t.Errorf("expected 2 variants created, got %+v", report.Variants)
	}
	if p.SKU != "A1" || p.TypeInventario != entity.InventoryVariant {
		t.Errorf("sku=%q type_inventario=%d", p.SKU, p.TypeInventario)
	}

	variants, _ := f.store.ListVariantsByProduct(context.Background(), p.ID)
	for _, v := range variants {
		if v.SKU == "A1_RED_M" && v.PrintfulVariantID != 502 {
			t.Errorf("first duplicate must win, got variant %d", v.PrintfulVariantID)
		}
	}

	// a shared preview yields a single gallery row
	if got := f.galleryNames(t, p.ID); !equalStrings(got, []string{"p1-red.png"}) {
		t.Errorf("galleries = %v", got)
	}
}

func TestSyncCatalog_UpdatesChangedVariantFields(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA())
	f.sync(t)

	changed := testutil.Variant(501, "A1-RED", "L", "Crimson", "24.90", catTShirts, previewRed)
	changed.Options = []printful.Option{
		{ID: "embroidery_type", Value: []byte(`"3d-puff"`)},
		{ID: "thread_colors", Value: []byte(`["#FFFFFF","#000000"]`)},
	}
	f.provider.Set(productA(changed))

	report := f.sync(t)
	if report.Updated != 1 || report.Variants.Updated != 1 {
		t.Fatalf("expected one product and one variant update, got %+v", report)
	}
	p := f.product(t, 100)
	if !p.Price.Equal(decimal.RequireFromString("24.90")) {
		t.Errorf("product price = %s", p.Price)
	}
	variants, _ := f.store.ListVariantsByProduct(context.Background(), p.ID)
	v := variants[0]
	if v.Valor != "L" || v.Color != "Crimson" || !v.RetailPrice.Equal(decimal.RequireFromString("24.90")) {
		t.Errorf("variant not updated: %+v", v)
	}
	if len(v.Options) != 2 || v.Options[0].Value != "3d-puff" || v.Options[1].Value != `["#FFFFFF","#000000"]` {
		t.Errorf("options not replaced: %+v", v.Options)
	}
}

func TestSyncCatalog_GalleryCollapsesStaleRows(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA())
	f.sync(t)
	p := f.product(t, 100)

	f.store.InsertGalleryRaw(entity.Gallery{ProductID: p.ID, Imagen: "p1-red.png", Color: "Red"})
	f.store.InsertGalleryRaw(entity.Gallery{ProductID: p.ID, Imagen: "old-preview.png"})

	// a price change sends the product through the update path
	f.provider.Set(productA(testutil.Variant(501, "A1-RED", "M", "Red", "18.00", catTShirts, previewRed)))
	report := f.sync(t)
	if report.Galleries.Deleted != 2 || report.Galleries.Created != 0 {
		t.Errorf("gallery stats = %+v", report.Galleries)
	}
	if got := f.galleryNames(t, p.ID); !equalStrings(got, []string{"p1-red.png"}) {
		t.Errorf("galleries = %v", got)
	}
}

func TestSyncCatalog_SharedCategoryCreatedOnce(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.sync(t)

	if n := f.store.CategoryCount(); n != 1 {
		t.Errorf("expected 1 category, got %d", n)
	}
	if f.provider.CategoryCalls != 1 {
		t.Errorf("category should be fetched once per run, got %d", f.provider.CategoryCalls)
	}
	n := 0
	for _, d := range f.images.Downloads {
		if d == "categorie/24-tshirts.jpg" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("category image downloaded %d times", n)
	}
}

func TestSyncCatalog_ExistingImagesNotDownloaded(t *testing.T) {
	f := newSyncFixture(t)
	f.images.Put(imagestore.KindProduct, "t1-cover-a.png")
	f.images.Put(imagestore.KindProduct, "p1-red.png")
	f.provider.Set(productA())

	f.sync(t)
	for _, d := range f.images.Downloads {
		if d == "product/t1-cover-a.png" || d == "product/p1-red.png" {
			t.Errorf("existing image %s downloaded again", d)
		}
	}
}

func TestSyncCatalog_ListFailureAborts(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.ListErr = &printful.FetchError{Op: "list products", Path: "/store/products", StatusCode: 503, Attempts: 4, Err: errors.New("unavailable")}

	report, err := f.svc.SyncCatalog(context.Background())
	if report != nil {
		t.Error("expected no report")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "list" {
		t.Fatalf("expected list StageError, got %v", err)
	}
	var fe *printful.FetchError
	if !errors.As(err, &fe) {
		t.Error("FetchError must stay reachable")
	}
}

func TestSyncCatalog_DetailFailureContinues(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.provider.DetailErrs[100] = errors.New("timeout")

	report := f.sync(t)
	if report.Created != 1 || report.ProductsProcessed != 2 {
		t.Errorf("expected B created despite A failing: %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].PrintfulID != 100 || report.Errors[0].Product != "Camiseta Básica" {
		t.Errorf("unexpected errors %+v", report.Errors)
	}
}

func TestSyncCatalog_FailingFileSkipped(t *testing.T) {
	f := newSyncFixture(t)
	f.store.FailFile = func(file *entity.File) bool { return file.Type == "default" }
	f.provider.Set(productA())

	report := f.sync(t)
	if report.Variants.Created != 1 || len(report.Errors) != 0 {
		t.Fatalf("variant should survive a failing file: %+v", report)
	}
	p := f.product(t, 100)
	variants, _ := f.store.ListVariantsByProduct(context.Background(), p.ID)
	files := f.store.FilesOfVariant(variants[0].ID)
	if len(files) != 1 || files[0].Type != "preview" {
		t.Errorf("expected only the preview file, got %+v", files)
	}
}

func TestSyncCatalog_VariantCreationRollsBack(t *testing.T) {
	f := newSyncFixture(t)
	f.store.FailOptions = true
	f.provider.Set(productA())

	report := f.sync(t)
	if len(report.Errors) != 1 {
		t.Fatalf("expected the variant failure to be reported, got %+v", report.Errors)
	}
	p := f.product(t, 100)
	if got := f.skus(t, p.ID); len(got) != 0 {
		t.Errorf("variant must be rolled back, found %v", got)
	}
	if n := f.store.OrphanCount(); n != 0 {
		t.Errorf("%d orphaned rows after rollback", n)
	}

	// next run retries the missing variant
	f.store.FailOptions = false
	retry := f.sync(t)
	if retry.Updated != 1 || retry.Variants.Created != 1 {
		t.Errorf("expected the variant to be created on retry: %+v", retry)
	}
}

func TestSyncCatalog_RejectsConcurrentRun(t *testing.T) {
	f := newSyncFixture(t)
	release, err := f.locker.Acquire(context.Background(), SyncLockKey, time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if _, err := f.svc.SyncCatalog(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}
	if f.provider.ListCalls != 0 {
		t.Error("provider must not be called while locked")
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSyncCatalog_LockOutlivesTTL(t *testing.T) {
	f := newSyncFixture(t)
	clock := &testClock{now: time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)}
	f.locker.Now = clock.Now
	svc := NewSyncService(f.store, f.provider, f.images, f.locker, 30*time.Millisecond, zap.NewNop())
	f.provider.Set(productA())

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	f.provider.ListHook = func() {
		once.Do(func() {
			close(entered)
			<-unblock
		})
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.SyncCatalog(context.Background())
		firstDone <- err
	}()
	<-entered

	// the first run is still listing long after the lease ttl
	clock.Advance(61 * time.Minute)
	time.Sleep(150 * time.Millisecond)

	if _, err := svc.SyncCatalog(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second run must be rejected while the first holds the lock, got %v", err)
	}

	close(unblock)
	if err := <-firstDone; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := svc.SyncCatalog(context.Background()); err != nil {
		t.Errorf("lock must be free after the first run: %v", err)
	}
}

// truncatingClient talks to a store whose listing never ends within one page.
func truncatingClient(t *testing.T) *printful.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"result":[{"id":100,"name":"Camiseta Básica"},{"id":300,"name":"Gorra"}]}`))
	}))
	t.Cleanup(srv.Close)
	return printful.NewClient(printful.Config{BaseURL: srv.URL, Token: "t", StoreID: "1", PageSize: 2, MaxPages: 1}, nil)
}

func TestSyncCatalog_TruncatedListingDiscontinuesNothing(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.Set(productA(), productB())
	f.sync(t)

	svc := NewSyncService(f.store, truncatingClient(t), f.images, f.locker, time.Minute, zap.NewNop())
	_, err := svc.SyncCatalog(context.Background())

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "list" {
		t.Fatalf("expected list stage error, got %v", err)
	}
	if !errors.Is(err, printful.ErrListingTruncated) {
		t.Errorf("expected ErrListingTruncated, got %v", err)
	}
	for _, id := range []int64{100, 200} {
		if p := f.product(t, id); p.Discontinued {
			t.Errorf("product %d discontinued by a partial listing", id)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Camiseta Básica", "camiseta-basica"},
		{"  Sudadera Niños  ", "sudadera-ninos"},
		{"A  B", "a--b"},
		{"Sudadera\tNiños", "sudadera-ninos"},
		{"Mug 11oz (White)!", "mug-11oz-white"},
		{"Gorra_Snapback", "gorra_snapback"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProductSKU(t *testing.T) {
	if got := productSKU("A1_RED_S"); got != "A1" {
		t.Errorf("productSKU = %q", got)
	}
	if got := productSKU("PLAIN"); got != "PLAIN" {
		t.Errorf("productSKU = %q", got)
	}
}
