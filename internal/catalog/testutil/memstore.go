package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/repository"
	"github.com/shopspring/decimal"
)

type memData struct {
	nextID     uint
	products   map[uint]entity.Product
	categories map[uint]entity.Category
	variants   map[uint]entity.Variedad
	links      map[uint]entity.ProductVariantLink
	files      map[uint]entity.File
	options    map[uint]entity.Option
	galleries  map[uint]entity.Gallery
}

func newMemData() *memData {
	return &memData{
		products:   map[uint]entity.Product{},
		categories: map[uint]entity.Category{},
		variants:   map[uint]entity.Variedad{},
		links:      map[uint]entity.ProductVariantLink{},
		files:      map[uint]entity.File{},
		options:    map[uint]entity.Option{},
		galleries:  map[uint]entity.Gallery{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	return &memData{
		nextID:     d.nextID,
		products:   cloneMap(d.products),
		categories: cloneMap(d.categories),
		variants:   cloneMap(d.variants),
		links:      cloneMap(d.links),
		files:      cloneMap(d.files),
		options:    cloneMap(d.options),
		galleries:  cloneMap(d.galleries),
	}
}

func sortedIDs[V any](m map[uint]V) []uint {
	ids := make([]uint, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MemStore is an in-memory repository.CatalogStore with the same unique
// constraints and cascade rules as the postgres schema. Transaction restores a
// snapshot on error, so nested calls behave like savepoints.
type MemStore struct {
	mu   sync.Mutex
	data *memData

	// Writes counts every mutating call that changed something.
	Writes int
	// FailFile makes CreateFile fail for matching files.
	FailFile func(f *entity.File) bool
	// FailOptions makes ReplaceOptions fail.
	FailOptions bool
}

var _ repository.CatalogStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{data: newMemData()}
}

func (m *MemStore) id() uint {
	m.data.nextID++
	return m.data.nextID
}

func (m *MemStore) Transaction(ctx context.Context, fn func(tx repository.CatalogStore) error) error {
	m.mu.Lock()
	snapshot := m.data.clone()
	writes := m.Writes
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.Writes = writes
		m.mu.Unlock()
		return err
	}
	return nil
}

// ========== Product ==========

func (m *MemStore) ListSyncedProducts(ctx context.Context) ([]entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Product
	for _, id := range sortedIDs(m.data.products) {
		if p := m.data.products[id]; p.PrintfulID != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemStore) FindProductByID(ctx context.Context, id uint) (*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.attachCategory(&p)
	return &p, nil
}

func (m *MemStore) FindProductBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// active row first, then the newest
	var found *entity.Product
	ids := sortedIDs(m.data.products)
	for i := len(ids) - 1; i >= 0; i-- {
		p := m.data.products[ids[i]]
		if p.Slug != slug {
			continue
		}
		if found == nil || (p.IsActive() && !found.IsActive()) {
			found = &p
		}
	}
	if found != nil {
		p := *found
		m.attachCategory(&p)
		p.Variedades = m.variantsOf(p.ID)
		for _, gid := range sortedIDs(m.data.galleries) {
			if g := m.data.galleries[gid]; g.ProductID == p.ID {
				p.Galleries = append(p.Galleries, g)
			}
		}
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MemStore) attachCategory(p *entity.Product) {
	if p.CategoryID == nil {
		return
	}
	if c, ok := m.data.categories[*p.CategoryID]; ok {
		p.Category = &c
	}
}

func (m *MemStore) CreateProduct(ctx context.Context, product *entity.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if product.PrintfulID != nil {
		for _, p := range m.data.products {
			if p.PrintfulID != nil && *p.PrintfulID == *product.PrintfulID {
				return repository.ErrDuplicate
			}
		}
	}
	product.ID = m.id()
	now := time.Now()
	product.CreatedAt, product.UpdatedAt = now, now
	if product.State == 0 {
		product.State = entity.ProductStateInactive
	}
	row := *product
	row.Category, row.Variedades, row.Galleries = nil, nil, nil
	m.data.products[row.ID] = row
	m.Writes++
	return nil
}

func (m *MemStore) UpdateProductFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data.products[id]
	if !ok {
		return nil
	}
	for col, val := range fields {
		switch col {
		case "title":
			p.Title = val.(string)
		case "sku":
			p.SKU = val.(string)
		case "is_ignored":
			p.IsIgnored = val.(bool)
		case "price":
			p.Price = val.(decimal.Decimal)
		case "currency":
			p.Currency = val.(string)
		case "portada":
			p.Portada = val.(string)
		case "category_id":
			p.CategoryID = val.(*uint)
		case "type_inventario":
			p.TypeInventario = val.(int)
		case "state":
			p.State = val.(int)
		case "discontinued":
			p.Discontinued = val.(bool)
		case "discontinued_at":
			if t, ok := val.(time.Time); ok {
				p.DiscontinuedAt = &t
			} else {
				p.DiscontinuedAt = nil
			}
		default:
			return fmt.Errorf("memstore: unknown product column %q", col)
		}
	}
	p.UpdatedAt = time.Now()
	m.data.products[id] = p
	m.Writes++
	return nil
}

func (m *MemStore) ListActiveProducts(ctx context.Context, page, pageSize int) ([]entity.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := sortedIDs(m.data.products)
	var active []entity.Product
	for i := len(ids) - 1; i >= 0; i-- {
		p := m.data.products[ids[i]]
		if p.State == entity.ProductStateActive && !p.Discontinued {
			m.attachCategory(&p)
			active = append(active, p)
		}
	}
	total := int64(len(active))
	start := (page - 1) * pageSize
	if start >= len(active) {
		return []entity.Product{}, total, nil
	}
	end := start + pageSize
	if end > len(active) {
		end = len(active)
	}
	return active[start:end], total, nil
}

func (m *MemStore) DeleteProductCascade(ctx context.Context, id uint) (*repository.CascadeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	result := &repository.CascadeResult{ProductID: id}
	for _, vid := range sortedIDs(m.data.variants) {
		if m.data.variants[vid].ProductID == id {
			m.deleteVariant(vid)
			result.VariantsDeleted++
		}
	}
	for gid, g := range m.data.galleries {
		if g.ProductID == id {
			delete(m.data.galleries, gid)
			result.GalleriesDeleted++
		}
	}
	delete(m.data.products, id)

	if p.CategoryID != nil {
		result.CategoryID = p.CategoryID
		refs := 0
		for _, other := range m.data.products {
			if other.CategoryID != nil && *other.CategoryID == *p.CategoryID {
				refs++
			}
		}
		if refs == 0 {
			delete(m.data.categories, *p.CategoryID)
			result.CategoryDeleted = true
		}
	}
	m.Writes++
	return result, nil
}

// ========== Category ==========

func (m *MemStore) FindCategoryByID(ctx context.Context, id uint) (*entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *MemStore) FindCategoryByTitle(ctx context.Context, title string) (*entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range sortedIDs(m.data.categories) {
		if c := m.data.categories[id]; c.Title == title {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MemStore) CreateCategory(ctx context.Context, category *entity.Category) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data.categories {
		if c.Title == category.Title {
			*category = c
			return false, nil
		}
	}
	category.ID = m.id()
	category.CreatedAt = time.Now()
	m.data.categories[category.ID] = *category
	m.Writes++
	return true, nil
}

// CategoryCount returns the number of stored categories.
func (m *MemStore) CategoryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data.categories)
}

// ProductCount returns the number of stored products.
func (m *MemStore) ProductCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data.products)
}

// ========== Variedad ==========

func (m *MemStore) variantsOf(productID uint) []entity.Variedad {
	var out []entity.Variedad
	for _, id := range sortedIDs(m.data.variants) {
		v := m.data.variants[id]
		if v.ProductID != productID {
			continue
		}
		for _, oid := range sortedIDs(m.data.options) {
			if o := m.data.options[oid]; o.VariedadID == v.ID {
				v.Options = append(v.Options, o)
			}
		}
		for _, l := range m.data.links {
			if l.VariedadID == v.ID {
				link := l
				v.Link = &link
			}
		}
		out = append(out, v)
	}
	return out
}

func (m *MemStore) ListVariantsByProduct(ctx context.Context, productID uint) ([]entity.Variedad, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variantsOf(productID), nil
}

func (m *MemStore) CreateVariant(ctx context.Context, variant *entity.Variedad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.data.variants {
		if v.ProductID == variant.ProductID && v.SKU == variant.SKU {
			return repository.ErrDuplicate
		}
	}
	variant.ID = m.id()
	row := *variant
	row.Link, row.Files, row.Options = nil, nil, nil
	m.data.variants[row.ID] = row
	m.Writes++
	return nil
}

func (m *MemStore) UpdateVariantFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data.variants[id]
	if !ok {
		return nil
	}
	for col, val := range fields {
		switch col {
		case "valor":
			v.Valor = val.(string)
		case "color":
			v.Color = val.(string)
		case "printful_variant_id":
			v.PrintfulVariantID = val.(int64)
		case "variant_id":
			v.VariantID = val.(int64)
		case "external_id":
			v.ExternalID = val.(string)
		case "retail_price":
			v.RetailPrice = val.(decimal.Decimal)
		case "currency":
			v.Currency = val.(string)
		case "sku":
			v.SKU = val.(string)
		case "name":
			v.Name = val.(string)
		case "availability_status":
			v.AvailabilityStatus = val.(string)
		default:
			return fmt.Errorf("memstore: unknown variant column %q", col)
		}
	}
	for oid, other := range m.data.variants {
		if oid != id && other.ProductID == v.ProductID && other.SKU == v.SKU {
			return repository.ErrDuplicate
		}
	}
	m.data.variants[id] = v
	m.Writes++
	return nil
}

func (m *MemStore) deleteVariant(id uint) {
	for fid, f := range m.data.files {
		if f.VariedadID == id {
			delete(m.data.files, fid)
		}
	}
	for oid, o := range m.data.options {
		if o.VariedadID == id {
			delete(m.data.options, oid)
		}
	}
	for lid, l := range m.data.links {
		if l.VariedadID == id {
			delete(m.data.links, lid)
		}
	}
	delete(m.data.variants, id)
}

func (m *MemStore) DeleteVariantCascade(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteVariant(id)
	m.Writes++
	return nil
}

func (m *MemStore) CreateVariantLink(ctx context.Context, link *entity.ProductVariantLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.data.links {
		if l.VariedadID == link.VariedadID {
			return repository.ErrDuplicate
		}
	}
	link.ID = m.id()
	m.data.links[link.ID] = *link
	m.Writes++
	return nil
}

func (m *MemStore) CreateFile(ctx context.Context, file *entity.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFile != nil && m.FailFile(file) {
		return fmt.Errorf("memstore: file %d rejected", file.PrintfulFileID)
	}
	file.ID = m.id()
	m.data.files[file.ID] = *file
	m.Writes++
	return nil
}

func (m *MemStore) ListFilesByProduct(ctx context.Context, productID uint) ([]entity.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.File
	for _, vid := range sortedIDs(m.data.variants) {
		if m.data.variants[vid].ProductID != productID {
			continue
		}
		for _, fid := range sortedIDs(m.data.files) {
			if f := m.data.files[fid]; f.VariedadID == vid {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// FilesOfVariant returns the files stored for a variant.
func (m *MemStore) FilesOfVariant(variantID uint) []entity.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.File
	for _, fid := range sortedIDs(m.data.files) {
		if f := m.data.files[fid]; f.VariedadID == variantID {
			out = append(out, f)
		}
	}
	return out
}

// OrphanCount counts files, options and links whose variant no longer exists.
func (m *MemStore) OrphanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.data.files {
		if _, ok := m.data.variants[f.VariedadID]; !ok {
			n++
		}
	}
	for _, o := range m.data.options {
		if _, ok := m.data.variants[o.VariedadID]; !ok {
			n++
		}
	}
	for _, l := range m.data.links {
		if _, ok := m.data.variants[l.VariedadID]; !ok {
			n++
		}
	}
	return n
}

func (m *MemStore) ReplaceOptions(ctx context.Context, variantID uint, options []entity.Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOptions {
		return fmt.Errorf("memstore: options rejected")
	}
	for oid, o := range m.data.options {
		if o.VariedadID == variantID {
			delete(m.data.options, oid)
		}
	}
	for i := range options {
		options[i].ID = m.id()
		options[i].VariedadID = variantID
		m.data.options[options[i].ID] = options[i]
	}
	m.Writes++
	return nil
}

// ========== Gallery ==========

func (m *MemStore) ListGalleries(ctx context.Context, productID uint) ([]entity.Gallery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Gallery
	for _, id := range sortedIDs(m.data.galleries) {
		if g := m.data.galleries[id]; g.ProductID == productID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemStore) CreateGallery(ctx context.Context, gallery *entity.Gallery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.data.galleries {
		if g.ProductID == gallery.ProductID && g.Imagen == gallery.Imagen {
			return repository.ErrDuplicate
		}
	}
	gallery.ID = m.id()
	gallery.CreatedAt = time.Now()
	m.data.galleries[gallery.ID] = *gallery
	m.Writes++
	return nil
}

// InsertGalleryRaw stores a gallery row bypassing the unique check, to model
// rows left behind before the constraint existed.
func (m *MemStore) InsertGalleryRaw(gallery entity.Gallery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gallery.ID = m.id()
	m.data.galleries[gallery.ID] = gallery
}

func (m *MemStore) DeleteGallery(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.galleries, id)
	m.Writes++
	return nil
}
