// Package memstore is an in-memory implementation of the catalog, order and
// user stores. It is safe for concurrent use and backs tests and STORE=memory
// local runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/shopspring/decimal"
)

var (
	_ orders.Store   = (*Store)(nil)
	_ catalog.Store  = (*Store)(nil)
	_ auth.UserStore = (*Store)(nil)
)

type orderRow struct {
	ID               int64
	Username         string
	Email            string
	PhoneNumber      string
	ConfirmationDate *time.Time
	Status           orders.Status
}

type lineItemRow struct {
	ID        int64
	ProductID int64
	Amount    int
	UnitPrice decimal.Decimal
}

type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex // one unit of work at a time

	seq        map[string]int64
	categories map[int64]catalog.Category
	products   map[int64]catalog.Product
	orders     map[int64]orderRow
	items      map[int64][]lineItemRow
	opinions   map[int64]orders.Opinion // keyed by order id
	users      map[int64]auth.User

	// FailWrite, when set, is called before every write made inside a unit
	// of work; a non-nil result aborts the write with that error.
	FailWrite func(op string) error
}

func New() *Store {
	return &Store{
		seq:        map[string]int64{},
		categories: map[int64]catalog.Category{},
		products:   map[int64]catalog.Product{},
		orders:     map[int64]orderRow{},
		items:      map[int64][]lineItemRow{},
		opinions:   map[int64]orders.Opinion{},
		users:      map[int64]auth.User{},
	}
}

func (s *Store) nextIDLocked(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// SeedCategories inserts every name that is not present yet.
func (s *Store) SeedCategories(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := map[string]bool{}
	for _, c := range s.categories {
		existing[c.Name] = true
	}
	for _, n := range names {
		if existing[n] {
			continue
		}
		id := s.nextIDLocked("category")
		s.categories[id] = catalog.Category{ID: id, Name: n}
		existing[n] = true
	}
	return nil
}

// Categories ------------------------------------------------------------------

func (s *Store) Categories(_ context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Category(_ context.Context, id int64) (catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return catalog.Category{}, apperr.NotFound("category with id = %d not found", id)
	}
	return c, nil
}

// Products --------------------------------------------------------------------

func (s *Store) Products(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Product(_ context.Context, id int64) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("product with id = %d not found", id)
	}
	return p, nil
}

func (s *Store) CreateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[p.Category.ID]; !ok {
		return catalog.Product{}, apperr.NotFound("category with id = %d not found", p.Category.ID)
	}
	p.ID = s.nextIDLocked("product")
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return catalog.Product{}, apperr.NotFound("product with id = %d not found", p.ID)
	}
	if _, ok := s.categories[p.Category.ID]; !ok {
		return catalog.Product{}, apperr.NotFound("category with id = %d not found", p.Category.ID)
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) CountProducts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func (s *Store) CreateProducts(_ context.Context, ps []catalog.Product) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range ps {
		if _, ok := s.categories[p.Category.ID]; !ok {
			return 0, apperr.NotFound("category with id = %d not found", p.Category.ID)
		}
	}
	for _, p := range ps {
		p.ID = s.nextIDLocked("product")
		s.products[p.ID] = p
	}
	return len(ps), nil
}

// Users -----------------------------------------------------------------------

func (s *Store) UserByLogin(_ context.Context, login string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return auth.User{}, apperr.NotFound("user %q not found", login)
}

func (s *Store) UserByID(_ context.Context, id int64) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return auth.User{}, apperr.NotFound("user %d not found", id)
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Login == u.Login {
			return auth.User{}, apperr.Conflict("user %q already exists", u.Login)
		}
	}
	u.ID = s.nextIDLocked("user")
	s.users[u.ID] = u
	return u, nil
}
