package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/shopspring/decimal"
)

// memoryStore implements ProductStore using an in-memory map.
type memoryStore struct {
	mu       sync.RWMutex
	products map[int64]Product
	nextID   int64
}

// NewMemoryStore creates an in-memory ProductStore holding the seed products.
func NewMemoryStore(seed ...Product) ProductStore {
	s := &memoryStore{
		products: make(map[int64]Product),
		nextID:   1,
	}
	for _, p := range seed {
		_, _ = s.Add(context.Background(), p)
	}
	return s
}

func (s *memoryStore) GetAll(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(Product) bool { return true }), nil
}

func (s *memoryStore) GetByID(_ context.Context, id int64) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, catalogerrors.ErrProductNotFound
	}
	return &p, nil
}

func (s *memoryStore) GetByName(_ context.Context, name string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.filter(func(p Product) bool { return p.Name == name })
	if len(found) == 0 {
		return nil, catalogerrors.ErrProductNotFound
	}
	return &found[0], nil
}

func (s *memoryStore) GetByCategory(_ context.Context, category string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(p Product) bool { return p.Category == category }), nil
}

func (s *memoryStore) Add(_ context.Context, product Product) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = s.nextID
	product.Version = 1
	s.nextID++
	s.products[product.ID] = product
	return &product, nil
}

func (s *memoryStore) Update(_ context.Context, product Product) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(product); err != nil {
		return nil, err
	}
	product.Version++
	s.products[product.ID] = product
	return &product, nil
}

func (s *memoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.products, id)
	return nil
}

// UpdateMany validates every version before writing any price.
func (s *memoryStore) UpdateMany(_ context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if err := s.checkVersion(p); err != nil {
			return err
		}
	}
	for _, p := range products {
		stored := s.products[p.ID]
		stored.Price = p.Price
		stored.Version++
		s.products[p.ID] = stored
	}
	return nil
}

// checkVersion must be called with the write lock held.
func (s *memoryStore) checkVersion(p Product) error {
	stored, ok := s.products[p.ID]
	if !ok {
		return catalogerrors.ErrProductNotFound
	}
	if stored.Version != p.Version {
		return catalogerrors.ErrOptimisticLock
	}
	return nil
}

// filter returns matching products ordered by id. Must be called with a lock held.
func (s *memoryStore) filter(match func(Product) bool) []Product {
	list := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if match(p) {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, func(a, b Product) int { return cmp.Compare(a.ID, b.ID) })
	return list
}

// memoryUserStore implements UserStore using an in-memory map keyed by username.
type memoryUserStore struct {
	mu     sync.Mutex
	users  map[string]User
	nextID int64
}

// NewMemoryUserStore creates an empty in-memory UserStore.
func NewMemoryUserStore() UserStore {
	return &memoryUserStore{users: make(map[string]User), nextID: 1}
}

func (s *memoryUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return nil, catalogerrors.ErrUserNotFound
	}
	return &u, nil
}

func (s *memoryUserStore) Create(_ context.Context, user User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return nil, catalogerrors.ErrUserExists
	}
	user.ID = s.nextID
	user.CreatedAt = time.Now().UTC()
	s.nextID++
	s.users[user.Username] = user
	return &user, nil
}

// SeedProducts returns the products every new catalog starts with.
func SeedProducts() []Product {
	return []Product{
		{Name: "Icemachine 5K Plus", Price: decimal.RequireFromString("9.99"), Category: "Electronics"},
		{Name: "Air Fryer Super Hot", Price: decimal.RequireFromString("19.99"), Category: "Electronics"},
	}
}
