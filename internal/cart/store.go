package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/util"

	"go.uber.org/zap"
)

const defaultJustAddedDelay = 2 * time.Second

// PendingOrder links an unfinished checkout to its order and payment intent
type PendingOrder struct {
	OrderID         int64     `json:"orderId"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Option configures a Store
type Option func(*Store)

// WithJustAddedDelay sets how long the just-added marker stays set
func WithJustAddedDelay(d time.Duration) Option {
	return func(s *Store) { s.justAddedDelay = d }
}

// WithLogger overrides the global logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store holds the cart state, persists it and notifies subscribers of
// changes. Persistence is best effort: storage errors are logged only.
type Store struct {
	// writeMu serializes mutate-then-persist so saves land in mutation order.
	// It is never taken while mu is held.
	writeMu sync.Mutex

	mu        sync.Mutex
	cart      Cart
	open      bool
	lastSaved []byte

	justAdded      int64
	justAddedSeq   uint64
	justAddedTimer *time.Timer
	justAddedDelay time.Duration

	subs    map[int]func(Cart)
	nextSub int

	storage   Storage
	stopWatch func()
	logger    *zap.Logger
}

// NewStore creates a store backed by storage and loads any persisted cart
func NewStore(ctx context.Context, storage Storage, opts ...Option) *Store {
	s := &Store{
		cart:           Cart{Items: []Item{}},
		justAddedDelay: defaultJustAddedDelay,
		subs:           make(map[int]func(Cart)),
		storage:        storage,
		logger:         util.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cart.recalc()

	s.Sync(ctx)

	if n, ok := storage.(Notifier); ok {
		s.stopWatch = n.Watch(func(key string) {
			if key == KeyCart {
				s.Sync(context.Background())
			}
		})
	}
	return s
}

// Stop detaches the store from storage change notifications and cancels the
// just-added timer.
func (s *Store) Stop() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.mu.Lock()
	if s.justAddedTimer != nil {
		s.justAddedTimer.Stop()
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of the current cart
func (s *Store) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.clone()
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) Open() {
	s.setOpen(true)
}

func (s *Store) Close() {
	s.setOpen(false)
}

func (s *Store) setOpen(open bool) {
	s.mu.Lock()
	changed := s.open != open
	s.open = open
	snap := s.cart.clone()
	s.mu.Unlock()

	if changed {
		s.publish(snap)
	}
}

// JustAdded returns the product id most recently added, if the marker has not
// expired yet.
func (s *Store) JustAdded() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.justAdded, s.justAdded != 0
}

// AddItem adds quantity of item, merging with an existing line of the same
// product, size and color. Quantities below 1 count as 1.
func (s *Store) AddItem(ctx context.Context, item Item, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mutate(ctx, func(c *Cart) {
		s.open = true
		s.markJustAdded(item.ID)

		if i := c.indexOf(item.ID, item.Size, item.Color); i >= 0 {
			c.Items[i].Quantity += quantity
			return
		}
		item.Quantity = quantity
		c.Items = append(c.Items, item)
	})
}

// RemoveItem drops the line for product id with the given size and color
func (s *Store) RemoveItem(ctx context.Context, id int64, size, color string) {
	s.mutate(ctx, func(c *Cart) {
		if i := c.indexOf(id, size, color); i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
	})
}

// SetQuantity replaces a line's quantity; zero or less removes the line
func (s *Store) SetQuantity(ctx context.Context, id int64, quantity int, size, color string) {
	if quantity <= 0 {
		s.RemoveItem(ctx, id, size, color)
		return
	}
	s.mutate(ctx, func(c *Cart) {
		if i := c.indexOf(id, size, color); i >= 0 {
			c.Items[i].Quantity = quantity
		}
	})
}

// Clear empties the cart and removes the persisted key
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func(c *Cart) {
		c.Items = []Item{}
	})
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func unsubscribes.
func (s *Store) Subscribe(fn func(Cart)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Sync reloads the cart from storage. A missing key means an empty cart;
// unreadable data is logged and ignored.
func (s *Store) Sync(ctx context.Context) {
	data, err := s.storage.Load(ctx, KeyCart)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("Failed to load cart", zap.Error(err))
		return
	}

	next := Cart{Items: []Item{}}
	if err == nil {
		if err := json.Unmarshal(data, &next); err != nil {
			s.logger.Warn("Discarding unreadable cart", zap.Error(err))
			return
		}
		if next.Items == nil {
			next.Items = []Item{}
		}
	}
	next.recalc()

	s.mu.Lock()
	if bytes.Equal(data, s.lastSaved) {
		s.mu.Unlock()
		return
	}
	s.lastSaved = data
	s.cart = next
	snap := next.clone()
	s.mu.Unlock()

	s.publish(snap)
}

// Backup copies the current cart to the backup key
func (s *Store) Backup(ctx context.Context) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal cart backup: %w", err)
	}
	return s.storage.Save(ctx, KeyBackup, data)
}

// RestoreBackup replaces the cart with the backed up one and removes the
// backup. It returns false when there is no backup.
func (s *Store) RestoreBackup(ctx context.Context) (bool, error) {
	data, err := s.storage.Load(ctx, KeyBackup)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var backup Cart
	if err := json.Unmarshal(data, &backup); err != nil {
		return false, fmt.Errorf("unmarshal cart backup: %w", err)
	}

	s.mutate(ctx, func(c *Cart) {
		c.Items = append([]Item{}, backup.Items...)
	})
	return true, s.storage.Remove(ctx, KeyBackup)
}

// RemoveBackup discards the backup key
func (s *Store) RemoveBackup(ctx context.Context) error {
	return s.storage.Remove(ctx, KeyBackup)
}

func (s *Store) SetPendingOrder(ctx context.Context, p PendingOrder) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending order: %w", err)
	}
	return s.storage.Save(ctx, KeyPendingOrder, data)
}

// PendingOrder returns the recorded pending order, or ErrNotFound
func (s *Store) PendingOrder(ctx context.Context) (*PendingOrder, error) {
	data, err := s.storage.Load(ctx, KeyPendingOrder)
	if err != nil {
		return nil, err
	}
	var p PendingOrder
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pending order: %w", err)
	}
	return &p, nil
}

func (s *Store) ClearPendingOrder(ctx context.Context) error {
	return s.storage.Remove(ctx, KeyPendingOrder)
}

// mutate applies fn with mu held, recomputes totals, persists and notifies
func (s *Store) mutate(ctx context.Context, fn func(*Cart)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	fn(&s.cart)
	s.cart.recalc()
	snap := s.cart.clone()

	var data []byte
	if !snap.IsEmpty() {
		var err error
		data, err = json.Marshal(snap)
		if err != nil {
			s.logger.Error("Failed to marshal cart", zap.Error(err))
		}
	}
	s.lastSaved = data
	s.mu.Unlock()

	s.persist(ctx, data)
	s.publish(snap)
}

func (s *Store) persist(ctx context.Context, data []byte) {
	var err error
	if data == nil {
		err = s.storage.Remove(ctx, KeyCart)
	} else {
		err = s.storage.Save(ctx, KeyCart, data)
	}
	if err != nil {
		s.logger.Warn("Failed to persist cart", zap.Error(err))
	}
}

// markJustAdded must be called with mu held
func (s *Store) markJustAdded(id int64) {
	s.justAdded = id
	s.justAddedSeq++
	seq := s.justAddedSeq

	if s.justAddedTimer != nil {
		s.justAddedTimer.Stop()
	}
	s.justAddedTimer = time.AfterFunc(s.justAddedDelay, func() {
		s.mu.Lock()
		if s.justAddedSeq != seq {
			s.mu.Unlock()
			return
		}
		s.justAdded = 0
		snap := s.cart.clone()
		s.mu.Unlock()

		s.publish(snap)
	})
}

func (s *Store) publish(snap Cart) {
	s.mu.Lock()
	subs := make([]func(Cart), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap.clone())
	}
}
