package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"dinein-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	restaurantID = "rest-1"
	tableID      = "table-1"
	tableQR      = "qr-secret-1"
	itemPaneer   = "item-paneer"
	itemLassi    = "item-lassi"
	itemSoldOut  = "item-sold-out"
	itemThali    = "item-thali"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seed installs one active restaurant with default rates, one table and a
// small menu.
func seed(r *memRepo) {
	r.snapshot(func(d *memData) {
		d.restaurants[restaurantID] = models.Restaurant{ID: restaurantID, Name: "Spice Route", IsActive: true}
		d.tables[tableID] = models.Table{
			ID: tableID, RestaurantID: restaurantID, Number: "T1", QRCode: tableQR, Capacity: 4, IsActive: true,
		}
		d.categories["cat-main"] = models.Category{ID: "cat-main", RestaurantID: restaurantID, Name: "Mains", SortOrder: 1, IsActive: true}
		d.categories["cat-drinks"] = models.Category{ID: "cat-drinks", RestaurantID: restaurantID, Name: "Drinks", SortOrder: 2, IsActive: true}

		d.menuItems[itemPaneer] = models.MenuItem{
			ID: itemPaneer, RestaurantID: restaurantID, CategoryID: "cat-main", Name: "Paneer Tikka",
			Price: dec("200"), PreparationTime: 15, IsAvailable: true, QuickAddOrder: 1,
			Variants: models.Variants{
				{ID: "full", Name: "Full", PriceModifier: dec("50")},
				{ID: "kids", Name: "Kids", PriceModifier: dec("-250")},
			},
			AddOns: models.AddOns{
				{ID: "cheese", Name: "Extra Cheese", Price: dec("30"), MaxQuantity: 2},
				{ID: "mint", Name: "Mint Chutney", Price: dec("10")},
			},
		}
		d.menuItems[itemLassi] = models.MenuItem{
			ID: itemLassi, RestaurantID: restaurantID, CategoryID: "cat-drinks", Name: "Sweet Lassi",
			Price: dec("80"), PreparationTime: 2, IsAvailable: true, QuickAddOrder: 2,
		}
		d.menuItems[itemThali] = models.MenuItem{
			ID: itemThali, RestaurantID: restaurantID, CategoryID: "cat-main", Name: "Royal Thali",
			Price: dec("1000"), PreparationTime: 25, IsAvailable: true,
		}
		d.menuItems[itemSoldOut] = models.MenuItem{
			ID: itemSoldOut, RestaurantID: restaurantID, CategoryID: "cat-main", Name: "Biryani",
			Price: dec("300"), PreparationTime: 30, IsAvailable: false,
		}
	})
}

type broadcast struct {
	Type  string
	Data  interface{}
	Rooms []string
}

type recordingBus struct {
	mu     sync.Mutex
	events []broadcast
}

func (b *recordingBus) Broadcast(eventType string, data interface{}, rooms ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{Type: eventType, Data: data, Rooms: rooms})
}

func (b *recordingBus) ofType(eventType string) []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcast
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBus) last(eventType string) (broadcast, bool) {
	all := b.ofType(eventType)
	if len(all) == 0 {
		return broadcast{}, false
	}
	return all[len(all)-1], true
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) record(t string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, t)
	return nil
}

func (p *recordingPublisher) count(t string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, x := range p.types {
		if x == t {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishPaymentConfirmed(ctx context.Context, e *models.PaymentConfirmedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishPaymentFailed(ctx context.Context, e *models.PaymentFailedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishBillGenerated(ctx context.Context, e *models.BillGeneratedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishSessionClosed(ctx context.Context, e *models.SessionClosedEvent) error {
	return p.record(e.EventType)
}

// harness wires every service to one fake repository.
type harness struct {
	repo     *memRepo
	bus      *recordingBus
	events   *recordingPublisher
	sessions *SessionService
	carts    *CartService
	orders   *OrderService
	payments *PaymentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := newMemRepo()
	seed(repo)
	bus := &recordingBus{}
	events := &recordingPublisher{}
	settings := DefaultSettings()
	return &harness{
		repo:     repo,
		bus:      bus,
		events:   events,
		sessions: NewSessionService(repo, bus, events),
		carts:    NewCartService(repo, bus),
		orders:   NewOrderService(repo, bus, events, settings),
		payments: NewPaymentService(repo, bus, events, settings),
	}
}

func (h *harness) scan(t *testing.T) *ScanResult {
	t.Helper()
	res, err := h.sessions.ValidateScan(context.Background(), ScanRequest{
		QRCode: tableQR, TableID: tableID, RestaurantID: restaurantID,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) addToCart(t *testing.T, sessionID string, sel ItemSelection) *models.CartItem {
	t.Helper()
	item, err := h.carts.AddItem(context.Background(), AddItemRequest{SessionID: sessionID, ItemSelection: sel})
	require.NoError(t, err)
	return item
}

func (h *harness) session(t *testing.T, id string) models.Session {
	t.Helper()
	var s models.Session
	h.repo.snapshot(func(d *memData) { s = d.sessions[id] })
	return s
}

func (h *harness) table(t *testing.T) models.Table {
	t.Helper()
	var tb models.Table
	h.repo.snapshot(func(d *memData) { tb = d.tables[tableID] })
	return tb
}

func (h *harness) addCoupon(c models.Coupon) {
	h.repo.snapshot(func(d *memData) { d.coupons[c.ID] = c })
}

func activeCoupon(id, code string, typ models.CouponType, value string) models.Coupon {
	return models.Coupon{
		ID: id, RestaurantID: restaurantID, Code: code, Type: typ, Value: dec(value),
		ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour), IsActive: true,
	}
}
