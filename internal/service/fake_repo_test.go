package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dinein-service/internal/models"
	"dinein-service/internal/store"

	"github.com/shopspring/decimal"
)

// memData is one consistent snapshot of every table.
type memData struct {
	restaurants map[string]models.Restaurant
	tables      map[string]models.Table
	sessions    map[string]models.Session
	categories  map[string]models.Category
	menuItems   map[string]models.MenuItem
	cart        map[string]models.CartItem
	cartOrder   []string
	orders      map[string]models.Order
	orderSeq    []string
	payments    map[string]models.Payment
	paymentSeq  []string
	bills       map[string]models.Bill
	coupons     map[string]models.Coupon
	feedback    map[string]models.Feedback
	events      map[string]string
}

func newMemData() *memData {
	return &memData{
		restaurants: map[string]models.Restaurant{},
		tables:      map[string]models.Table{},
		sessions:    map[string]models.Session{},
		categories:  map[string]models.Category{},
		menuItems:   map[string]models.MenuItem{},
		cart:        map[string]models.CartItem{},
		orders:      map[string]models.Order{},
		payments:    map[string]models.Payment{},
		bills:       map[string]models.Bill{},
		coupons:     map[string]models.Coupon{},
		feedback:    map[string]models.Feedback{},
		events:      map[string]string{},
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
		restaurants: cloneMap(d.restaurants),
		tables:      cloneMap(d.tables),
		sessions:    cloneMap(d.sessions),
		categories:  cloneMap(d.categories),
		menuItems:   cloneMap(d.menuItems),
		cart:        cloneMap(d.cart),
		cartOrder:   append([]string(nil), d.cartOrder...),
		orders:      cloneMap(d.orders),
		orderSeq:    append([]string(nil), d.orderSeq...),
		payments:    cloneMap(d.payments),
		paymentSeq:  append([]string(nil), d.paymentSeq...),
		bills:       cloneMap(d.bills),
		coupons:     cloneMap(d.coupons),
		feedback:    cloneMap(d.feedback),
		events:      cloneMap(d.events),
	}
}

// memRepo is a transactional in-memory Transactor. Transactions are fully
// serialized and run against a private copy that replaces the committed
// data only when fn succeeds.
type memRepo struct {
	*memView

	mu    sync.Mutex
	data  *memData
	fails map[string]failure
}

type failure struct {
	err  error
	hook func(committed *memData)
}

// memView runs repository calls either against the committed data (locking
// per call) or against a transaction's private copy.
type memView struct {
	repo *memRepo
	d    *memData
}

var _ Transactor = (*memRepo)(nil)

func newMemRepo() *memRepo {
	r := &memRepo{data: newMemData(), fails: map[string]failure{}}
	r.memView = &memView{repo: r}
	return r
}

func (r *memRepo) RunInTx(ctx context.Context, fn func(store.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memView{repo: r, d: r.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	r.data = tx.d
	return nil
}

// failOn makes method fail with err. hook, if set, runs against the
// committed data at the moment of failure.
func (r *memRepo) failOn(method string, err error, hook func(committed *memData)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails[method] = failure{err: err, hook: hook}
}

func (r *memRepo) clearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails = map[string]failure{}
}

// snapshot runs fn against the committed data.
func (r *memRepo) snapshot(fn func(d *memData)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.data)
}

func (v *memView) begin() (*memData, func()) {
	if v.d != nil {
		return v.d, func() {}
	}
	v.repo.mu.Lock()
	return v.repo.data, v.repo.mu.Unlock
}

// failed is called with the data lock held.
func (v *memView) failed(method string) error {
	f, ok := v.repo.fails[method]
	if !ok {
		return nil
	}
	if f.hook != nil {
		f.hook(v.repo.data)
	}
	return f.err
}

func conflict(constraint string) error {
	return fmt.Errorf("%w: %s", store.ErrConflict, constraint)
}

func (v *memView) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	d, done := v.begin()
	defer done()
	r, ok := d.restaurants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (v *memView) FindTableForScan(ctx context.Context, tableID, restaurantID, qrCode string) (*models.Table, error) {
	d, done := v.begin()
	defer done()
	t, ok := d.tables[tableID]
	if !ok || t.RestaurantID != restaurantID || t.QRCode != qrCode || !t.IsActive {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (v *memView) GetTable(ctx context.Context, id string) (*models.Table, error) {
	d, done := v.begin()
	defer done()
	t, ok := d.tables[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (v *memView) LockTable(ctx context.Context, id string) (*models.Table, error) {
	return v.GetTable(ctx, id)
}

func (v *memView) SetTableSession(ctx context.Context, tableID string, sessionID *string) error {
	d, done := v.begin()
	defer done()
	t, ok := d.tables[tableID]
	if !ok {
		return store.ErrNotFound
	}
	if sessionID != nil {
		id := *sessionID
		t.CurrentSessionID = &id
	} else {
		t.CurrentSessionID = nil
	}
	d.tables[tableID] = t
	return nil
}

func (v *memView) GetSession(ctx context.Context, id string) (*models.Session, error) {
	d, done := v.begin()
	defer done()
	s, ok := d.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (v *memView) LockSession(ctx context.Context, id string) (*models.Session, error) {
	return v.GetSession(ctx, id)
}

func (v *memView) FindActiveSession(ctx context.Context, tableID string) (*models.Session, error) {
	d, done := v.begin()
	defer done()
	var found *models.Session
	for _, s := range d.sessions {
		s := s
		if s.TableID == tableID && s.Status == models.SessionStatusActive {
			if found == nil || s.StartedAt.After(found.StartedAt) {
				found = &s
			}
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (v *memView) CreateSession(ctx context.Context, session *models.Session) error {
	d, done := v.begin()
	defer done()
	if err := v.failed("CreateSession"); err != nil {
		return err
	}
	for _, s := range d.sessions {
		if s.TableID == session.TableID && s.Status == models.SessionStatusActive && session.Status == models.SessionStatusActive {
			return conflict("sessions_one_active_per_table")
		}
	}
	session.UpdatedAt = time.Now()
	d.sessions[session.ID] = *session
	return nil
}

func (v *memView) AddSessionTotal(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	d, done := v.begin()
	defer done()
	if err := v.failed("AddSessionTotal"); err != nil {
		return decimal.Zero, err
	}
	s, ok := d.sessions[id]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	s.TotalAmount = s.TotalAmount.Add(amount)
	d.sessions[id] = s
	return s.TotalAmount, nil
}

func (v *memView) UpdateSessionPayment(ctx context.Context, id string, paid decimal.Decimal, status models.PaymentStatus) error {
	d, done := v.begin()
	defer done()
	s, ok := d.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.PaidAmount = paid
	s.PaymentStatus = status
	s.IsReadyForBilling = status == models.PaymentStatusPaid
	d.sessions[id] = s
	return nil
}

func (v *memView) CloseSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time, reason *string) error {
	d, done := v.begin()
	defer done()
	s, ok := d.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.Status = status
	s.EndedAt = &endedAt
	s.CancellationReason = reason
	d.sessions[id] = s
	return nil
}

func (v *memView) SetSessionCoupon(ctx context.Context, id, couponID string) error {
	d, done := v.begin()
	defer done()
	s, ok := d.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.CouponID = &couponID
	d.sessions[id] = s
	return nil
}

func (v *memView) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	d, done := v.begin()
	defer done()
	m, ok := d.menuItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (v *memView) GetMenuItemsByIDs(ctx context.Context, ids []string) ([]models.MenuItem, error) {
	d, done := v.begin()
	defer done()
	out := []models.MenuItem{}
	for _, id := range ids {
		if m, ok := d.menuItems[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (v *memView) ListCategories(ctx context.Context, restaurantID string) ([]models.Category, error) {
	d, done := v.begin()
	defer done()
	out := []models.Category{}
	for _, c := range d.categories {
		if c.RestaurantID == restaurantID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (v *memView) ListAvailableMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	d, done := v.begin()
	defer done()
	out := []models.MenuItem{}
	for _, m := range d.menuItems {
		if m.RestaurantID == restaurantID && m.IsAvailable {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (v *memView) ListQuickAddItems(ctx context.Context, restaurantID string, limit int) ([]models.MenuItem, error) {
	d, done := v.begin()
	defer done()
	out := []models.MenuItem{}
	for _, m := range d.menuItems {
		if m.RestaurantID == restaurantID && m.IsAvailable && m.QuickAddOrder > 0 {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuickAddOrder < out[j].QuickAddOrder })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *memView) SetMenuItemAvailability(ctx context.Context, id string, available bool) (*models.MenuItem, error) {
	d, done := v.begin()
	defer done()
	m, ok := d.menuItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.IsAvailable = available
	d.menuItems[id] = m
	return &m, nil
}

func (v *memView) ListCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	d, done := v.begin()
	defer done()
	out := []models.CartItem{}
	for _, id := range d.cartOrder {
		if ci, ok := d.cart[id]; ok && ci.SessionID == sessionID {
			out = append(out, ci)
		}
	}
	return out, nil
}

func (v *memView) GetCartItem(ctx context.Context, id string) (*models.CartItem, error) {
	d, done := v.begin()
	defer done()
	ci, ok := d.cart[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ci, nil
}

func (v *memView) FindCartItemByMergeKey(ctx context.Context, sessionID, mergeKey string) (*models.CartItem, error) {
	d, done := v.begin()
	defer done()
	for _, ci := range d.cart {
		if ci.SessionID == sessionID && ci.MergeKey == mergeKey {
			ci := ci
			return &ci, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *memView) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	d, done := v.begin()
	defer done()
	for _, ci := range d.cart {
		if ci.SessionID == item.SessionID && ci.MergeKey == item.MergeKey {
			return conflict("cart_items_session_id_merge_key_key")
		}
	}
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	d.cart[item.ID] = *item
	d.cartOrder = append(d.cartOrder, item.ID)
	return nil
}

func (v *memView) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	d, done := v.begin()
	defer done()
	ci, ok := d.cart[item.ID]
	if !ok {
		return store.ErrNotFound
	}
	ci.Quantity = item.Quantity
	ci.UnitPrice = item.UnitPrice
	ci.SelectedVariant = item.SelectedVariant
	ci.SelectedAddOns = item.SelectedAddOns
	ci.UpdatedAt = time.Now()
	item.UpdatedAt = ci.UpdatedAt
	d.cart[item.ID] = ci
	return nil
}

func (v *memView) DeleteCartItem(ctx context.Context, id string) (bool, error) {
	d, done := v.begin()
	defer done()
	if _, ok := d.cart[id]; !ok {
		return false, nil
	}
	delete(d.cart, id)
	return true, nil
}

func (v *memView) ClearCart(ctx context.Context, sessionID string) (int64, error) {
	d, done := v.begin()
	defer done()
	if err := v.failed("ClearCart"); err != nil {
		return 0, err
	}
	var n int64
	for id, ci := range d.cart {
		if ci.SessionID == sessionID {
			delete(d.cart, id)
			n++
		}
	}
	return n, nil
}

func (v *memView) CreateOrder(ctx context.Context, order *models.Order) error {
	d, done := v.begin()
	defer done()
	if err := v.failed("CreateOrder"); err != nil {
		return err
	}
	if order.IdempotencyKey != nil {
		for _, o := range d.orders {
			if o.SessionID == order.SessionID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return conflict("orders_session_id_idempotency_key_key")
			}
		}
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].LineNo = i + 1
	}
	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	d.orders[order.ID] = stored
	d.orderSeq = append(d.orderSeq, order.ID)
	return nil
}

func copyOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return &o
}

func (v *memView) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	d, done := v.begin()
	defer done()
	o, ok := d.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyOrder(o), nil
}

func (v *memView) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	return v.GetOrder(ctx, id)
}

func (v *memView) GetOrderByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.Order, error) {
	d, done := v.begin()
	defer done()
	for _, o := range d.orders {
		if o.SessionID == sessionID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return copyOrder(o), nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *memView) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	d, done := v.begin()
	defer done()
	o, ok := d.orders[order.ID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = order.Status
	o.PreparedAt = order.PreparedAt
	o.ServedAt = order.ServedAt
	o.CancelledAt = order.CancelledAt
	o.CancellationReason = order.CancellationReason
	d.orders[order.ID] = o
	return nil
}

func (v *memView) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	d, done := v.begin()
	defer done()
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	out := []models.Order{}
	for i := len(d.orderSeq) - 1; i >= 0 && len(out) < limit; i-- {
		o := d.orders[d.orderSeq[i]]
		if filter.RestaurantID != "" && o.RestaurantID != filter.RestaurantID {
			continue
		}
		if filter.SessionID != "" && o.SessionID != filter.SessionID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	return out, nil
}

func (v *memView) CreatePayment(ctx context.Context, payment *models.Payment) error {
	d, done := v.begin()
	defer done()
	payment.CreatedAt = time.Now()
	d.payments[payment.ID] = *payment
	d.paymentSeq = append(d.paymentSeq, payment.ID)
	return nil
}

func (v *memView) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	d, done := v.begin()
	defer done()
	p, ok := d.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (v *memView) LockPayment(ctx context.Context, id string) (*models.Payment, error) {
	return v.GetPayment(ctx, id)
}

func (v *memView) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	d, done := v.begin()
	defer done()
	p, ok := d.payments[payment.ID]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = payment.Status
	p.TransactionID = payment.TransactionID
	p.FailureReason = payment.FailureReason
	p.ProcessedAt = payment.ProcessedAt
	d.payments[payment.ID] = p
	return nil
}

func (v *memView) SumPaidPayments(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	d, done := v.begin()
	defer done()
	sum := decimal.Zero
	for _, p := range d.payments {
		if p.SessionID == sessionID && p.Status == models.PaymentStatusPaid {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (v *memView) SumOpenPayments(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	d, done := v.begin()
	defer done()
	sum := decimal.Zero
	for _, p := range d.payments {
		if p.SessionID != sessionID {
			continue
		}
		if p.Status == models.PaymentStatusPending || p.Status == models.PaymentStatusPaid {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (v *memView) ListPayments(ctx context.Context, sessionID string, status models.PaymentStatus) ([]models.Payment, error) {
	d, done := v.begin()
	defer done()
	out := []models.Payment{}
	for _, id := range d.paymentSeq {
		p := d.payments[id]
		if p.SessionID == sessionID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v *memView) GetBillBySession(ctx context.Context, sessionID string) (*models.Bill, error) {
	d, done := v.begin()
	defer done()
	b, ok := d.bills[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (v *memView) InsertBill(ctx context.Context, bill *models.Bill) (bool, error) {
	d, done := v.begin()
	defer done()
	if err := v.failed("InsertBill"); err != nil {
		return false, err
	}
	for _, b := range d.bills {
		if b.BillNumber == bill.BillNumber {
			return false, nil
		}
	}
	if _, ok := d.bills[bill.SessionID]; ok {
		return false, conflict("bills_session_id_key")
	}
	d.bills[bill.SessionID] = *bill
	return true, nil
}

func (v *memView) GetCoupon(ctx context.Context, id string) (*models.Coupon, error) {
	d, done := v.begin()
	defer done()
	c, ok := d.coupons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (v *memView) GetCouponByCode(ctx context.Context, restaurantID, code string) (*models.Coupon, error) {
	d, done := v.begin()
	defer done()
	for _, c := range d.coupons {
		if c.RestaurantID == restaurantID && strings.EqualFold(c.Code, code) {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *memView) IncrementCouponUsage(ctx context.Context, id string) (bool, error) {
	d, done := v.begin()
	defer done()
	c, ok := d.coupons[id]
	if !ok || (c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit) {
		return false, nil
	}
	c.UsedCount++
	d.coupons[id] = c
	return true, nil
}

func (v *memView) CreateFeedback(ctx context.Context, feedback *models.Feedback) error {
	d, done := v.begin()
	defer done()
	if _, ok := d.feedback[feedback.SessionID]; ok {
		return conflict("feedback_session_id_key")
	}
	d.feedback[feedback.SessionID] = *feedback
	return nil
}

func (v *memView) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	d, done := v.begin()
	defer done()
	_, ok := d.events[eventID]
	return ok, nil
}

func (v *memView) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	d, done := v.begin()
	defer done()
	if _, ok := d.events[eventID]; !ok {
		d.events[eventID] = eventType
	}
	return nil
}
