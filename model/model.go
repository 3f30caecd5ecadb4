// Package model holds the shop entities mirrored between the record store and
// the shared cache.
package model

import "time"

// Kinds name the cache namespace of each entity (`<kind>:<id>`).
const (
	KindProduct = "product"
	KindOrder   = "order"
	KindUser    = "user"
)

type Review struct {
	Name      string    `json:"name"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID           string    `json:"id"`
	User         string    `json:"user,omitempty"`
	Name         string    `json:"name"`
	Image        string    `json:"image"`
	Brand        string    `json:"brand"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Reviews      []Review  `json:"reviews"`
	Rating       float64   `json:"rating"`
	NumReviews   int       `json:"numReviews"`
	Price        float64   `json:"price"`
	CountInStock int       `json:"countInStock"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (p *Product) GetID() string       { return p.ID }
func (p *Product) SetID(id string)     { p.ID = id }
func (p *Product) Stamp(now time.Time) { stamp(&p.CreatedAt, &p.UpdatedAt, now) }

// Rerate recomputes Rating and NumReviews from the review list.
func (p *Product) Rerate() {
	p.NumReviews = len(p.Reviews)
	if p.NumReviews == 0 {
		p.Rating = 0
		return
	}
	var sum float64
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Rating = sum / float64(p.NumReviews)
}

// ReviewedBy reports whether userID already reviewed the product.
func (p *Product) ReviewedBy(userID string) bool {
	for _, r := range p.Reviews {
		if r.User == userID {
			return true
		}
	}
	return false
}

type OrderItem struct {
	Name    string  `json:"name"`
	Qty     int     `json:"qty"`
	Image   string  `json:"image"`
	Price   float64 `json:"price"` // snapshot at order creation
	Product string  `json:"product"`
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// PaymentResult is the confirmation payload recorded on settlement.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

type Order struct {
	ID              string          `json:"id"`
	User            string          `json:"user"`
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentResult   *PaymentResult  `json:"paymentResult"`
	ItemsPrice      float64         `json:"itemsPrice"`
	TaxPrice        float64         `json:"taxPrice"`
	ShippingPrice   float64         `json:"shippingPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (o *Order) GetID() string       { return o.ID }
func (o *Order) SetID(id string)     { o.ID = id }
func (o *Order) Stamp(now time.Time) { stamp(&o.CreatedAt, &o.UpdatedAt, now) }

// ProductIDs returns the distinct product ids referenced by the line items,
// in first-seen order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.OrderItems))
	out := make([]string, 0, len(o.OrderItems))
	for _, it := range o.OrderItems {
		if _, ok := seen[it.Product]; ok {
			continue
		}
		seen[it.Product] = struct{}{}
		out = append(out, it.Product)
	}
	return out
}

// Quantities sums line item quantities per product id.
func (o *Order) Quantities() map[string]int {
	out := make(map[string]int, len(o.OrderItems))
	for _, it := range o.OrderItems {
		out[it.Product] += it.Qty
	}
	return out
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) GetID() string       { return u.ID }
func (u *User) SetID(id string)     { u.ID = id }
func (u *User) Stamp(now time.Time) { stamp(&u.CreatedAt, &u.UpdatedAt, now) }

func stamp(created, updated *time.Time, now time.Time) {
	now = now.UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
