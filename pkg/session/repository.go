package session

import "soltabs/pkg/models"

// Repository holds the resolved token records in tab order. It is not safe for
// concurrent use; the Controller guards it.
type Repository struct {
	records map[string]models.TokenRecord
	order   []string
}

func NewRepository() *Repository {
	return &Repository{records: make(map[string]models.TokenRecord)}
}

func (r *Repository) Get(addr string) (models.TokenRecord, bool) {
	rec, ok := r.records[addr]
	return rec, ok
}

// Put stores rec under addr. A new address is appended to the tab order; an
// existing one keeps its position.
func (r *Repository) Put(addr string, rec models.TokenRecord) {
	if _, ok := r.records[addr]; !ok {
		r.order = append(r.order, addr)
	}
	r.records[addr] = rec
}

func (r *Repository) Remove(addr string) {
	if _, ok := r.records[addr]; !ok {
		return
	}
	delete(r.records, addr)
	for i, a := range r.order {
		if a == addr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Addresses returns a copy of the tab order.
func (r *Repository) Addresses() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Repository) Len() int {
	return len(r.order)
}

// PatchPrice replaces only the price data of an existing record.
func (r *Repository) PatchPrice(addr string, pd *models.PriceData) bool {
	rec, ok := r.records[addr]
	if !ok {
		return false
	}
	rec.PriceData = pd
	r.records[addr] = rec
	return true
}

// Records returns the records in tab order.
func (r *Repository) Records() []models.TokenRecord {
	out := make([]models.TokenRecord, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, r.records[a])
	}
	return out
}
