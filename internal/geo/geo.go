// Package geo answers whether a delivery location is served by one of the tenant's stores.
package geo

import (
	"context"
	"math"

	"maitred/internal/config"

	"github.com/shopspring/decimal"
)

const earthRadiusKm = 6371.0

// Store is a delivering location
type Store struct {
	ID          string
	Name        string
	DeliveryFee decimal.Decimal
}

// Result is the outcome of a service-area check
type Result struct {
	WithinArea   bool
	NearestStore *Store
	DistanceKm   float64
	DeliveryFee  decimal.Decimal
}

// Checker is the geo collaborator
type Checker interface {
	CheckServiceArea(ctx context.Context, tenantID string, lat, lng float64) (Result, error)
}

// StaticAreas serves circles around configured stores
type StaticAreas struct {
	stores map[string][]config.StoreConfig
}

// NewStaticAreas groups the configured stores by tenant
func NewStaticAreas(stores []config.StoreConfig) *StaticAreas {
	byTenant := make(map[string][]config.StoreConfig)
	for _, s := range stores {
		byTenant[s.TenantID] = append(byTenant[s.TenantID], s)
	}
	return &StaticAreas{stores: byTenant}
}

// CheckServiceArea picks the nearest store whose radius covers the point.
// NearestStore is set even when the point is outside every area.
func (a *StaticAreas) CheckServiceArea(ctx context.Context, tenantID string, lat, lng float64) (Result, error) {
	var (
		res        Result
		nearest    = math.MaxFloat64
		nearestIn  = math.MaxFloat64
		nearestAny *config.StoreConfig
		covering   *config.StoreConfig
	)
	stores := a.stores[tenantID]
	for i := range stores {
		s := &stores[i]
		d := HaversineKm(lat, lng, s.Lat, s.Lng)
		if d < nearest {
			nearest, nearestAny = d, s
		}
		if d <= s.RadiusKm && d < nearestIn {
			nearestIn, covering = d, s
		}
	}

	switch {
	case covering != nil:
		res.WithinArea = true
		res.DistanceKm = nearestIn
		res.DeliveryFee = covering.DeliveryFee
		res.NearestStore = &Store{ID: covering.ID, Name: covering.Name, DeliveryFee: covering.DeliveryFee}
	case nearestAny != nil:
		res.DistanceKm = nearest
		res.NearestStore = &Store{ID: nearestAny.ID, Name: nearestAny.Name, DeliveryFee: nearestAny.DeliveryFee}
	}
	return res, nil
}

// HaversineKm is the great-circle distance between two points
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
