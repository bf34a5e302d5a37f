package geo

import (
	"context"
	"testing"

	"maitred/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// Taksim Square to Kadıköy pier
	d := HaversineKm(41.0370, 28.9850, 40.9910, 29.0240)
	assert.InDelta(t, 6.1, d, 0.3)
	assert.Equal(t, 0.0, HaversineKm(41, 29, 41, 29))
}

func TestCheckServiceArea(t *testing.T) {
	areas := NewStaticAreas([]config.StoreConfig{
		{TenantID: "demo", ID: "taksim", Name: "Taksim", Lat: 41.0370, Lng: 28.9850, RadiusKm: 3, DeliveryFee: decimal.NewFromInt(15)},
		{TenantID: "demo", ID: "kadikoy", Name: "Kadıköy", Lat: 40.9910, Lng: 29.0240, RadiusKm: 4, DeliveryFee: decimal.NewFromInt(10)},
		{TenantID: "other", ID: "far", Lat: 39.9, Lng: 32.8, RadiusKm: 100},
	})
	ctx := context.Background()

	res, err := areas.CheckServiceArea(ctx, "demo", 40.9900, 29.0300)
	require.NoError(t, err)
	assert.True(t, res.WithinArea)
	require.NotNil(t, res.NearestStore)
	assert.Equal(t, "kadikoy", res.NearestStore.ID)
	assert.True(t, res.DeliveryFee.Equal(decimal.NewFromInt(10)))

	res, err = areas.CheckServiceArea(ctx, "demo", 41.2000, 28.7000)
	require.NoError(t, err)
	assert.False(t, res.WithinArea)
	require.NotNil(t, res.NearestStore)
	assert.Equal(t, "taksim", res.NearestStore.ID)

	res, err = areas.CheckServiceArea(ctx, "nobody", 41, 29)
	require.NoError(t, err)
	assert.False(t, res.WithinArea)
	assert.Nil(t, res.NearestStore)
}
