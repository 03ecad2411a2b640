package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSnapshot(t *testing.T) *InventoryService {
	t.Helper()
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeRepo{})
	res := svc.AddBatch(ctx, "Basement", []ItemQuantity{
		{Item: "Plastic Bucket", Category: "Plastics", Quantity: 75},
		{Item: "Water Tank", Category: "Plastics", Quantity: 20},
		{Item: "Chair Model 220", Category: "Furniture", Quantity: 40},
	})
	require.Empty(t, res.Failed())
	_, err := svc.Move(ctx, "Plastic Bucket", "Basement", "Shop", 5)
	require.NoError(t, err)
	return svc
}

func TestQuery_Filters(t *testing.T) {
	svc := seedSnapshot(t)

	assert.Equal(t, 4, svc.Query(Filter{}).Len())
	assert.Equal(t, 2, svc.Query(Filter{Search: "BUCKET"}).Len())
	assert.Equal(t, 3, svc.Query(Filter{Search: "plastics"}).Len())
	assert.Equal(t, 1, svc.Query(Filter{Search: "bucket", Location: "shop"}).Len())
	assert.Zero(t, svc.Query(Filter{Search: "sofa"}).Len())
	assert.NotNil(t, svc.Query(Filter{Search: "sofa"}).Rows())
}

func TestQuery_SnapshotIsStableAndRestartable(t *testing.T) {
	ctx := context.Background()
	svc := seedSnapshot(t)

	snap := svc.Query(Filter{Search: "bucket"})
	first := snap.Rows()

	_, err := svc.Purchase(ctx, "Plastic Bucket", "Shop", 100)
	require.NoError(t, err)

	assert.Equal(t, first, snap.Rows(), "iterating twice yields the same rows")
	assert.Equal(t, 75, snap.TotalStock("Plastic Bucket"))
	assert.Equal(t, 175, svc.Query(Filter{}).TotalStock("Plastic Bucket"))
}

func TestQuery_EarlyBreak(t *testing.T) {
	svc := seedSnapshot(t)

	n := 0
	for range svc.Query(Filter{}).All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
