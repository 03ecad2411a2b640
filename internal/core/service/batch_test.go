package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func TestMoveBatch_PartialSuccess(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeRepo{})
	added := svc.AddBatch(ctx, "Basement", []ItemQuantity{
		{Item: "Bucket", Quantity: 10},
		{Item: "Chair", Quantity: 2},
	})
	require.Empty(t, added.Failed())

	results := svc.MoveBatch(ctx, "Basement", "Shop", []ItemQuantity{
		{Item: "Bucket", Quantity: 4},
		{Item: "Chair", Quantity: 5},
		{Item: "Bucket", Quantity: 6},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, domain.ErrInsufficientStock)
	assert.Nil(t, results[1].Entry)
	assert.True(t, results[2].OK())
	assert.Len(t, results.Succeeded(), 2)

	chair, _ := svc.Get("Chair", "Basement")
	assert.Equal(t, 2, chair.CurrentStock)
	bucket, _ := svc.Get("Bucket", "Shop")
	assert.Equal(t, 10, bucket.CurrentStock)
}

func TestAddBatch_DuplicateDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeRepo{})

	results := svc.AddBatch(ctx, "Basement", []ItemQuantity{
		{Item: "Bucket", Category: "Plastics", Quantity: 10},
		{Item: "Bucket", Quantity: 3},
		{Item: "Tank", Quantity: 0},
		{Item: "Box", Quantity: 1},
	})

	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, domain.ErrDuplicateItem)
	assert.ErrorIs(t, results[2].Err, domain.ErrValidation)
	assert.True(t, results[3].OK())

	row, _ := svc.Get("Bucket", "Basement")
	assert.Equal(t, "Plastics", row.Category)
	assert.Equal(t, 10, row.CurrentStock)
}

func TestPurchaseBatch_StopsOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{failSave: true}
	svc, _ := newTestService(t, repo)

	results := svc.PurchaseBatch(ctx, "Shop", []ItemQuantity{
		{Item: "Bucket", Quantity: 1},
		{Item: "Chair", Quantity: 1},
		{Item: "Box", Quantity: 1},
	})

	require.Len(t, results, 3)
	assert.ErrorIs(t, results[0].Err, domain.ErrPersistenceWrite)
	assert.NotNil(t, results[0].Entry, "the first line is committed in memory")
	assert.ErrorIs(t, results[1].Err, domain.ErrBatchAborted)
	assert.ErrorIs(t, results[2].Err, domain.ErrBatchAborted)

	_, ok := svc.Get("Chair", "Shop")
	assert.False(t, ok)
	_, ok = svc.Get("Bucket", "Shop")
	assert.True(t, ok)
}

func TestBatch_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, _ := newTestService(t, &fakeRepo{})
	cancel()

	results := svc.PurchaseBatch(ctx, "Shop", []ItemQuantity{
		{Item: "Bucket", Quantity: 1},
		{Item: "Chair", Quantity: 1},
	})

	// the local locker may still win the race against ctx.Done on the first line
	assert.ErrorIs(t, results[1].Err, domain.ErrBatchAborted)
}

func TestBatch_Empty(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepo{})
	results := svc.MoveBatch(context.Background(), "Basement", "Shop", nil)
	assert.Empty(t, results)
	assert.Empty(t, results.Failed())
}
