package inventory_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/inventory/store"
)

func TestRecords_EveryMutationAudited(t *testing.T) {
	// GIVEN: Scenario A (add material, inbound, add product, produce)
	f := newFixture(t)
	f.scenarioA()

	// WHEN: Listing with the default order
	page, err := f.svc.ListRecords(f.ctx, inventory.RecordFilter{})
	require.NoError(t, err)

	// THEN: Four records, newest first
	require.Equal(t, 4, page.Total)
	types := make([]inventory.OperationType, len(page.Records))
	for i, r := range page.Records {
		types[i] = r.Type
		assert.Equal(t, actor, r.Actor)
		assert.Equal(t, t0, r.CreatedAt)
	}
	assert.Equal(t, []inventory.OperationType{
		inventory.OpProductInbound, inventory.OpProductAdd,
		inventory.OpMaterialInbound, inventory.OpMaterialAdd,
	}, types)

	produced := page.Records[0]
	assert.Equal(t, 5, produced.Quantity)
	assert.Equal(t, "Bracelet", produced.SubjectName)
	assert.Contains(t, produced.Detail, "consumed Bead×50")
	assert.Equal(t, "added material Bead, cost 1.00, price 1.00", page.Records[3].Detail)
}

func TestRecords_RejectedOperationLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	bead, _ := f.scenarioA()

	require.Error(t, f.svc.MaterialOutbound(f.ctx, actor, bead, 500, ""))

	page, err := f.svc.ListRecords(f.ctx, inventory.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
}

func TestRecords_SignedQuantities(t *testing.T) {
	f := newFixture(t)
	bead, bracelet := f.scenarioA()
	require.NoError(t, f.svc.MaterialOutbound(f.ctx, actor, bead, 3, "Shop"))
	require.NoError(t, f.svc.ProductOutbound(f.ctx, actor, bracelet, 2, ""))
	require.NoError(t, f.svc.ProductRestore(f.ctx, actor, bracelet, 1, "broken clasp"))

	page, err := f.svc.ListRecords(f.ctx, inventory.RecordFilter{Page: inventory.Page{Limit: 3}})
	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	assert.Equal(t, -1, page.Records[0].Quantity)
	assert.Contains(t, page.Records[0].Detail, "reason broken clasp")
	assert.Equal(t, -2, page.Records[1].Quantity)
	assert.Equal(t, -3, page.Records[2].Quantity)
	assert.True(t, strings.HasPrefix(page.Records[2].Detail, "customer Shop, "))
}

func TestRecords_Filters(t *testing.T) {
	f := newFixture(t)
	bead := f.material("Bead", "1", 10)
	f.clock.Advance(time.Hour)
	thread, err := f.svc.AddMaterial(f.ctx, "bob", inventory.NewMaterial{Name: "Thread", InPrice: dec("1")})
	require.NoError(t, err)
	require.NoError(t, f.svc.MaterialInbound(f.ctx, "bob", thread, 4, "Thread Co"))

	from := t0.Add(30 * time.Minute)
	to := t0.Add(2 * time.Hour)

	tests := []struct {
		name   string
		filter inventory.RecordFilter
		want   int
	}{
		{"all", inventory.RecordFilter{}, 4},
		{"by type", inventory.RecordFilter{Types: []inventory.OperationType{inventory.OpMaterialInbound}}, 2},
		{"by actor", inventory.RecordFilter{Actors: []string{"bob"}}, 2},
		{"by text", inventory.RecordFilter{Search: "Thread Co"}, 1},
		{"by subject", inventory.RecordFilter{SubjectID: int64(bead)}, 2},
		{"from", inventory.RecordFilter{From: &from}, 2},
		{"to", inventory.RecordFilter{To: &from}, 2},
		{"window", inventory.RecordFilter{From: &from, To: &to, Actors: []string{actor}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.ListRecords(f.ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Total)
		})
	}
}

func TestRecords_PageClampedToMaximum(t *testing.T) {
	svc := inventory.NewService(store.NewMemory(), inventory.WithLimits(inventory.Limits{RecordsMax: 2}))
	ctx := context.Background()
	id, err := svc.AddMaterial(ctx, actor, inventory.NewMaterial{Name: "Bead", InPrice: dec("1")})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.MaterialInbound(ctx, actor, id, 1, ""))
	}

	page, err := svc.ListRecords(ctx, inventory.RecordFilter{Page: inventory.Page{Limit: 50}, Order: inventory.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Records, 2)
	assert.Equal(t, inventory.OpMaterialAdd, page.Records[0].Type)

	all, err := svc.AllRecords(ctx, inventory.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRecords_DetailTruncated(t *testing.T) {
	svc := inventory.NewService(store.NewMemory(), inventory.WithLimits(inventory.Limits{DetailMax: 20}))
	ctx := context.Background()

	_, err := svc.AddMaterial(ctx, actor, inventory.NewMaterial{Name: "Glass Bead Extra Large", InPrice: dec("1")})
	require.NoError(t, err)

	page, err := svc.ListRecords(ctx, inventory.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "added material Glass", page.Records[0].Detail)
}

func TestClearRecords(t *testing.T) {
	// GIVEN: Four records
	f := newFixture(t)
	f.scenarioA()

	// WHEN: Clearing
	n, err := f.svc.ClearRecords(f.ctx, "admin")
	require.NoError(t, err)

	// THEN: Only the clear marker remains
	assert.Equal(t, 4, n)
	page, err := f.svc.ListRecords(f.ctx, inventory.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	r := page.Records[0]
	assert.Equal(t, inventory.OpRecordsCleared, r.Type)
	assert.Equal(t, "cleared 4 records", r.Detail)
	assert.Equal(t, "admin", r.Actor)
}

func TestDeleteRecords_Filtered(t *testing.T) {
	f := newFixture(t)
	bead, _ := f.scenarioA()
	require.NoError(t, f.svc.MaterialInbound(f.ctx, actor, bead, 1, ""))

	n, err := f.svc.DeleteRecords(f.ctx, "admin", inventory.RecordFilter{
		Types: []inventory.OperationType{inventory.OpMaterialInbound},
		Page:  inventory.Page{Limit: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := f.svc.ListRecords(f.ctx, inventory.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, inventory.OpRecordsDeleted, page.Records[0].Type)
	assert.Equal(t, "deleted 2 records matching types material_inbound", page.Records[0].Detail)
}

func TestClearRecords_RequiresActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ClearRecords(f.ctx, " ")
	assert.ErrorIs(t, err, inventory.ErrValidation)
}
