package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/inventory-engine/inventory"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 3, 10, 9, 0, 0, 123000, time.UTC)

	got, err := parseTime("created_at", formatTime(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = parseTime("created_at", "10/03/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `created_at: invalid timestamp "10/03/2025"`)
}

func TestCorruptTimestamp_SurfacesAsPersistenceError(t *testing.T) {
	// GIVEN: A material and its audit record whose timestamps were damaged on disk
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	core, logs := observer.New(zapcore.ErrorLevel)
	svc := inventory.NewService(st, inventory.WithLogger(zap.New(core)))
	ctx := context.Background()
	id, err := svc.AddMaterial(ctx, "alice", inventory.NewMaterial{Name: "Bead", InPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)

	_, err = st.db.ExecContext(ctx, `UPDATE materials SET updated_at = 'garbage' WHERE id = ?`, id)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `UPDATE operation_records SET created_at = ''`)
	require.NoError(t, err)

	// WHEN: Reading them back
	_, errMaterial := svc.GetMaterial(ctx, id)
	_, errList := svc.AllMaterials(ctx)
	_, errRecords := svc.ListRecords(ctx, inventory.RecordFilter{})

	// THEN: Each read fails instead of reporting a year-one timestamp
	for _, err := range []error{errMaterial, errList, errRecords} {
		assert.ErrorIs(t, err, inventory.ErrPersistence)
	}

	// AND: The cause reaches the log
	require.Equal(t, 3, logs.Len())
	assert.Contains(t, logs.All()[0].ContextMap()["error"], `updated_at: invalid timestamp "garbage"`)
}
