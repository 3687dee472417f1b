package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/inventory-engine/accounts"
	"github.com/warp/inventory-engine/inventory"
)

// workbook builds an xlsx with one sheet holding rows.
func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func readRows(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	return rows
}

func TestImportTemplate_RoundTrip(t *testing.T) {
	// GIVEN: The downloadable template
	var buf bytes.Buffer
	require.NoError(t, WriteImportTemplate(&buf))

	// WHEN: Reading it back as an import
	rows, bad, err := ReadMaterials(&buf)

	// THEN: The example row parses
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "Bead", rows[0].Name)
	assert.True(t, rows[0].InPrice.Equal(decimal.RequireFromString("1")))
	require.NotNil(t, rows[0].OutPrice)
	assert.True(t, rows[0].OutPrice.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 100, rows[0].Stock)
}

func TestReadMaterials_HeadersInAnyOrder(t *testing.T) {
	buf := workbook(t,
		[]any{"Stock", "Name", "In_Price"},
		[]any{10, "Thread", "0.25"},
		[]any{"", "", ""},
		[]any{"x", "Clasp", "3"},
		[]any{"", "Box", "abc"},
		[]any{"", "Pin", ""},
	)

	rows, bad, err := ReadMaterials(buf)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Thread", rows[0].Name)
	assert.Equal(t, 10, rows[0].Stock)
	assert.Nil(t, rows[0].OutPrice)
	assert.Equal(t, "Pin", rows[1].Name)
	assert.True(t, rows[1].InPrice.IsZero())
	assert.Equal(t, 6, rows[1].Row)

	require.Len(t, bad, 2)
	assert.Equal(t, 4, bad[0].Row)
	assert.Contains(t, bad[0].Reason, "stock")
	assert.Equal(t, 5, bad[1].Row)
	assert.Equal(t, inventory.KindValidation, bad[1].Kind)
}

func TestReadMaterials_PositionalWithoutHeaders(t *testing.T) {
	buf := workbook(t,
		[]any{"Material", "Cost", "Price", "Qty"},
		[]any{"Bead", "0.4", "0.8", 2000},
	)

	rows, bad, err := ReadMaterials(buf)
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.Len(t, rows, 1)
	assert.Equal(t, 2000, rows[0].Stock)
	assert.True(t, rows[0].OutPrice.Equal(decimal.RequireFromString("0.8")))
}

func TestReadMaterials_RejectsBadFiles(t *testing.T) {
	_, _, err := ReadMaterials(bytes.NewBufferString("name,in_price\nBead,1\n"))
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, _, err = ReadMaterials(workbook(t, []any{"name", "in_price"}))
	var ve *inventory.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "no data rows", ve.Message)
}

func TestWriteMaterials(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	updated := time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC)
	mats := []*inventory.Material{{
		ID: 1, Name: "Bead", InPrice: decimal.RequireFromString("0.4"), OutPrice: decimal.RequireFromString("0.8"),
		StockCount: 12, UsedBy: inventory.NewProductSet(3, 4), UpdatedAt: updated,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteMaterials(&buf, mats, zone))

	rows := readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "name", "in_price", "out_price", "stock", "used_by_count", "updated_at"}, rows[0])
	assert.Equal(t, []string{"1", "Bead", "0.40", "0.80", "12", "2", "2025-03-11 00:30:00"}, rows[1])
}

func TestWriteProductsAndRecords(t *testing.T) {
	views := []*inventory.ProductView{{
		Product: &inventory.Product{ID: 7, Name: "Bracelet", InPrice: decimal.NewFromInt(10),
			OtherPrice: decimal.NewFromInt(5), OutPrice: decimal.NewFromInt(15), StockCount: 2},
		Components:       []inventory.Component{{MaterialID: 1, Name: "Bead", PerUnit: 10}},
		PossibleQuantity: 4,
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteProducts(&buf, views, time.UTC))
	rows := readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bead×10", rows[1][2])
	assert.Equal(t, "15.00", rows[1][5])
	assert.Equal(t, "4", rows[1][7])

	recs := []inventory.OperationRecord{{Type: inventory.OpProductInbound, SubjectName: "Bracelet",
		Quantity: 2, Detail: "produced 2", Actor: "alice", CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}}
	buf.Reset()
	require.NoError(t, WriteRecords(&buf, recs, time.UTC))
	rows = readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2025-03-10 09:00:00", "product_inbound", "Bracelet", "2", "produced 2", "alice"}, rows[1])
}

func TestReadUsers(t *testing.T) {
	buf := workbook(t,
		[]any{"Role", "Username", "Password"},
		[]any{"ADMIN", "alice", "pw"},
		[]any{"", "bob", ""},
		[]any{"admin", "", "pw"},
		[]any{"owner", "carol", "pw"},
	)

	rows, bad, err := ReadUsers(buf)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, accounts.UserRow{Row: 2, Username: "alice", Password: "pw", Role: inventory.RoleAdmin}, rows[0])
	assert.Equal(t, inventory.RoleUser, rows[1].Role)
	assert.Empty(t, rows[1].Password)
	require.Len(t, bad, 1)
	assert.Equal(t, 5, bad[0].Row)
	assert.Equal(t, "carol", bad[0].Name)
}

func TestReadUsers_Positional(t *testing.T) {
	buf := workbook(t,
		[]any{"Avatar", "Login", "Secret", "Kind"},
		[]any{"https://img/a.png", "alice", "pw", "user"},
	)

	rows, bad, err := ReadUsers(buf)
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://img/a.png", rows[0].AvatarRef)
	assert.Equal(t, "alice", rows[0].Username)
}

func TestWriteUsersAndAll(t *testing.T) {
	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	users := []*inventory.User{{ID: 1, Username: "alice", PasswordHash: "$2a$secret", Role: inventory.RoleAdmin,
		CreatedAt: created, UpdatedAt: created}}

	var buf bytes.Buffer
	require.NoError(t, WriteUsers(&buf, users, time.UTC))
	rows := readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "username", "role", "avatar_ref", "created_at", "updated_at"}, rows[0])
	assert.NotContains(t, rows[1], "$2a$secret")

	buf.Reset()
	require.NoError(t, WriteAll(&buf, Dump{Users: users}, time.UTC))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Materials", "Products", "Records", "Users"}, f.GetSheetList())
	got, err := f.GetRows("Users")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
