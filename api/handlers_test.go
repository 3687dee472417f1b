/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Material and product lifecycle through the router
- Error kind to status mapping
- Audit log listing and clearing
- Accounts and login
- Workbook export/import round trip for materials and users
- Combined workbook export
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/inventory-engine/accounts"
	"github.com/warp/inventory-engine/export"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/metrics"
	"github.com/warp/inventory-engine/store/sqlite"
)

type envelope struct {
	Success bool            `json:"success"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	router http.Handler
	inv    *inventory.Service
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := zaptest.NewLogger(t)
	col := metrics.New()
	inv := inventory.NewService(st, inventory.WithLogger(log), inventory.WithObserver(col))
	acc := accounts.NewService(inv, accounts.WithCost(bcrypt.MinCost))
	h := NewHandler(inv, acc, log)
	return &testAPI{t: t, router: NewRouter(h, Options{Metrics: col.Handler()}), inv: inv}
}

func (a *testAPI) raw(method, path, actor string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// call sends body as alice and decodes the envelope; out receives Data.
func (a *testAPI) call(method, path string, body, out any) (int, envelope) {
	a.t.Helper()
	rec := a.raw(method, path, "alice", body)
	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil && env.Success {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return rec.Code, env
}

func (a *testAPI) material(name, in string) MaterialDTO {
	a.t.Helper()
	var m MaterialDTO
	code, env := a.call("POST", "/api/materials", map[string]any{"name": name, "in_price": in}, &m)
	require.Equal(a.t, http.StatusCreated, code, env.Message)
	return m
}

func TestMaterial_InboundOutbound(t *testing.T) {
	// GIVEN: A material with no stock
	// WHEN: Receiving 100 then shipping more than is held
	// THEN: The shortfall is a 409 and stock is unchanged
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")
	assert.Equal(t, "1.00", bead.InPrice)
	assert.Equal(t, "1.00", bead.OutPrice)

	var stock StockDTO
	code, _ := api.call("POST", fmt.Sprintf("/api/materials/%d/inbound", bead.ID), MovementRequest{Quantity: 100, Partner: "Bead Co"}, &stock)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, stock.Stock)

	code, env := api.call("POST", fmt.Sprintf("/api/materials/%d/outbound", bead.ID), MovementRequest{Quantity: 150}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(inventory.KindInsufficientStock), env.Kind)
	assert.False(t, env.Success)

	code, _ = api.call("GET", fmt.Sprintf("/api/materials/%d/stock", bead.ID), nil, &stock)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, stock.Stock)
}

func TestProduct_AssembleAndRestore(t *testing.T) {
	// GIVEN: 100 beads and a bracelet needing 10 beads with a 5.00 surcharge
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")
	code, _ := api.call("POST", fmt.Sprintf("/api/materials/%d/inbound", bead.ID), MovementRequest{Quantity: 100}, nil)
	require.Equal(t, http.StatusOK, code)

	var p ProductDTO
	code, env := api.call("POST", "/api/products", map[string]any{
		"name":        "Bracelet",
		"bom":         map[string]int{fmt.Sprint(bead.ID): 10},
		"other_price": "5",
	}, &p)
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.Equal(t, "10.00", p.InPrice)
	assert.Equal(t, "15.00", p.OutPrice)
	assert.Equal(t, 10, p.PossibleQuantity)

	// WHEN: Producing 5 units
	code, _ = api.call("POST", fmt.Sprintf("/api/products/%d/inbound", p.ID), MovementRequest{Quantity: 5}, &p)
	require.Equal(t, http.StatusOK, code)

	// THEN: Beads were consumed
	assert.Equal(t, 5, p.Stock)
	require.Len(t, p.Components, 1)
	assert.Equal(t, 50, p.Components[0].Stock)

	// AND: Producing beyond material stock is rejected
	code, env = api.call("POST", fmt.Sprintf("/api/products/%d/inbound", p.ID), MovementRequest{Quantity: 6}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(inventory.KindInsufficientStock), env.Kind)

	// AND: Restore requires a reason
	code, env = api.call("POST", fmt.Sprintf("/api/products/%d/restore", p.ID), MovementRequest{Quantity: 2}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(inventory.KindValidation), env.Kind)

	code, _ = api.call("POST", fmt.Sprintf("/api/products/%d/restore", p.ID), MovementRequest{Quantity: 2, Reason: "defect"}, &p)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 70, p.Components[0].Stock)
}

func TestMaterial_PriceChangeCascades(t *testing.T) {
	// GIVEN: A bracelet built from 10 beads at 1.00
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")
	var p ProductDTO
	code, _ := api.call("POST", "/api/products", map[string]any{
		"name": "Bracelet", "bom": map[string]int{fmt.Sprint(bead.ID): 10}, "other_price": 5,
	}, &p)
	require.Equal(t, http.StatusCreated, code)

	// WHEN: Previewing and then applying a new bead price
	var impact PriceImpactDTO
	code, _ = api.call("POST", fmt.Sprintf("/api/materials/%d/price-impact", bead.ID), map[string]any{"in_price": "2.00"}, &impact)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, impact.PriceChanged)
	require.Len(t, impact.Products, 1)
	assert.Equal(t, "10.00", impact.Products[0].CurrentCost)
	assert.Equal(t, "20.00", impact.Products[0].NewCost)
	assert.Equal(t, "25.00", impact.Products[0].NewSelling)

	var updated struct {
		PriceChanged bool `json:"price_changed"`
	}
	code, _ = api.call("PUT", fmt.Sprintf("/api/materials/%d", bead.ID), map[string]any{"name": "Bead", "in_price": "2.00"}, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, updated.PriceChanged)

	// THEN: The product was repriced in the same operation
	code, _ = api.call("GET", fmt.Sprintf("/api/products/%d", p.ID), nil, &p)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "20.00", p.InPrice)
	assert.Equal(t, "25.00", p.OutPrice)
}

func TestMaterial_DeleteReferencedIsConflict(t *testing.T) {
	// GIVEN: A material used by a product
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")
	code, _ := api.call("POST", "/api/products", map[string]any{
		"name": "Bracelet", "bom": map[string]int{fmt.Sprint(bead.ID): 10},
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	// WHEN: Deleting the material
	code, env := api.call("DELETE", fmt.Sprintf("/api/materials/%d", bead.ID), nil, nil)

	// THEN: It is still referenced
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(inventory.KindStillReferenced), env.Kind)
	assert.Contains(t, env.Message, "Bead")
}

func TestProduct_UnknownMaterialIsConflict(t *testing.T) {
	api := setupTestAPI(t)
	code, env := api.call("POST", "/api/products", map[string]any{
		"name": "Ghost", "bom": map[string]int{"999": 1},
	}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(inventory.KindReference), env.Kind)
}

func TestErrors_StatusMapping(t *testing.T) {
	api := setupTestAPI(t)
	api.material("Bead", "1.00")

	tests := []struct {
		name   string
		method string
		path   string
		actor  string
		body   any
		status int
		kind   inventory.ErrorKind
	}{
		{"missing actor", "POST", "/api/materials", "", map[string]any{"name": "Thread", "in_price": 1}, http.StatusBadRequest, inventory.KindValidation},
		{"duplicate name", "POST", "/api/materials", "alice", map[string]any{"name": "Bead", "in_price": 1}, http.StatusConflict, inventory.KindDuplicateName},
		{"negative price", "POST", "/api/materials", "alice", map[string]any{"name": "Wire", "in_price": -1}, http.StatusBadRequest, inventory.KindValidation},
		{"unknown material", "GET", "/api/materials/999", "alice", nil, http.StatusNotFound, inventory.KindNotFound},
		{"bad id", "GET", "/api/materials/abc", "alice", nil, http.StatusBadRequest, inventory.KindValidation},
		{"zero quantity", "POST", "/api/materials/1/inbound", "alice", MovementRequest{Quantity: 0}, http.StatusBadRequest, inventory.KindValidation},
		{"bad stats kind", "GET", "/api/statistics/trend?kind=user", "alice", nil, http.StatusBadRequest, inventory.KindValidation},
		{"bad date", "GET", "/api/records?from=yesterday", "alice", nil, http.StatusBadRequest, inventory.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.raw(tt.method, tt.path, tt.actor, tt.body)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.kind), env.Kind)
		})
	}
}

func TestErrors_RequestShape(t *testing.T) {
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")

	tests := []struct {
		name    string
		path    string
		body    any
		message string
	}{
		{"bom entry below one", "/api/products", map[string]any{"name": "Ring", "bom": map[string]int{"1": 0}},
			"bom[1]: must be at least 1"},
		{"bom entry beyond quantity max", "/api/products", map[string]any{"name": "Ring", "bom": map[string]int64{"1": 1 << 62}},
			"bom: quantity for material 1 must be between 1 and 999999"},
		{"negative quantity", fmt.Sprintf("/api/materials/%d/inbound", bead.ID), MovementRequest{Quantity: -3},
			"quantity: must be at least 1"},
		{"empty batch", "/api/materials/batch-delete", map[string]any{"ids": []int64{}},
			"ids: must have at least 1 entries"},
		{"unknown role", "/api/users", map[string]any{"username": "bob", "password": "pw", "role": "root"},
			"role: must be one of: admin user"},
		{"negative price", "/api/materials", map[string]any{"name": "Wire", "in_price": "-0.5"},
			"in_price: must be at least 0"},
		{"missing name", "/api/materials", map[string]any{"in_price": "1"},
			"name: is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := api.call("POST", tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, string(inventory.KindValidation), env.Kind)
			assert.Equal(t, tt.message, env.Message)
		})
	}

	var page struct {
		Total int `json:"total"`
	}
	api.call("GET", "/api/products", nil, &page)
	assert.Zero(t, page.Total)
}

func TestErrors_InvalidJSON(t *testing.T) {
	api := setupTestAPI(t)
	req := httptest.NewRequest("POST", "/api/materials", bytes.NewBufferString("{not json"))
	req.Header.Set(ActorHeader, "alice")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecords_ListFilterAndClear(t *testing.T) {
	// GIVEN: Two materials with one inbound each
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")
	thread := api.material("Thread", "0.50")
	api.call("POST", fmt.Sprintf("/api/materials/%d/inbound", bead.ID), MovementRequest{Quantity: 5}, nil)
	api.call("POST", fmt.Sprintf("/api/materials/%d/inbound", thread.ID), MovementRequest{Quantity: 7}, nil)

	// WHEN: Listing inbound records only
	var page struct {
		Items []RecordDTO `json:"items"`
		Total int         `json:"total"`
	}
	code, _ := api.call("GET", "/api/records?type=material_inbound&order=asc", nil, &page)
	require.Equal(t, http.StatusOK, code)

	// THEN: Both movements come back oldest first
	require.Equal(t, 2, page.Total)
	assert.Equal(t, "Bead", page.Items[0].SubjectName)
	assert.Equal(t, 5, page.Items[0].Quantity)
	assert.Equal(t, "alice", page.Items[0].Actor)

	// WHEN: Clearing the log
	var deleted DeletedDTO
	code, _ = api.call("DELETE", "/api/records", nil, &deleted)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, deleted.Deleted)

	// THEN: Only the clear entry remains
	code, _ = api.call("GET", "/api/records", nil, &page)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, string(inventory.OpRecordsCleared), page.Items[0].Type)
}

func TestRecords_FilteredDelete(t *testing.T) {
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")
	api.call("POST", fmt.Sprintf("/api/materials/%d/inbound", bead.ID), MovementRequest{Quantity: 5}, nil)

	var deleted DeletedDTO
	code, _ := api.call("POST", "/api/records/delete?type=material_add", nil, &deleted)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, deleted.Deleted)

	var page struct {
		Items []RecordDTO `json:"items"`
		Total int         `json:"total"`
	}
	api.call("GET", "/api/records?type=material_add", nil, &page)
	assert.Equal(t, 0, page.Total)
}

func TestStatistics_SummaryAndTop(t *testing.T) {
	api := setupTestAPI(t)
	bead := api.material("Bead", "1.00")
	thread := api.material("Thread", "0.50")
	api.call("POST", fmt.Sprintf("/api/materials/%d/inbound", bead.ID), MovementRequest{Quantity: 10}, nil)
	api.call("POST", fmt.Sprintf("/api/materials/%d/inbound", thread.ID), MovementRequest{Quantity: 30}, nil)

	var sum SummaryDTO
	code, _ := api.call("GET", "/api/statistics/summary", nil, &sum)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, sum.MaterialCount)
	assert.Equal(t, 40, sum.MaterialStock)
	assert.Equal(t, "25.00", sum.StockValue)

	var top []MoverDTO
	code, _ = api.call("GET", "/api/statistics/top?kind=material&limit=1", nil, &top)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, top, 1)
	assert.Equal(t, "Thread", top[0].Name)
	assert.Equal(t, 30, top[0].Quantity)

	var trend []TrendPointDTO
	code, _ = api.call("GET", "/api/statistics/trend?kind=material", nil, &trend)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, trend, 1)
	assert.Equal(t, 40, trend[0].Quantity)
}

func TestUsers_CreateAndLogin(t *testing.T) {
	// GIVEN: A user created through the API
	api := setupTestAPI(t)
	code, env := api.call("POST", "/api/users", CreateUserRequest{Username: "bob", Password: "s3cret", Role: "admin"}, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)

	// WHEN/THEN: The right password logs in
	var u UserDTO
	code, _ = api.call("POST", "/api/login", LoginRequest{Username: "bob", Password: "s3cret"}, &u)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, "admin", u.Role)

	// AND: A wrong password is unauthorized
	code, env = api.call("POST", "/api/login", LoginRequest{Username: "bob", Password: "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, string(inventory.KindUnauthorized), env.Kind)

	// AND: The only admin cannot be removed
	code, env = api.call("DELETE", fmt.Sprintf("/api/users/%d", u.ID), nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(inventory.KindValidation), env.Kind)
}

func TestMaterials_ImportWorkbook(t *testing.T) {
	// GIVEN: The import template, which carries one example row
	api := setupTestAPI(t)
	var sheet bytes.Buffer
	require.NoError(t, export.WriteImportTemplate(&sheet))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "materials.xlsx")
	require.NoError(t, err)
	_, err = part.Write(sheet.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	// WHEN: Uploading it
	req := httptest.NewRequest("POST", "/api/materials/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(ActorHeader, "alice")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	// THEN: The example material exists with its stock
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var res ImportResultDTO
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Failed)

	var page struct {
		Items []MaterialDTO `json:"items"`
	}
	api.call("GET", "/api/materials", nil, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Bead", page.Items[0].Name)
	assert.Equal(t, 100, page.Items[0].Stock)
}

func TestMaterials_Export(t *testing.T) {
	api := setupTestAPI(t)
	api.material("Bead", "1.00")

	rec := api.raw("GET", "/api/materials/export", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "materials.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

// upload posts an xlsx as the "file" form part and decodes the envelope.
func (a *testAPI) upload(path string, sheet []byte, out any) (int, envelope) {
	a.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload.xlsx")
	require.NoError(a.t, err)
	_, err = part.Write(sheet)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(ActorHeader, "alice")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil && env.Success {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return rec.Code, env
}

func workbookBytes(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	name := f.GetSheetName(f.GetActiveSheetIndex())
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(name, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestUsers_ImportAndExportWorkbook(t *testing.T) {
	// GIVEN: An existing user bob
	api := setupTestAPI(t)
	code, env := api.call("POST", "/api/users", CreateUserRequest{Username: "bob", Password: "old", Role: "user"}, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)

	// WHEN: Importing a sheet that adds carol, promotes bob and has two bad rows
	sheet := workbookBytes(t,
		[]any{"username", "password", "role"},
		[]any{"carol", "pw1", "admin"},
		[]any{"bob", "", "admin"},
		[]any{"dave", "", "user"},
		[]any{"eve", "x", "root"},
	)
	var res ImportResultDTO
	code, env = api.upload("/api/users/import", sheet, &res)

	// THEN: One user is created, one updated, and both failures name their rows
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, 5, res.Failed[0].Row)
	assert.Equal(t, 4, res.Failed[1].Row)

	// AND: bob kept his password and is now an admin
	var u UserDTO
	code, _ = api.call("POST", "/api/login", LoginRequest{Username: "bob", Password: "old"}, &u)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin", u.Role)

	// AND: The export lists both users without password material
	rec := api.raw("GET", "/api/users/export", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "users.xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.NotContains(t, rows[0], "password")
	assert.Equal(t, "bob", rows[1][1])
	assert.Equal(t, "carol", rows[2][1])

	// AND: ?ids narrows the export
	rec = api.raw("GET", fmt.Sprintf("/api/users/export?ids=%d", u.ID), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	g, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer g.Close()
	rows, err = g.GetRows("Users")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExportAll_OneSheetPerDataset(t *testing.T) {
	api := setupTestAPI(t)
	api.material("Bead", "1.00")

	rec := api.raw("GET", "/api/export", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inventory.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Materials", "Products", "Records", "Users"}, f.GetSheetList())
	rows, err := f.GetRows("Materials")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bead", rows[1][1])
}

func TestServer_HealthAndMetrics(t *testing.T) {
	api := setupTestAPI(t)
	api.material("Bead", "1.00")

	rec := api.raw("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.raw("GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inventory_operations_total")
}
