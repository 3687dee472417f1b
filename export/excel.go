/*
Package export writes inventory data as xlsx workbooks and reads material
and user import sheets.

SHEETS:
  Materials: id, name, in_price, out_price, stock, used_by_count, updated_at
  Products:  id, name, materials, in_price, other_price, out_price, stock,
             possible_quantity, updated_at
  Records:   time, type, subject, quantity, detail, actor
  Users:     id, username, role, avatar_ref, created_at, updated_at
  WriteAll puts all four sheets in one workbook.

IMPORT FORMAT:
  First row is a header. Columns are located by header name (name,
  in_price, out_price, stock); a sheet without recognizable headers is read
  positionally in that order. Empty out_price defaults to in_price, empty
  stock to zero. Rows with an empty name are skipped.
*/
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/inventory-engine/accounts"
	"github.com/warp/inventory-engine/inventory"
)

const timeFormat = "2006-01-02 15:04:05"

// ContentType is the MIME type of every workbook written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// WRITERS
// =============================================================================

// sheet is one worksheet of a workbook: a header row followed by data rows.
type sheet struct {
	name   string
	header []any
	rows   [][]any
}

func WriteMaterials(w io.Writer, mats []*inventory.Material, loc *time.Location) error {
	return writeBook(w, materialsSheet(mats, loc))
}

func WriteProducts(w io.Writer, views []*inventory.ProductView, loc *time.Location) error {
	return writeBook(w, productsSheet(views, loc))
}

func WriteRecords(w io.Writer, recs []inventory.OperationRecord, loc *time.Location) error {
	return writeBook(w, recordsSheet(recs, loc))
}

// WriteUsers lists accounts. Password hashes are never written.
func WriteUsers(w io.Writer, users []*inventory.User, loc *time.Location) error {
	return writeBook(w, usersSheet(users, loc))
}

// Dump is everything the combined export holds.
type Dump struct {
	Materials []*inventory.Material
	Products  []*inventory.ProductView
	Records   []inventory.OperationRecord
	Users     []*inventory.User
}

// WriteAll writes one workbook with a sheet per dataset.
func WriteAll(w io.Writer, d Dump, loc *time.Location) error {
	return writeBook(w,
		materialsSheet(d.Materials, loc),
		productsSheet(d.Products, loc),
		recordsSheet(d.Records, loc),
		usersSheet(d.Users, loc),
	)
}

// WriteImportTemplate writes an empty material import sheet with one example row.
func WriteImportTemplate(w io.Writer) error {
	return writeBook(w, sheet{
		name:   "Materials",
		header: []any{"name", "in_price", "out_price", "stock"},
		rows:   [][]any{{"Bead", "1.00", "1.50", 100}},
	})
}

func materialsSheet(mats []*inventory.Material, loc *time.Location) sheet {
	rows := make([][]any, len(mats))
	for i, m := range mats {
		rows[i] = []any{
			int64(m.ID), m.Name, money(m.InPrice), money(m.OutPrice),
			m.StockCount, m.UsedBy.Len(), m.UpdatedAt.In(loc).Format(timeFormat),
		}
	}
	return sheet{
		name:   "Materials",
		header: []any{"id", "name", "in_price", "out_price", "stock", "used_by_count", "updated_at"},
		rows:   rows,
	}
}

func productsSheet(views []*inventory.ProductView, loc *time.Location) sheet {
	rows := make([][]any, len(views))
	for i, v := range views {
		p := v.Product
		parts := make([]string, len(v.Components))
		for j, c := range v.Components {
			parts[j] = fmt.Sprintf("%s×%d", c.Name, c.PerUnit)
		}
		rows[i] = []any{
			int64(p.ID), p.Name, strings.Join(parts, ", "),
			money(p.InPrice), money(p.OtherPrice), money(p.OutPrice),
			p.StockCount, v.PossibleQuantity, p.UpdatedAt.In(loc).Format(timeFormat),
		}
	}
	return sheet{
		name:   "Products",
		header: []any{"id", "name", "materials", "in_price", "other_price", "out_price", "stock", "possible_quantity", "updated_at"},
		rows:   rows,
	}
}

func recordsSheet(recs []inventory.OperationRecord, loc *time.Location) sheet {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{
			r.CreatedAt.In(loc).Format(timeFormat), string(r.Type), r.SubjectName,
			r.Quantity, r.Detail, r.Actor,
		}
	}
	return sheet{
		name:   "Records",
		header: []any{"time", "type", "subject", "quantity", "detail", "actor"},
		rows:   rows,
	}
}

func usersSheet(users []*inventory.User, loc *time.Location) sheet {
	rows := make([][]any, len(users))
	for i, u := range users {
		rows[i] = []any{
			int64(u.ID), u.Username, string(u.Role), u.AvatarRef,
			u.CreatedAt.In(loc).Format(timeFormat), u.UpdatedAt.In(loc).Format(timeFormat),
		}
	}
	return sheet{
		name:   "Users",
		header: []any{"id", "username", "role", "avatar_ref", "created_at", "updated_at"},
		rows:   rows,
	}
}

func writeBook(w io.Writer, sheets ...sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sh.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, "A1", &sh.header); err != nil {
			return fmt.Errorf("write %s header: %w", sh.name, err)
		}
		for j, row := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sh.name, j+2, err)
			}
		}
	}
	return f.Write(w)
}

func money(d decimal.Decimal) string { return d.StringFixed(inventory.DisplayPlaces) }

// =============================================================================
// IMPORT
// =============================================================================

type columns struct{ name, in, out, stock int }

var positional = columns{name: 0, in: 1, out: 2, stock: 3}

// ReadMaterials parses the first sheet of an import workbook. Rows whose
// cells cannot be parsed are returned as failures; row numbers are 1-based
// spreadsheet rows.
func ReadMaterials(r io.Reader) ([]inventory.MaterialRow, []inventory.RowFailure, error) {
	rows, err := readSheet(r)
	if err != nil {
		return nil, nil, err
	}

	cols := locate(rows[0])
	var out []inventory.MaterialRow
	var bad []inventory.RowFailure
	for i := 1; i < len(rows); i++ {
		line := i + 1
		name := cell(rows[i], cols.name)
		if name == "" {
			continue
		}
		row, err := parseRow(rows[i], cols)
		if err != nil {
			bad = append(bad, inventory.RowFailure{
				Row: line, Name: name, Kind: inventory.KindValidation, Reason: err.Error(),
			})
			continue
		}
		row.Row = line
		out = append(out, row)
	}
	return out, bad, nil
}

// readSheet returns the rows of the active sheet, requiring at least one
// data row below the header.
func readSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &inventory.ValidationError{Field: "file", Message: "not a readable xlsx workbook"}
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, &inventory.ValidationError{Field: "file", Message: "no data rows"}
	}
	return rows, nil
}

func locate(header []string) columns {
	c := columns{name: -1, in: -1, out: -1, stock: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			c.name = i
		case "in_price":
			c.in = i
		case "out_price":
			c.out = i
		case "stock", "stock_count":
			c.stock = i
		}
	}
	if c.name < 0 || c.in < 0 {
		return positional
	}
	return c
}

func parseRow(cells []string, c columns) (inventory.MaterialRow, error) {
	row := inventory.MaterialRow{Name: cell(cells, c.name), InPrice: decimal.Zero}
	if s := cell(cells, c.in); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return row, fmt.Errorf("in_price %q is not a number", s)
		}
		row.InPrice = d
	}
	if s := cell(cells, c.out); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return row, fmt.Errorf("out_price %q is not a number", s)
		}
		row.OutPrice = &d
	}
	if s := cell(cells, c.stock); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return row, fmt.Errorf("stock %q is not an integer", s)
		}
		row.Stock = n
	}
	return row, nil
}

type userColumns struct{ avatar, username, password, role int }

// ReadUsers parses a user import sheet with avatar_ref, username, password
// and role columns, located by header or positionally in that order. Rows
// with an empty username are skipped. An empty role means "user"; an empty
// password keeps the current one of an existing account.
func ReadUsers(r io.Reader) ([]accounts.UserRow, []inventory.RowFailure, error) {
	rows, err := readSheet(r)
	if err != nil {
		return nil, nil, err
	}

	cols := userColumns{avatar: -1, username: -1, password: -1, role: -1}
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "avatar", "avatar_ref":
			cols.avatar = i
		case "username":
			cols.username = i
		case "password":
			cols.password = i
		case "role":
			cols.role = i
		}
	}
	if cols.username < 0 {
		cols = userColumns{avatar: 0, username: 1, password: 2, role: 3}
	}

	var out []accounts.UserRow
	var bad []inventory.RowFailure
	for i := 1; i < len(rows); i++ {
		line := i + 1
		name := cell(rows[i], cols.username)
		if name == "" {
			continue
		}
		role := inventory.Role(strings.ToLower(cell(rows[i], cols.role)))
		if role == "" {
			role = inventory.RoleUser
		}
		if !role.Valid() {
			bad = append(bad, inventory.RowFailure{
				Row: line, Name: name, Kind: inventory.KindValidation,
				Reason: fmt.Sprintf("role %q must be admin or user", role),
			})
			continue
		}
		out = append(out, accounts.UserRow{
			Row:       line,
			Username:  name,
			Password:  cell(rows[i], cols.password),
			Role:      role,
			AvatarRef: cell(rows[i], cols.avatar),
		})
	}
	return out, bad, nil
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
