package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/warp/inventory-engine/inventory"
)

type recordRow struct {
	ID          int64  `db:"id"`
	Type        string `db:"operation_type"`
	SubjectID   int64  `db:"subject_id"`
	SubjectName string `db:"subject_name"`
	Quantity    int    `db:"quantity"`
	Detail      string `db:"detail"`
	Actor       string `db:"actor"`
	CreatedAt   string `db:"created_at"`
}

func (r recordRow) toDomain() (inventory.OperationRecord, error) {
	created, err := parseTime("created_at", r.CreatedAt)
	if err != nil {
		return inventory.OperationRecord{}, fmt.Errorf("record %d: %w", r.ID, err)
	}
	return inventory.OperationRecord{
		ID:          inventory.RecordID(r.ID),
		Type:        inventory.OperationType(r.Type),
		SubjectID:   r.SubjectID,
		SubjectName: r.SubjectName,
		Quantity:    r.Quantity,
		Detail:      r.Detail,
		Actor:       r.Actor,
		CreatedAt:   created,
	}, nil
}

const recordCols = `id, operation_type, subject_id, subject_name, quantity, detail, actor, created_at`

func (q *queries) AppendRecord(ctx context.Context, r *inventory.OperationRecord) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO operation_records (operation_type, subject_id, subject_name, quantity, detail, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.Type), r.SubjectID, r.SubjectName, r.Quantity, r.Detail, r.Actor, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = inventory.RecordID(id)
	return nil
}

func (q *queries) QueryRecords(ctx context.Context, f inventory.RecordFilter) ([]inventory.OperationRecord, int, error) {
	where, args, err := recordWhere(f)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := sqlx.GetContext(ctx, q.q, &total,
		q.q.Rebind(`SELECT COUNT(*) FROM operation_records`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	order := "DESC"
	if f.Order == inventory.SortAsc {
		order = "ASC"
	}
	limit, offset := limitOffset(f.Page)
	query := `SELECT ` + recordCols + ` FROM operation_records` + where +
		` ORDER BY created_at ` + order + `, id ` + order + ` LIMIT ? OFFSET ?`

	var rows []recordRow
	if err := sqlx.SelectContext(ctx, q.q, &rows, q.q.Rebind(query), append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	out := make([]inventory.OperationRecord, len(rows))
	for i, r := range rows {
		if out[i], err = r.toDomain(); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (q *queries) DeleteRecords(ctx context.Context, f inventory.RecordFilter) (int, error) {
	where, args, err := recordWhere(f)
	if err != nil {
		return 0, err
	}
	res, err := q.q.ExecContext(ctx, q.q.Rebind(`DELETE FROM operation_records`+where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// recordWhere renders f as a WHERE clause with the same semantics as
// inventory.RecordFilter.Match.
func recordWhere(f inventory.RecordFilter) (string, []any, error) {
	var conds []string
	var args []any
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTime(*f.To))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		conds = append(conds, "operation_type IN (?)")
		args = append(args, types)
	}
	if len(f.Actors) > 0 {
		conds = append(conds, "actor IN (?)")
		args = append(args, f.Actors)
	}
	if f.Search != "" {
		// instr is case-sensitive, unlike LIKE.
		conds = append(conds, "instr(detail, ?) > 0")
		args = append(args, f.Search)
	}
	if f.SubjectID != 0 {
		conds = append(conds, "subject_id = ?")
		args = append(args, f.SubjectID)
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return sqlx.In(" WHERE "+strings.Join(conds, " AND "), args...)
}
