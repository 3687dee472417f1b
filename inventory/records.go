package inventory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type RecordPage struct {
	Records []OperationRecord
	Total   int
}

// ListRecords searches the audit log. The page is clamped to the records
// maximum and the order defaults to newest first.
func (s *Service) ListRecords(ctx context.Context, filter RecordFilter) (RecordPage, error) {
	filter = s.normalizeFilter(filter)
	filter.Page = s.limits.Page(filter.Page, s.limits.RecordsMax)

	var page RecordPage
	err := s.view(ctx, "list_records", func(r Reader) error {
		recs, total, err := r.QueryRecords(ctx, filter)
		page = RecordPage{Records: recs, Total: total}
		return err
	})
	return page, err
}

// AllRecords returns every record matching filter, for exports.
func (s *Service) AllRecords(ctx context.Context, filter RecordFilter) ([]OperationRecord, error) {
	filter = s.normalizeFilter(filter)
	filter.Page = Page{}

	var recs []OperationRecord
	err := s.view(ctx, "all_records", func(r Reader) error {
		var err error
		recs, _, err = r.QueryRecords(ctx, filter)
		return err
	})
	return recs, err
}

// ClearRecords deletes the whole audit log and leaves one entry saying so.
func (s *Service) ClearRecords(ctx context.Context, actor string) (int, error) {
	actor, err := s.actor(actor)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.mutate(ctx, OpRecordsCleared, actor, func(tx Tx) error {
		n, err = tx.DeleteRecords(ctx, RecordFilter{})
		if err != nil {
			return err
		}
		return s.Record(ctx, tx, OpRecordsCleared, 0, "", 0, actor, fmt.Sprintf("cleared %d records", n))
	})
	return n, err
}

// DeleteRecords deletes the records matching filter. Paging is ignored.
func (s *Service) DeleteRecords(ctx context.Context, actor string, filter RecordFilter) (int, error) {
	actor, err := s.actor(actor)
	if err != nil {
		return 0, err
	}
	filter = s.normalizeFilter(filter)
	filter.Page = Page{}

	var n int
	err = s.mutate(ctx, OpRecordsDeleted, actor, func(tx Tx) error {
		n, err = tx.DeleteRecords(ctx, filter)
		if err != nil {
			return err
		}
		return s.Record(ctx, tx, OpRecordsDeleted, 0, "", 0, actor,
			fmt.Sprintf("deleted %d records matching %s", n, describeFilter(filter)))
	}, zap.Int("types", len(filter.Types)), zap.Int("actors", len(filter.Actors)))
	return n, err
}

func (s *Service) normalizeFilter(f RecordFilter) RecordFilter {
	if f.Order != SortAsc {
		f.Order = SortDesc
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func describeFilter(f RecordFilter) string {
	var parts []string
	if f.From != nil {
		parts = append(parts, "from "+f.From.Format("2006-01-02 15:04"))
	}
	if f.To != nil {
		parts = append(parts, "to "+f.To.Format("2006-01-02 15:04"))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		parts = append(parts, "types "+strings.Join(types, "|"))
	}
	if len(f.Actors) > 0 {
		parts = append(parts, "actors "+strings.Join(f.Actors, "|"))
	}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("text %q", f.Search))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ", ")
}
