package inventory

// BatchResult summarizes a batch where every item commits or fails alone.
type BatchResult struct {
	Succeeded int
	Failed    []BatchFailure
}

type BatchFailure struct {
	ID     int64
	Name   string // empty when the item was never found
	Kind   ErrorKind
	Reason string
}

func (r *BatchResult) add(id int64, name string, err error) {
	if err == nil {
		r.Succeeded++
		return
	}
	r.Failed = append(r.Failed, BatchFailure{ID: id, Name: name, Kind: KindOf(err), Reason: err.Error()})
}

// OK reports whether every item succeeded.
func (r BatchResult) OK() bool { return len(r.Failed) == 0 }
