/*
errors.go - Error taxonomy for the inventory engine

PURPOSE:
  All error types in one place. Every business-rule failure is raised during
  validation, before any mutation, so a returned domain error always means
  the store is unchanged.

ERROR CATEGORIES:
  1. Input errors      - ValidationError, DuplicateNameError
  2. Lookup errors     - NotFoundError, ReferenceError
  3. Invariant errors  - InsufficientStockError, StockNotZeroError, StillReferencedError
  4. Store errors      - PersistenceError (wraps driver failures, generic message)

USAGE:
  if errors.Is(err, inventory.ErrInsufficientStock) {
      var se *inventory.InsufficientStockError
      errors.As(err, &se)
      fmt.Println(se.Name, se.Available)
  }

  switch inventory.KindOf(err) { ... }

SEE ALSO:
  - service.go: wraps store failures with AsPersistence
  - api/handlers.go: maps ErrorKind to HTTP status
*/
package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrNotFound          = errors.New("not found")
	ErrReference         = errors.New("bom references unknown material")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockNotZero      = errors.New("stock not zero")
	ErrStillReferenced   = errors.New("material still referenced")
	ErrPersistence       = errors.New("persistence failure")
	ErrUnauthorized      = errors.New("invalid credentials")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type DuplicateNameError struct {
	Kind SubjectKind
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

type NotFoundError struct {
	Kind SubjectKind
	ID   int64
	Name string // set for lookups by name
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ReferenceError reports BOM entries pointing at materials that do not exist.
type ReferenceError struct {
	ProductID ProductID
	Missing   []MaterialID
}

func (e *ReferenceError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = fmt.Sprint(int64(id))
	}
	return fmt.Sprintf("bom references unknown materials: %s", strings.Join(ids, ", "))
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

type InsufficientStockError struct {
	Kind      SubjectKind
	ID        int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %q: available %d, requested %d",
		e.Kind, e.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type StockNotZeroError struct {
	Kind  SubjectKind
	Name  string
	Stock int
}

func (e *StockNotZeroError) Error() string {
	return fmt.Sprintf("%s %q still has %d units in stock", e.Kind, e.Name, e.Stock)
}

func (e *StockNotZeroError) Unwrap() error { return ErrStockNotZero }

type StillReferencedError struct {
	MaterialName string
	ProductIDs   []ProductID
}

func (e *StillReferencedError) Error() string {
	return fmt.Sprintf("material %q is used by %d products", e.MaterialName, len(e.ProductIDs))
}

func (e *StillReferencedError) Unwrap() error { return ErrStillReferenced }

// PersistenceError hides the driver error from callers. Err is kept for logs.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: storage error", e.Op)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// ERROR KINDS - Discriminant for tagged results
// =============================================================================

type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindValidation        ErrorKind = "validation"
	KindDuplicateName     ErrorKind = "duplicate_name"
	KindNotFound          ErrorKind = "not_found"
	KindReference         ErrorKind = "reference"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindStockNotZero      ErrorKind = "stock_not_zero"
	KindStillReferenced   ErrorKind = "still_referenced"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindPersistence       ErrorKind = "persistence"
)

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrValidation, KindValidation},
	{ErrDuplicateName, KindDuplicateName},
	{ErrNotFound, KindNotFound},
	{ErrReference, KindReference},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrStockNotZero, KindStockNotZero},
	{ErrStillReferenced, KindStillReferenced},
	{ErrUnauthorized, KindUnauthorized},
}

// KindOf classifies err. Anything outside the domain taxonomy is persistence.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, s := range kindBySentinel {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindPersistence
}

// IsDomain reports whether err is a business-rule failure the caller can fix.
func IsDomain(err error) bool {
	k := KindOf(err)
	return k != KindNone && k != KindPersistence
}

// AsPersistence returns domain errors unchanged and wraps everything else.
func AsPersistence(op string, err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
