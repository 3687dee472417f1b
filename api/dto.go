/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Requests accept decimals as JSON numbers or strings. Responses always
  carry strings with two decimal places ("10.00").

BOM:
  Encoded as an object keyed by material id: {"1": 10, "4": 2}.

VALIDATION:
  Request types carry `validate` tags for static shape rules (required
  fields, quantity >= 1, non-negative prices, BOM entries >= 1). Limits that
  depend on configuration are checked by the inventory service.

ENVELOPE:
  Every JSON response is a Result:
    {"success": true,  "data": ...}
    {"success": false, "kind": "insufficient_stock", "message": "..."}

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/inventory"
)

// Result is the tagged success/failure envelope.
type Result struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// =============================================================================
// MATERIALS
// =============================================================================

type MaterialDTO struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	InPrice   string  `json:"in_price"`
	OutPrice  string  `json:"out_price"`
	Stock     int     `json:"stock_count"`
	ImageRef  string  `json:"image_ref,omitempty"`
	UsedBy    []int64 `json:"used_by"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type CreateMaterialRequest struct {
	Name     string           `json:"name" validate:"required"`
	InPrice  decimal.Decimal  `json:"in_price" validate:"min=0"`
	OutPrice *decimal.Decimal `json:"out_price" validate:"omitempty,min=0"`
	ImageRef string           `json:"image_ref"`
}

type UpdateMaterialRequest struct {
	Name     string           `json:"name" validate:"required"`
	InPrice  *decimal.Decimal `json:"in_price" validate:"omitempty,min=0"`
	OutPrice *decimal.Decimal `json:"out_price" validate:"omitempty,min=0"`
	ImageRef *string          `json:"image_ref"`
}

type PriceCandidateRequest struct {
	InPrice  *decimal.Decimal `json:"in_price" validate:"omitempty,min=0"`
	OutPrice *decimal.Decimal `json:"out_price" validate:"omitempty,min=0"`
}

type PriceImpactDTO struct {
	MaterialID   int64                `json:"material_id"`
	PriceChanged bool                 `json:"price_changed"`
	Products     []AffectedProductDTO `json:"affected_products"`
}

type AffectedProductDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ImageRef       string `json:"image_ref,omitempty"`
	Materials      string `json:"materials"`
	CurrentCost    string `json:"current_cost"`
	CurrentSelling string `json:"current_selling"`
	NewCost        string `json:"new_cost"`
	NewSelling     string `json:"new_selling"`
}

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductDTO struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	BOM              inventory.BOM  `json:"bom"`
	Components       []ComponentDTO `json:"components"`
	InPrice          string         `json:"in_price"`
	OutPrice         string         `json:"out_price"`
	OtherPrice       string         `json:"other_price"`
	Stock            int            `json:"stock_count"`
	PossibleQuantity int            `json:"possible_quantity"`
	ImageRef         string         `json:"image_ref,omitempty"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

type ComponentDTO struct {
	MaterialID int64  `json:"material_id"`
	Name       string `json:"name"`
	PerUnit    int    `json:"per_unit"`
	Stock      int    `json:"stock_count"`
}

type CreateProductRequest struct {
	Name       string           `json:"name" validate:"required"`
	BOM        inventory.BOM    `json:"bom" validate:"omitempty,dive,min=1"`
	InPrice    *decimal.Decimal `json:"in_price" validate:"omitempty,min=0"`
	OutPrice   *decimal.Decimal `json:"out_price" validate:"omitempty,min=0"`
	OtherPrice decimal.Decimal  `json:"other_price" validate:"min=0"`
	ImageRef   string           `json:"image_ref"`
}

type UpdateProductRequest struct {
	Name       string           `json:"name" validate:"required"`
	BOM        *inventory.BOM   `json:"bom" validate:"omitempty,dive,min=1"`
	InPrice    *decimal.Decimal `json:"in_price" validate:"omitempty,min=0"`
	OutPrice   *decimal.Decimal `json:"out_price" validate:"omitempty,min=0"`
	OtherPrice *decimal.Decimal `json:"other_price" validate:"omitempty,min=0"`
	ImageRef   *string          `json:"image_ref"`
}

// =============================================================================
// STOCK / BATCH
// =============================================================================

// MovementRequest serves inbound, outbound and restore. Partner is the
// supplier or customer; Reason is required for restore.
type MovementRequest struct {
	Quantity int    `json:"quantity" validate:"min=1"`
	Partner  string `json:"partner"`
	Reason   string `json:"reason"`
}

type StockDTO struct {
	ID    int64 `json:"id"`
	Stock int   `json:"stock_count"`
}

type BatchDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type BatchResultDTO struct {
	Succeeded int               `json:"succeeded"`
	Failed    []BatchFailureDTO `json:"failed"`
}

type BatchFailureDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type ImportResultDTO struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Failed  []RowFailureDTO `json:"failed"`
}

type RowFailureDTO struct {
	Row    int    `json:"row"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type PageDTO struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// =============================================================================
// RECORDS / STATISTICS
// =============================================================================

type RecordDTO struct {
	ID          int64  `json:"id"`
	Type        string `json:"operation_type"`
	SubjectID   int64  `json:"subject_id,omitempty"`
	SubjectName string `json:"subject_name"`
	Quantity    int    `json:"quantity"`
	Detail      string `json:"detail"`
	Actor       string `json:"actor"`
	CreatedAt   string `json:"created_at"`
}

type DeletedDTO struct {
	Deleted int `json:"deleted"`
}

type TrendPointDTO struct {
	Day      string `json:"date"`
	Quantity int    `json:"quantity"`
}

type MoverDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"total_quantity"`
}

type SummaryDTO struct {
	MaterialCount int    `json:"material_count"`
	MaterialStock int    `json:"material_stock"`
	ProductCount  int    `json:"product_count"`
	ProductStock  int    `json:"product_stock"`
	StockValue    string `json:"stock_value"`
}

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	AvatarRef string `json:"avatar_ref,omitempty"`
	CreatedAt string `json:"created_at"`
}

type CreateUserRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=admin user"`
	AvatarRef string `json:"avatar_ref"`
}

type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=1"`
	Password  *string `json:"password" validate:"omitempty,min=1"`
	Role      *string `json:"role" validate:"omitempty,oneof=admin user"`
	AvatarRef *string `json:"avatar_ref"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(inventory.DisplayPlaces) }

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func toMaterialDTO(m *inventory.Material) MaterialDTO {
	used := make([]int64, 0, m.UsedBy.Len())
	for _, id := range m.UsedBy.IDs() {
		used = append(used, int64(id))
	}
	return MaterialDTO{
		ID:        int64(m.ID),
		Name:      m.Name,
		InPrice:   money(m.InPrice),
		OutPrice:  money(m.OutPrice),
		Stock:     m.StockCount,
		ImageRef:  m.ImageRef,
		UsedBy:    used,
		CreatedAt: stamp(m.CreatedAt),
		UpdatedAt: stamp(m.UpdatedAt),
	}
}

func toProductDTO(v *inventory.ProductView) ProductDTO {
	p := v.Product
	comps := make([]ComponentDTO, len(v.Components))
	for i, c := range v.Components {
		comps[i] = ComponentDTO{MaterialID: int64(c.MaterialID), Name: c.Name, PerUnit: c.PerUnit, Stock: c.Stock}
	}
	return ProductDTO{
		ID:               int64(p.ID),
		Name:             p.Name,
		BOM:              p.BOM,
		Components:       comps,
		InPrice:          money(p.InPrice),
		OutPrice:         money(p.OutPrice),
		OtherPrice:       money(p.OtherPrice),
		Stock:            p.StockCount,
		PossibleQuantity: v.PossibleQuantity,
		ImageRef:         p.ImageRef,
		CreatedAt:        stamp(p.CreatedAt),
		UpdatedAt:        stamp(p.UpdatedAt),
	}
}

func toRecordDTO(r inventory.OperationRecord, loc *time.Location) RecordDTO {
	return RecordDTO{
		ID:          int64(r.ID),
		Type:        string(r.Type),
		SubjectID:   r.SubjectID,
		SubjectName: r.SubjectName,
		Quantity:    r.Quantity,
		Detail:      r.Detail,
		Actor:       r.Actor,
		CreatedAt:   r.CreatedAt.In(loc).Format(time.RFC3339),
	}
}

func toUserDTO(u *inventory.User) UserDTO {
	return UserDTO{
		ID:        int64(u.ID),
		Username:  u.Username,
		Role:      string(u.Role),
		AvatarRef: u.AvatarRef,
		CreatedAt: stamp(u.CreatedAt),
	}
}

func toBatchDTO(res inventory.BatchResult) BatchResultDTO {
	out := BatchResultDTO{Succeeded: res.Succeeded, Failed: make([]BatchFailureDTO, len(res.Failed))}
	for i, f := range res.Failed {
		out.Failed[i] = BatchFailureDTO{ID: f.ID, Name: f.Name, Kind: string(f.Kind), Reason: f.Reason}
	}
	return out
}

func toImportDTO(res inventory.ImportResult) ImportResultDTO {
	out := ImportResultDTO{Created: res.Created, Updated: res.Updated, Failed: make([]RowFailureDTO, len(res.Failed))}
	for i, f := range res.Failed {
		out.Failed[i] = RowFailureDTO{Row: f.Row, Name: f.Name, Kind: string(f.Kind), Reason: f.Reason}
	}
	return out
}

func toImpactDTO(impact *inventory.PriceImpact) PriceImpactDTO {
	out := PriceImpactDTO{
		MaterialID:   int64(impact.MaterialID),
		PriceChanged: impact.PriceChanged,
		Products:     make([]AffectedProductDTO, len(impact.Products)),
	}
	for i, p := range impact.Products {
		out.Products[i] = AffectedProductDTO{
			ID:             int64(p.ID),
			Name:           p.Name,
			ImageRef:       p.ImageRef,
			Materials:      p.Components,
			CurrentCost:    money(p.CurrentCost),
			CurrentSelling: money(p.CurrentSelling),
			NewCost:        money(p.NewCost),
			NewSelling:     money(p.NewSelling),
		}
	}
	return out
}
