/*
scenarios.go - Demo catalog loaders for testing and demonstrations

PURPOSE:

	Provides pre-built catalogs that populate an empty database with
	materials, products and stock movements. Everything goes through the
	inventory service, so the reference sets, prices and audit records are
	exactly what real operations would produce.

AVAILABLE SCENARIOS:

	bracelet:  One material, one product; the smallest assembly example
	workshop:  Shared materials, a manual product and a week of movements

HOW SCENARIOS WORK:
 1. Refuse unless the catalog is empty
 2. Create materials
 3. Create products with their BOMs
 4. Run inbound/outbound movements

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "bracelet"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, actor)
 3. Add it to the loaders map

SEE ALSO:
  - handlers.go: shared helpers
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "bracelet",
		Name:        "Bracelet",
		Description: "100 beads at 1.00, a bracelet using 10 beads with a 5.00 surcharge",
	},
	{
		ID:          "workshop",
		Name:        "Workshop",
		Description: "Four shared materials, three products including a manual one, and recent movements",
	},
}

// seedActor signs scenario records when the request carries no actor.
const seedActor = "demo"

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeOK(w, scenarios)
}

// LoadScenario seeds an empty catalog.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	who := actor(r)
	if who == "" {
		who = seedActor
	}
	if err := LoadScenario(r.Context(), h.Inventory, who, req.ScenarioID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenario runs the named loader against inv.
func LoadScenario(ctx context.Context, inv *inventory.Service, actor, id string) error {
	load, ok := loaders[id]
	if !ok {
		return &inventory.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", id)}
	}
	sum, err := inv.Summary(ctx)
	if err != nil {
		return err
	}
	if sum.MaterialCount > 0 || sum.ProductCount > 0 {
		return &inventory.ValidationError{Field: "scenario_id", Message: "catalog is not empty"}
	}
	return load(&seeder{ctx: ctx, inv: inv, actor: actor})
}

var loaders = map[string]func(*seeder) error{
	"bracelet": loadBraceletScenario,
	"workshop": loadWorkshopScenario,
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadBraceletScenario(s *seeder) error {
	bead := s.material("Bead", "1.00", "1.50")
	s.materialIn(bead, 100, "Bead Co")
	s.product("Bracelet", inventory.BOM{bead: 10}, "5.00")
	return s.err
}

func loadWorkshopScenario(s *seeder) error {
	bead := s.material("Glass Bead", "0.40", "0.80")
	thread := s.material("Silk Thread", "0.25", "0.50")
	clasp := s.material("Silver Clasp", "3.20", "4.50")
	box := s.material("Gift Box", "1.10", "2.00")

	s.materialIn(bead, 2000, "Bead Co")
	s.materialIn(thread, 500, "Silk Road Supplies")
	s.materialIn(clasp, 120, "Metalworks")
	s.materialIn(box, 80, "Paper & Co")

	bracelet := s.product("Beaded Bracelet", inventory.BOM{bead: 24, thread: 1, clasp: 1}, "6.00")
	necklace := s.product("Long Necklace", inventory.BOM{bead: 60, thread: 2, clasp: 1}, "12.00")
	card := s.manualProduct("Greeting Card", "0.90", "2.50")

	s.productIn(bracelet, 30)
	s.productIn(necklace, 12)
	s.productIn(card, 40)
	s.productOut(bracelet, 8, "Market stall")
	s.productOut(necklace, 3, "Online shop")
	s.materialOut(box, 10, "Packing")
	return s.err
}

// =============================================================================
// SEEDER
// =============================================================================

// seeder stops at the first failure and keeps it in err.
type seeder struct {
	ctx   context.Context
	inv   *inventory.Service
	actor string
	err   error
}

func (s *seeder) material(name, in, out string) inventory.MaterialID {
	if s.err != nil {
		return 0
	}
	outPrice := decimal.RequireFromString(out)
	var id inventory.MaterialID
	id, s.err = s.inv.AddMaterial(s.ctx, s.actor, inventory.NewMaterial{
		Name:     name,
		InPrice:  decimal.RequireFromString(in),
		OutPrice: &outPrice,
	})
	return id
}

func (s *seeder) product(name string, bom inventory.BOM, other string) inventory.ProductID {
	if s.err != nil {
		return 0
	}
	var id inventory.ProductID
	id, s.err = s.inv.AddProduct(s.ctx, s.actor, inventory.NewProduct{
		Name:       name,
		BOM:        bom,
		OtherPrice: decimal.RequireFromString(other),
	})
	return id
}

func (s *seeder) manualProduct(name, in, out string) inventory.ProductID {
	if s.err != nil {
		return 0
	}
	inPrice, outPrice := decimal.RequireFromString(in), decimal.RequireFromString(out)
	var id inventory.ProductID
	id, s.err = s.inv.AddProduct(s.ctx, s.actor, inventory.NewProduct{
		Name:       name,
		InPrice:    &inPrice,
		OutPrice:   &outPrice,
		OtherPrice: decimal.Zero,
	})
	return id
}

func (s *seeder) materialIn(id inventory.MaterialID, qty int, supplier string) {
	if s.err == nil {
		s.err = s.inv.MaterialInbound(s.ctx, s.actor, id, qty, supplier)
	}
}

func (s *seeder) materialOut(id inventory.MaterialID, qty int, customer string) {
	if s.err == nil {
		s.err = s.inv.MaterialOutbound(s.ctx, s.actor, id, qty, customer)
	}
}

func (s *seeder) productIn(id inventory.ProductID, qty int) {
	if s.err == nil {
		s.err = s.inv.ProductInbound(s.ctx, s.actor, id, qty, "")
	}
}

func (s *seeder) productOut(id inventory.ProductID, qty int, customer string) {
	if s.err == nil {
		s.err = s.inv.ProductOutbound(s.ctx, s.actor, id, qty, customer)
	}
}
