// Package memory provides an in-memory settlement.Source for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	settlements map[generic.SettlementID]settlement.CostSettlement
	leases      map[generic.HouseID][]settlement.Lease
	invoices    map[generic.SettlementID][]settlement.Invoice
	readings    map[generic.SettlementID][]settlement.WaterMeterReading
}

var _ settlement.Source = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		settlements: make(map[generic.SettlementID]settlement.CostSettlement),
		leases:      make(map[generic.HouseID][]settlement.Lease),
		invoices:    make(map[generic.SettlementID][]settlement.Invoice),
		readings:    make(map[generic.SettlementID][]settlement.WaterMeterReading),
	}
}

// PutSettlement adds or replaces a settlement.
func (m *Memory) PutSettlement(s settlement.CostSettlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[s.ID] = s
}

// AddLease appends a lease to a house. Insertion order is preserved.
func (m *Memory) AddLease(house generic.HouseID, l settlement.Lease) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[house] = append(m.leases[house], l)
}

func (m *Memory) AddInvoice(id generic.SettlementID, inv settlement.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[id] = append(m.invoices[id], inv)
}

func (m *Memory) AddWaterReading(r settlement.WaterMeterReading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings[r.SettlementID] = append(m.readings[r.SettlementID], r)
}

func (m *Memory) GetSettlement(_ context.Context, id generic.SettlementID) (*settlement.CostSettlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settlements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrSettlementNotFound, id)
	}
	s.CostItems = append([]settlement.CostItem(nil), s.CostItems...)
	return &s, nil
}

func (m *Memory) ListLeases(_ context.Context, house generic.HouseID) ([]settlement.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]settlement.Lease(nil), m.leases[house]...), nil
}

func (m *Memory) ListInvoices(_ context.Context, id generic.SettlementID) ([]settlement.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]settlement.Invoice(nil), m.invoices[id]...), nil
}

func (m *Memory) ListWaterReadings(_ context.Context, id generic.SettlementID) ([]settlement.WaterMeterReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]settlement.WaterMeterReading(nil), m.readings[id]...), nil
}
