package settlement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/observability/metrics"
)

// =============================================================================
// SOURCE - Input collaborator
// =============================================================================

// Source supplies the records a computation needs. Implementations:
//   - store/sqlite: the server's local database
//   - store/postgres: the hosted database of the web app (read-only)
//   - store/memory: tests and demo scenarios
type Source interface {
	// GetSettlement returns generic.ErrSettlementNotFound when missing.
	GetSettlement(ctx context.Context, id generic.SettlementID) (*CostSettlement, error)

	// ListLeases returns every lease of the house's apartments.
	ListLeases(ctx context.Context, houseID generic.HouseID) ([]Lease, error)

	ListInvoices(ctx context.Context, settlementID generic.SettlementID) ([]Invoice, error)
	ListWaterReadings(ctx context.Context, settlementID generic.SettlementID) ([]WaterMeterReading, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service loads a settlement's inputs from a Source and computes it.
type Service struct {
	source Source
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a service. A nil logger disables logging.
func NewService(source Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, logger: logger, now: time.Now}
}

// Computation is a settlement together with its results.
type Computation struct {
	Settlement *CostSettlement
	Results    []TenantSettlementResult
}

// Compute loads and settles a settlement. In ModeSingle, tenantID must belong
// to a lease of the settlement's house.
func (s *Service) Compute(ctx context.Context, id generic.SettlementID, mode Mode, tenantID generic.TenantID) (*Computation, error) {
	start := s.now()
	comp, err := s.compute(ctx, id, mode, tenantID)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	tenants := 0
	if comp != nil {
		tenants = len(comp.Results)
	}
	metrics.ObserveComputation(string(mode), result, tenants, s.now().Sub(start))
	return comp, err
}

func (s *Service) compute(ctx context.Context, id generic.SettlementID, mode Mode, tenantID generic.TenantID) (*Computation, error) {
	if mode != ModeSingle && mode != ModeAll {
		return nil, generic.ErrInvalidMode
	}

	st, err := s.source.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}

	leases, err := s.source.ListLeases(ctx, st.HouseID)
	if err != nil {
		return nil, fmt.Errorf("load leases: %w", err)
	}
	if mode == ModeSingle && !containsLease(leases, tenantID) {
		return nil, fmt.Errorf("%w: %s in house %s", generic.ErrTenantNotFound, tenantID, st.HouseID)
	}

	invoices, err := s.source.ListInvoices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	readings, err := s.source.ListWaterReadings(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load water readings: %w", err)
	}

	results := Compute(st, leases, invoices, readings, mode, tenantID)
	s.logger.Debug("settlement computed",
		zap.String("settlement_id", string(id)),
		zap.String("mode", string(mode)),
		zap.Int("leases", len(leases)),
		zap.Int("results", len(results)),
	)
	return &Computation{Settlement: st, Results: results}, nil
}

func containsLease(leases []Lease, id generic.TenantID) bool {
	for _, l := range leases {
		if l.ID == id {
			return true
		}
	}
	return false
}
