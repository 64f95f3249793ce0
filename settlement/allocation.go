package settlement

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
)

// =============================================================================
// COST ALLOCATION
// =============================================================================

// EffectiveTotalArea returns the declared area when positive, otherwise the
// sum of the unit sizes of all leases of the house.
func EffectiveTotalArea(declared decimal.Decimal, leases []Lease) decimal.Decimal {
	if declared.IsPositive() {
		return declared
	}
	total := decimal.Zero
	for _, l := range leases {
		total = total.Add(l.UnitSize)
	}
	return total
}

type invoiceKey struct {
	tenant generic.TenantID
	name   string
}

// InvoiceIndex looks up a tenant's invoice for a cost item.
type InvoiceIndex map[invoiceKey]decimal.Decimal

// NewInvoiceIndex indexes invoices by tenant and cost-item name. When a tenant
// has several invoices for the same item the first one wins.
func NewInvoiceIndex(invoices []Invoice) InvoiceIndex {
	idx := make(InvoiceIndex, len(invoices))
	for _, inv := range invoices {
		k := invoiceKey{tenant: inv.TenantID, name: inv.CostItemName}
		if _, ok := idx[k]; ok {
			continue
		}
		idx[k] = inv.Amount
	}
	return idx
}

// Lookup returns the invoice amount, or zero when there is none.
func (idx InvoiceIndex) Lookup(tenant generic.TenantID, costItem string) decimal.Decimal {
	if amount, ok := idx[invoiceKey{tenant: tenant, name: costItem}]; ok {
		return amount
	}
	return decimal.Zero
}

// AllocateCosts computes the tenant's raw share of every cost item. The
// shares are not yet prorated by occupancy; TenantShare is left zero.
func AllocateCosts(items []CostItem, tenant Lease, totalArea decimal.Decimal, invoices InvoiceIndex) []CostAllocation {
	allocations := make([]CostAllocation, 0, len(items))
	for i, item := range items {
		name := CostItemName(item.Name, i)
		a := CostAllocation{
			Name:        name,
			TotalAmount: item.TotalAmount,
			Method:      item.Method,
		}

		switch item.Method {
		case MethodByArea:
			price := generic.SafeDiv(item.TotalAmount, totalArea)
			a.UnitPrice = &price
			a.RawShare = price.Mul(tenant.UnitSize)
		case MethodByInvoice:
			a.RawShare = invoices.Lookup(tenant.ID, name)
		default:
			// Fixed items are charged in full to every tenant; only the
			// occupancy proration moderates them.
			a.Method = MethodFixed
			a.RawShare = item.TotalAmount
		}
		allocations = append(allocations, a)
	}
	return allocations
}

// CostItemName returns name, or the placeholder "Kostenart N" when empty.
func CostItemName(name string, index int) string {
	if name != "" {
		return name
	}
	return "Kostenart " + strconv.Itoa(index+1)
}
