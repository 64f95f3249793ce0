package settlement

import "strings"

// =============================================================================
// ALLOCATION METHOD - How a cost item is split between tenants
// =============================================================================

// AllocationMethod is the closed set of allocation rules.
type AllocationMethod string

const (
	// MethodByArea splits the item by unit size over total area.
	MethodByArea AllocationMethod = "by_area"

	// MethodByInvoice charges the tenant's own invoice for the item.
	MethodByInvoice AllocationMethod = "by_invoice"

	// MethodFixed charges the item's full amount to every tenant.
	MethodFixed AllocationMethod = "fixed"
)

// Label returns the German label used on settlement documents.
func (m AllocationMethod) Label() string {
	switch m {
	case MethodByArea:
		return "nach Fläche"
	case MethodByInvoice:
		return "nach Rechnung"
	default:
		return "pauschal"
	}
}

// WaterMethodLabel is the method label of the water allocation.
const WaterMethodLabel = "nach Verbrauch"

// Exact (normalized) method strings that are known. Anything containing an
// area keyword is handled before this table is consulted.
var methodTable = map[string]AllocationMethod{
	"by_area":       MethodByArea,
	"by-area":       MethodByArea,
	"nach rechnung": MethodByInvoice,
	"by_invoice":    MethodByInvoice,
	"by-invoice":    MethodByInvoice,
	"fixed":         MethodFixed,
	"fix":           MethodFixed,
	"pauschal":      MethodFixed,
	"per-unit":      MethodFixed,
	"per_unit":      MethodFixed,
	"pro einheit":   MethodFixed,
	"pro wohnung":   MethodFixed,
	"pro person":    MethodFixed,
}

var areaKeywords = []string{"qm", "fläche", "flaeche"}

// ParseAllocationMethod maps a free-text method to an AllocationMethod.
// Unknown text falls back to MethodFixed with recognized == false, so callers
// at ingestion time can warn about likely typos.
func ParseAllocationMethod(raw string) (method AllocationMethod, recognized bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, kw := range areaKeywords {
		if strings.Contains(normalized, kw) {
			return MethodByArea, true
		}
	}
	if m, ok := methodTable[normalized]; ok {
		return m, true
	}
	return MethodFixed, false
}
