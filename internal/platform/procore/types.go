package procore

import (
	"github.com/shopspring/decimal"
)

// PurchaseOrder is the commitment snapshot fetched per webhook event. It is
// never cached across events; Procore stays the system of record.
type PurchaseOrder struct {
	ID                       int64           `json:"id"`
	ProjectID                int64           `json:"project_id"`
	Number                   string          `json:"number"`
	Title                    string          `json:"title"`
	Status                   string          `json:"status"`
	GrandTotal               decimal.Decimal `json:"grand_total"`
	HasPotentialChangeOrders bool            `json:"has_potential_change_orders"`
	CustomFields             map[string]any  `json:"custom_fields,omitempty"`
}

// WBSCode identifies a budget category. Any of the three fields may be
// missing on upstream payloads; key derivation handles the fallbacks.
type WBSCode struct {
	ID          *int64 `json:"id"`
	FlatCode    string `json:"flat_code"`
	Description string `json:"description"`
}

// CostCode is the line-item level cost code reference, used only to spot the
// designated ad-hoc/unallocated sentinel.
type CostCode struct {
	ID       *int64 `json:"id"`
	FullCode string `json:"full_code"`
	Name     string `json:"name"`
}

// LineItem is a single cost entry on a purchase order. Several line items may
// share a WBS code and are summed before budget comparison.
type LineItem struct {
	ID       int64           `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	CostCode *CostCode       `json:"cost_code"`
	WBSCode  *WBSCode        `json:"wbs_code"`
}

// BudgetView scopes budget detail rows within a project.
type BudgetView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BudgetRow carries the budget position for one WBS code.
type BudgetRow struct {
	ID             int64           `json:"id"`
	WBSCode        *WBSCode        `json:"wbs_code"`
	RevisedBudget  decimal.Decimal `json:"revised_budget_amount"`
	CommittedCosts decimal.Decimal `json:"committed_costs"`
}

// Change order statuses as reported by Procore. Anything not approved is
// treated as pending for tiering purposes.
const (
	ChangeOrderApproved = "approved"
)

type ChangeOrderLine struct {
	ID      int64           `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
	WBSCode *WBSCode        `json:"wbs_code"`
}

type ChangeOrder struct {
	ID     int64             `json:"id"`
	Status string            `json:"status"`
	Title  string            `json:"title"`
	Lines  []ChangeOrderLine `json:"line_items"`
}

// Approved reports whether the change order has cleared approval.
func (c *ChangeOrder) Approved() bool {
	return c.Status == ChangeOrderApproved
}

// CustomFieldDef is one entry in the project's custom-field catalog. Tier
// flags are resolved against it by label.
type CustomFieldDef struct {
	ID       int64  `json:"id"`
	Label    string `json:"label"`
	DataType string `json:"data_type"`
}
