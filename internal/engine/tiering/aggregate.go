package tiering

import (
	"sort"

	"github.com/shopspring/decimal"
	"tiergate/internal/platform/procore"
)

// KeyAggregate is the reconciled budget position for one WBS key: the summed
// purchase-order exposure against the matching budget row.
type KeyAggregate struct {
	Key             WBSKey
	POAmount        decimal.Decimal
	RevisedBudget   decimal.Decimal
	CommittedCosts  decimal.Decimal
	FutureCommitted decimal.Decimal
	OverBudget      bool
}

// SumLineItems groups a purchase order's line items by derived WBS key and
// sums their amounts. Line items whose WBS code yields no key are returned
// separately; they are a fatal condition for the decision, not a silent drop.
// Absent amounts count as zero.
func SumLineItems(items []procore.LineItem) (map[WBSKey]decimal.Decimal, []procore.LineItem) {
	sums := make(map[WBSKey]decimal.Decimal)
	var unmatched []procore.LineItem

	for _, item := range items {
		key, ok := KeyForWBS(item.WBSCode)
		if !ok {
			unmatched = append(unmatched, item)
			continue
		}
		sums[key] = sums[key].Add(item.Amount)
	}
	return sums, unmatched
}

// Reconcile joins the per-key line-item sums against the project's budget
// rows. For each key it computes future committed costs (committed + this
// PO's amount) and flags the key when that exceeds the revised budget. Keys
// with no budget row come back in missing, which is fatal for the decision.
// Aggregates are returned in key order so reasons and notes are stable.
func Reconcile(sums map[WBSKey]decimal.Decimal, rows []procore.BudgetRow) (aggs []KeyAggregate, missing []WBSKey) {
	byKey := make(map[WBSKey]*procore.BudgetRow, len(rows))
	for i := range rows {
		if key, ok := KeyForWBS(rows[i].WBSCode); ok {
			byKey[key] = &rows[i]
		}
	}

	keys := make([]WBSKey, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		row, ok := byKey[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		future := row.CommittedCosts.Add(sums[key])
		aggs = append(aggs, KeyAggregate{
			Key:             key,
			POAmount:        sums[key],
			RevisedBudget:   row.RevisedBudget,
			CommittedCosts:  row.CommittedCosts,
			FutureCommitted: future,
			OverBudget:      future.GreaterThan(row.RevisedBudget),
		})
	}
	return aggs, missing
}
