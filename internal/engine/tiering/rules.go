package tiering

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Evidence is everything the rule table looks at, gathered upstream. The
// engine itself performs no I/O.
type Evidence struct {
	// FetchFailure names the data-gathering step that failed, empty when
	// all fetches succeeded. Any failure forces the worst tier.
	FetchFailure string

	// UnmatchedKeys lists line items that could not be joined to a budget
	// row: either no WBS key could be derived, or no row carries the key.
	UnmatchedKeys []string

	// Aggregates is the reconciled per-key budget position.
	Aggregates []KeyAggregate

	HasPendingChangeOrder bool
	HasUnallocatedLine    bool
	GrandTotal            decimal.Decimal
}

// Decision is the engine's output: the tier, a human-readable reason, and the
// aggregates that back it. It lives only for the request; the result writer
// and audit store externalize it immediately.
type Decision struct {
	Tier       Tier
	Reason     string
	Aggregates []KeyAggregate
}

// Thresholds are the grand-total boundaries for the amount rules. The band
// [Low, High] is inclusive on both ends; strictly above High escalates.
type Thresholds struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// Decide runs the ordered, short-circuiting rule table: first matching rule
// wins, evaluated from highest urgency down. A panic anywhere in evaluation
// resolves to the worst tier with the panic message as the reason; the engine
// never fails open to auto-approval.
func Decide(ev Evidence, th Thresholds) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{
				Tier:   TierFour,
				Reason: fmt.Sprintf("evaluation failed: %v", r),
			}
		}
	}()

	d.Aggregates = ev.Aggregates

	// 1. Data-gathering failure.
	if ev.FetchFailure != "" {
		d.Tier = TierFour
		d.Reason = "data unavailable: " + ev.FetchFailure
		return d
	}

	// 2. Unmatched WBS keys.
	if len(ev.UnmatchedKeys) > 0 {
		d.Tier = TierFour
		d.Reason = "no budget row matches WBS key(s): " + strings.Join(ev.UnmatchedKeys, ", ")
		return d
	}

	// 3. Any key over budget.
	for _, agg := range ev.Aggregates {
		if agg.OverBudget {
			d.Tier = TierFour
			d.Reason = fmt.Sprintf(
				"over budget on %s: committed %s + PO %s = %s exceeds revised budget %s",
				agg.Key,
				agg.CommittedCosts.StringFixed(2),
				agg.POAmount.StringFixed(2),
				agg.FutureCommitted.StringFixed(2),
				agg.RevisedBudget.StringFixed(2),
			)
			return d
		}
	}

	// 4. Pending change order with an unallocated line present.
	if ev.HasPendingChangeOrder && ev.HasUnallocatedLine {
		d.Tier = TierThree
		d.Reason = "pending change order with unallocated cost-code line item"
		return d
	}

	// 5. Pending change order alone.
	if ev.HasPendingChangeOrder {
		d.Tier = TierTwo
		d.Reason = "pending change order attached"
		return d
	}

	// 6. Unallocated cost-code line alone.
	if ev.HasUnallocatedLine {
		d.Tier = TierTwo
		d.Reason = "unallocated cost-code line item present"
		return d
	}

	// 7. Amount rules.
	total := ev.GrandTotal.StringFixed(2)
	switch {
	case ev.GrandTotal.GreaterThan(th.High):
		d.Tier = TierTwo
		d.Reason = fmt.Sprintf("grand total %s above %s threshold", total, th.High.StringFixed(2))
	case ev.GrandTotal.GreaterThanOrEqual(th.Low):
		d.Tier = TierOne
		d.Reason = fmt.Sprintf("grand total %s within %s-%s review band",
			total, th.Low.StringFixed(2), th.High.StringFixed(2))
	default:
		d.Tier = TierAutoApprove
		d.Reason = fmt.Sprintf("grand total %s below %s auto-approval threshold",
			total, th.Low.StringFixed(2))
	}
	return d
}
