package tiering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"tiergate/internal/platform/config"
	"tiergate/internal/platform/procore"
)

// resultAPI is the slice of the Procore fetcher the writer needs.
type resultAPI interface {
	ListCustomFieldDefs(ctx context.Context, companyID, projectID int64) ([]procore.CustomFieldDef, error)
	UpdateCustomFields(ctx context.Context, companyID, projectID, poID int64, fields map[string]interface{}) error
}

// Writer externalizes a decision onto the purchase order: it resolves the
// tier flag fields from the project's custom-field catalog by label, sets
// exactly one flag true and the siblings false in a single update, and
// optionally appends a formatted justification note as a second update.
// Writing the same decision twice produces the same field state.
type Writer struct {
	api    resultAPI
	labels map[Tier]string
	note   string
	loc    *time.Location
}

func NewWriter(api resultAPI, cfg config.TierFieldsConfig, loc *time.Location) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{
		api: api,
		labels: map[Tier]string{
			TierAutoApprove: cfg.AutoApprove,
			TierOne:         cfg.Tier1,
			TierTwo:         cfg.Tier2,
			TierThree:       cfg.Tier3,
			TierFour:        cfg.Tier4,
		},
		note: cfg.Justification,
		loc:  loc,
	}
}

// Write persists the decision to the purchase order's custom fields. A
// failure here never invalidates the decision itself; callers log the error
// and still acknowledge the webhook.
func (w *Writer) Write(ctx context.Context, companyID, projectID, poID int64, d Decision) error {
	defs, err := w.api.ListCustomFieldDefs(ctx, companyID, projectID)
	if err != nil {
		return fmt.Errorf("resolve custom field catalog: %w", err)
	}

	byLabel := make(map[string]procore.CustomFieldDef, len(defs))
	for _, def := range defs {
		byLabel[def.Label] = def
	}

	fields := make(map[string]interface{})
	for _, tier := range AllTiers() {
		def, ok := byLabel[w.labels[tier]]
		if !ok {
			continue
		}
		fields[strconv.FormatInt(def.ID, 10)] = tier == d.Tier
	}

	// The decided tier's own flag must exist; partial sibling catalogs are
	// tolerated and logged.
	if _, ok := byLabel[w.labels[d.Tier]]; !ok {
		return fmt.Errorf("custom field %q not found in catalog", w.labels[d.Tier])
	}
	if len(fields) < len(w.labels) {
		log.Warn().
			Int("resolved", len(fields)).
			Int("expected", len(w.labels)).
			Msg("tier flag catalog incomplete; updating resolvable flags only")
	}

	if err := w.api.UpdateCustomFields(ctx, companyID, projectID, poID, fields); err != nil {
		return fmt.Errorf("update tier flags: %w", err)
	}

	if def, ok := byLabel[w.note]; ok && w.note != "" {
		note := FormatJustification(d, time.Now(), w.loc)
		noteField := map[string]interface{}{strconv.FormatInt(def.ID, 10): note}
		if err := w.api.UpdateCustomFields(ctx, companyID, projectID, poID, noteField); err != nil {
			return fmt.Errorf("update justification note: %w", err)
		}
	}

	return nil
}

// FormatJustification renders the human-readable note written alongside the
// tier flags: the decision, a timestamp in the display timezone, and the
// itemized budget comparison per WBS key.
func FormatJustification(d Decision, at time.Time, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision: %s (%s)\n", d.Tier, d.Reason)
	fmt.Fprintf(&b, "Decided at: %s\n", at.In(loc).Format("2006-01-02 15:04:05 MST"))

	for _, agg := range d.Aggregates {
		verdict := "within budget"
		if agg.OverBudget {
			verdict = "OVER BUDGET"
		}
		fmt.Fprintf(&b, "%s: committed %s + PO %s = %s vs revised budget %s (%s)\n",
			agg.Key,
			agg.CommittedCosts.StringFixed(2),
			agg.POAmount.StringFixed(2),
			agg.FutureCommitted.StringFixed(2),
			agg.RevisedBudget.StringFixed(2),
			verdict,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}
