package tiering

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"tiergate/internal/platform/audit"
	"tiergate/internal/platform/config"
	"tiergate/internal/platform/procore"
)

// fetchAPI is the slice of the Procore fetcher the gathering phase needs.
type fetchAPI interface {
	GetPurchaseOrder(ctx context.Context, companyID, projectID, poID int64) (*procore.PurchaseOrder, error)
	ListLineItems(ctx context.Context, companyID, projectID, poID int64) ([]procore.LineItem, error)
	ListBudgetViews(ctx context.Context, companyID, projectID int64) ([]procore.BudgetView, error)
	ListBudgetRows(ctx context.Context, companyID, projectID, viewID int64) ([]procore.BudgetRow, error)
	ListChangeOrders(ctx context.Context, companyID, projectID, poID int64) ([]procore.ChangeOrder, error)
}

type credentialSource interface {
	EnsureValid(ctx context.Context) bool
}

type decisionSink interface {
	Record(rec *audit.DecisionRecord) error
}

// Service runs the full decision pipeline for one purchase order: gather,
// reconcile, decide, write back, record. One strictly sequential chain of
// blocking calls per webhook event.
type Service struct {
	fetcher fetchAPI
	creds   credentialSource
	writer  *Writer
	store   decisionSink

	thresholds          Thresholds
	unallocatedFlatCode string
	unallocatedCodeID   int64
}

func NewService(fetcher fetchAPI, creds credentialSource, writer *Writer, store decisionSink, cfg config.TieringConfig) (*Service, error) {
	low, err := decimal.NewFromString(cfg.LowThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse low threshold %q: %w", cfg.LowThreshold, err)
	}
	high, err := decimal.NewFromString(cfg.HighThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse high threshold %q: %w", cfg.HighThreshold, err)
	}
	if high.LessThan(low) {
		return nil, fmt.Errorf("high threshold %s below low threshold %s", high, low)
	}

	return &Service{
		fetcher:             fetcher,
		creds:               creds,
		writer:              writer,
		store:               store,
		thresholds:          Thresholds{Low: low, High: high},
		unallocatedFlatCode: cfg.UnallocatedFlatCode,
		unallocatedCodeID:   cfg.UnallocatedCodeID,
	}, nil
}

// ProcessPurchaseOrder executes the pipeline and returns the decision. It
// never returns an error: every internal failure resolves through the rule
// table's fail-safe branch, and write-back or audit failures are logged
// without invalidating the computed tier.
func (s *Service) ProcessPurchaseOrder(ctx context.Context, eventID string, companyID, projectID, poID int64) Decision {
	ev := s.gather(ctx, companyID, projectID, poID)
	d := Decide(ev, s.thresholds)

	log.Info().
		Str("event_id", eventID).
		Int64("purchase_order_id", poID).
		Str("tier", d.Tier.String()).
		Str("reason", d.Reason).
		Msg("approval tier decided")

	var writeErr string
	if err := s.writer.Write(ctx, companyID, projectID, poID, d); err != nil {
		// The decision stands even when it cannot be externalized.
		writeErr = err.Error()
		log.Error().Err(err).
			Int64("purchase_order_id", poID).
			Msg("failed to write decision back to purchase order")
	}

	rec := &audit.DecisionRecord{
		EventID:         eventID,
		CompanyID:       companyID,
		ProjectID:       projectID,
		PurchaseOrderID: poID,
		Tier:            d.Tier.String(),
		Reason:          d.Reason,
		GrandTotal:      ev.GrandTotal.StringFixed(2),
		WriteError:      writeErr,
	}
	if err := s.store.Record(rec); err != nil {
		log.Error().Err(err).Msg("failed to record decision")
	}

	return d
}

// gather performs the sequential data-gathering chain. The first failed step
// short-circuits the rest; its name lands in Evidence.FetchFailure and drives
// the worst-tier branch.
func (s *Service) gather(ctx context.Context, companyID, projectID, poID int64) Evidence {
	var ev Evidence

	if !s.creds.EnsureValid(ctx) {
		ev.FetchFailure = "no valid access token"
		return ev
	}

	po, err := s.fetcher.GetPurchaseOrder(ctx, companyID, projectID, poID)
	if err != nil {
		log.Error().Err(err).Int64("purchase_order_id", poID).Msg("purchase order fetch failed")
		ev.FetchFailure = fmt.Sprintf("purchase order %d unavailable", poID)
		return ev
	}
	ev.GrandTotal = po.GrandTotal

	items, err := s.fetcher.ListLineItems(ctx, companyID, projectID, poID)
	if err != nil {
		log.Error().Err(err).Int64("purchase_order_id", poID).Msg("line item fetch failed")
		ev.FetchFailure = "line items unavailable"
		return ev
	}

	views, err := s.fetcher.ListBudgetViews(ctx, companyID, projectID)
	if err != nil {
		log.Error().Err(err).Int64("project_id", projectID).Msg("budget view fetch failed")
		ev.FetchFailure = "budget views unavailable"
		return ev
	}
	if len(views) == 0 {
		ev.FetchFailure = fmt.Sprintf("no budget view configured for project %d", projectID)
		return ev
	}

	rows, err := s.fetcher.ListBudgetRows(ctx, companyID, projectID, views[0].ID)
	if err != nil {
		log.Error().Err(err).Int64("budget_view_id", views[0].ID).Msg("budget row fetch failed")
		ev.FetchFailure = "budget rows unavailable"
		return ev
	}

	orders, err := s.fetcher.ListChangeOrders(ctx, companyID, projectID, poID)
	if err != nil {
		log.Error().Err(err).Int64("purchase_order_id", poID).Msg("change order fetch failed")
		ev.FetchFailure = "change orders unavailable"
		return ev
	}

	sums, unkeyed := SumLineItems(items)
	for _, item := range unkeyed {
		ev.UnmatchedKeys = append(ev.UnmatchedKeys, fmt.Sprintf("line item %d (no WBS identity)", item.ID))
	}

	aggs, missing := Reconcile(sums, rows)
	ev.Aggregates = aggs
	for _, key := range missing {
		ev.UnmatchedKeys = append(ev.UnmatchedKeys, key.String())
	}

	for i := range orders {
		if !orders[i].Approved() {
			ev.HasPendingChangeOrder = true
			break
		}
	}
	ev.HasUnallocatedLine = s.hasUnallocatedLine(items)

	return ev
}

// hasUnallocatedLine spots the designated ad-hoc cost-code sentinel on any
// line item, by flat code or by numeric id when one is configured.
func (s *Service) hasUnallocatedLine(items []procore.LineItem) bool {
	for _, item := range items {
		cc := item.CostCode
		if cc == nil {
			continue
		}
		if s.unallocatedFlatCode != "" && cc.FullCode == s.unallocatedFlatCode {
			return true
		}
		if s.unallocatedCodeID != 0 && cc.ID != nil && *cc.ID == s.unallocatedCodeID {
			return true
		}
	}
	return false
}
