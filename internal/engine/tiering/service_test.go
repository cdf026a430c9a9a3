package tiering

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tiergate/internal/platform/audit"
	"tiergate/internal/platform/config"
	"tiergate/internal/platform/procore"
)

type fakeFetcher struct {
	po        *procore.PurchaseOrder
	poErr     error
	items     []procore.LineItem
	itemsErr  error
	views     []procore.BudgetView
	viewsErr  error
	rows      []procore.BudgetRow
	rowsErr   error
	orders    []procore.ChangeOrder
	ordersErr error
}

func (f *fakeFetcher) GetPurchaseOrder(_ context.Context, _, _, _ int64) (*procore.PurchaseOrder, error) {
	return f.po, f.poErr
}

func (f *fakeFetcher) ListLineItems(_ context.Context, _, _, _ int64) ([]procore.LineItem, error) {
	return f.items, f.itemsErr
}

func (f *fakeFetcher) ListBudgetViews(_ context.Context, _, _ int64) ([]procore.BudgetView, error) {
	return f.views, f.viewsErr
}

func (f *fakeFetcher) ListBudgetRows(_ context.Context, _, _, _ int64) ([]procore.BudgetRow, error) {
	return f.rows, f.rowsErr
}

func (f *fakeFetcher) ListChangeOrders(_ context.Context, _, _, _ int64) ([]procore.ChangeOrder, error) {
	return f.orders, f.ordersErr
}

type fakeCreds struct {
	valid bool
}

func (f *fakeCreds) EnsureValid(_ context.Context) bool { return f.valid }

type fakeStore struct {
	recs []*audit.DecisionRecord
	err  error
}

func (f *fakeStore) Record(rec *audit.DecisionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.recs = append(f.recs, rec)
	return nil
}

func testTieringConfig() config.TieringConfig {
	return config.TieringConfig{
		LowThreshold:        "5000",
		HighThreshold:       "10000",
		UnallocatedFlatCode: "99-999",
		Fields:              testFieldConfig(),
	}
}

// healthyFetcher returns a fetcher whose PO is $3000, fully budgeted, no
// change orders: the auto-approve baseline the tests mutate.
func healthyFetcher() *fakeFetcher {
	return &fakeFetcher{
		po: &procore.PurchaseOrder{ID: 3, ProjectID: 2, GrandTotal: dec("3000")},
		items: []procore.LineItem{
			{ID: 1, Amount: dec("3000"), WBSCode: &procore.WBSCode{ID: int64Ptr(1)}, CostCode: &procore.CostCode{FullCode: "03-300"}},
		},
		views: []procore.BudgetView{{ID: 7, Name: "Standard"}},
		rows: []procore.BudgetRow{
			{WBSCode: &procore.WBSCode{ID: int64Ptr(1)}, RevisedBudget: dec("50000"), CommittedCosts: dec("10000")},
		},
	}
}

func newTestService(t *testing.T, fetcher *fakeFetcher, creds *fakeCreds, api *fakeResultAPI, store *fakeStore) *Service {
	t.Helper()
	writer := NewWriter(api, testFieldConfig(), time.UTC)
	svc, err := NewService(fetcher, creds, writer, store, testTieringConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestService_AutoApprove(t *testing.T) {
	fetcher := healthyFetcher()
	api := &fakeResultAPI{defs: fullCatalog()}
	store := &fakeStore{}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, api, store)

	d := svc.ProcessPurchaseOrder(context.Background(), "evt-1", 1, 2, 3)
	if d.Tier != TierAutoApprove {
		t.Fatalf("Expected Auto-Approve, got %s (%s)", d.Tier, d.Reason)
	}
	if !strings.Contains(d.Reason, "below 5000.00") {
		t.Errorf("Expected reason to cite the default rule, got %q", d.Reason)
	}
	if len(api.updates) == 0 {
		t.Error("Expected the decision to be written back")
	}
	if len(store.recs) != 1 {
		t.Fatalf("Expected 1 audit record, got %d", len(store.recs))
	}
	rec := store.recs[0]
	if rec.Tier != "Auto-Approve" || rec.EventID != "evt-1" || rec.GrandTotal != "3000.00" {
		t.Errorf("Unexpected audit record: %+v", rec)
	}
}

func TestService_ReviewBand(t *testing.T) {
	fetcher := healthyFetcher()
	fetcher.po.GrandTotal = dec("7500")
	fetcher.items[0].Amount = dec("7500")
	store := &fakeStore{}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, store)

	d := svc.ProcessPurchaseOrder(context.Background(), "evt-2", 1, 2, 3)
	if d.Tier != TierOne {
		t.Fatalf("Expected Tier 1, got %s (%s)", d.Tier, d.Reason)
	}
	if !strings.Contains(d.Reason, "5000.00-10000.00") {
		t.Errorf("Expected reason to cite the band, got %q", d.Reason)
	}
}

func TestService_InvalidCredentialsFailSafe(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, healthyFetcher(), &fakeCreds{valid: false}, &fakeResultAPI{defs: fullCatalog()}, store)

	d := svc.ProcessPurchaseOrder(context.Background(), "evt-3", 1, 2, 3)
	if d.Tier != TierFour {
		t.Fatalf("Expected Tier 4, got %s", d.Tier)
	}
	if !strings.Contains(d.Reason, "access token") {
		t.Errorf("Expected reason to name the credential failure, got %q", d.Reason)
	}
}

func TestService_FetchFailuresFailSafe(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*fakeFetcher)
		contains string
	}{
		{
			name:     "PO not found",
			mutate:   func(f *fakeFetcher) { f.po, f.poErr = nil, procore.ErrNotFound },
			contains: "purchase order 3 unavailable",
		},
		{
			name:     "Line items unavailable",
			mutate:   func(f *fakeFetcher) { f.itemsErr = errors.New("boom") },
			contains: "line items unavailable",
		},
		{
			name:     "Budget views unavailable",
			mutate:   func(f *fakeFetcher) { f.viewsErr = errors.New("boom") },
			contains: "budget views unavailable",
		},
		{
			name:     "No budget view configured",
			mutate:   func(f *fakeFetcher) { f.views = nil },
			contains: "no budget view",
		},
		{
			name:     "Budget rows unavailable",
			mutate:   func(f *fakeFetcher) { f.rowsErr = errors.New("boom") },
			contains: "budget rows unavailable",
		},
		{
			name:     "Change orders unavailable",
			mutate:   func(f *fakeFetcher) { f.ordersErr = errors.New("boom") },
			contains: "change orders unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := healthyFetcher()
			tt.mutate(fetcher)
			store := &fakeStore{}
			svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, store)

			d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
			if d.Tier != TierFour {
				t.Fatalf("Expected Tier 4, got %s (%s)", d.Tier, d.Reason)
			}
			if !strings.Contains(d.Reason, tt.contains) {
				t.Errorf("Expected reason to mention %q, got %q", tt.contains, d.Reason)
			}
		})
	}
}

func TestService_OverBudget(t *testing.T) {
	fetcher := healthyFetcher()
	fetcher.items = []procore.LineItem{
		{ID: 1, Amount: dec("8000"), WBSCode: &procore.WBSCode{ID: int64Ptr(1)}},
	}
	fetcher.rows = []procore.BudgetRow{
		{WBSCode: &procore.WBSCode{ID: int64Ptr(1)}, RevisedBudget: dec("100000"), CommittedCosts: dec("95000")},
	}
	fetcher.po.GrandTotal = dec("8000")
	store := &fakeStore{}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, store)

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierFour {
		t.Fatalf("Expected Tier 4 over budget, got %s (%s)", d.Tier, d.Reason)
	}
	if !strings.Contains(d.Reason, "over budget") {
		t.Errorf("Expected over-budget reason, got %q", d.Reason)
	}
}

func TestService_UnmatchedBudgetRow(t *testing.T) {
	fetcher := healthyFetcher()
	fetcher.rows = nil
	store := &fakeStore{}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, store)

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierFour {
		t.Fatalf("Expected Tier 4, got %s (%s)", d.Tier, d.Reason)
	}
	if !strings.Contains(d.Reason, "id:1") {
		t.Errorf("Expected reason to name the unmatched key, got %q", d.Reason)
	}
}

func TestService_PendingChangeOrder(t *testing.T) {
	fetcher := healthyFetcher()
	fetcher.orders = []procore.ChangeOrder{{ID: 9, Status: "pending"}}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, &fakeStore{})

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierTwo {
		t.Fatalf("Expected Tier 2, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestService_ApprovedChangeOrderDoesNotEscalate(t *testing.T) {
	fetcher := healthyFetcher()
	fetcher.orders = []procore.ChangeOrder{{ID: 9, Status: "approved"}}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, &fakeStore{})

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierAutoApprove {
		t.Fatalf("Expected Auto-Approve, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestService_UnallocatedSentinelByFlatCode(t *testing.T) {
	fetcher := healthyFetcher()
	fetcher.items[0].CostCode = &procore.CostCode{FullCode: "99-999"}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, &fakeStore{})

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierTwo {
		t.Fatalf("Expected Tier 2, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestService_UnallocatedSentinelByID(t *testing.T) {
	cfg := testTieringConfig()
	cfg.UnallocatedCodeID = 777
	fetcher := healthyFetcher()
	fetcher.items[0].CostCode = &procore.CostCode{ID: int64Ptr(777), FullCode: "05-500"}

	writer := NewWriter(&fakeResultAPI{defs: fullCatalog()}, testFieldConfig(), time.UTC)
	svc, err := NewService(fetcher, &fakeCreds{valid: true}, writer, &fakeStore{}, cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierTwo {
		t.Fatalf("Expected Tier 2, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestService_PendingChangeOrderAndUnallocated(t *testing.T) {
	fetcher := healthyFetcher()
	fetcher.orders = []procore.ChangeOrder{{ID: 9, Status: "pending"}}
	fetcher.items[0].CostCode = &procore.CostCode{FullCode: "99-999"}
	svc := newTestService(t, fetcher, &fakeCreds{valid: true}, &fakeResultAPI{defs: fullCatalog()}, &fakeStore{})

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierThree {
		t.Fatalf("Expected Tier 3, got %s (%s)", d.Tier, d.Reason)
	}
}

func TestService_WriteFailureDoesNotChangeDecision(t *testing.T) {
	api := &fakeResultAPI{defs: fullCatalog(), updateErr: errors.New("patch rejected")}
	store := &fakeStore{}
	svc := newTestService(t, healthyFetcher(), &fakeCreds{valid: true}, api, store)

	d := svc.ProcessPurchaseOrder(context.Background(), "evt", 1, 2, 3)
	if d.Tier != TierAutoApprove {
		t.Fatalf("Expected Auto-Approve despite write failure, got %s", d.Tier)
	}
	if len(store.recs) != 1 {
		t.Fatalf("Expected audit record despite write failure")
	}
	if store.recs[0].WriteError == "" {
		t.Error("Expected write error recorded in the audit trail")
	}
}

func TestNewService_RejectsBadThresholds(t *testing.T) {
	cfg := testTieringConfig()
	cfg.HighThreshold = "100"
	writer := NewWriter(&fakeResultAPI{}, testFieldConfig(), time.UTC)
	if _, err := NewService(&fakeFetcher{}, &fakeCreds{}, writer, &fakeStore{}, cfg); err == nil {
		t.Fatal("Expected error for high threshold below low threshold")
	}

	cfg = testTieringConfig()
	cfg.LowThreshold = "not-a-number"
	if _, err := NewService(&fakeFetcher{}, &fakeCreds{}, writer, &fakeStore{}, cfg); err == nil {
		t.Fatal("Expected error for unparseable threshold")
	}
}
