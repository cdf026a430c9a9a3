package procore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// perPage is the page size used for every paginated listing. Fetchers loop
// until a short page so callers always see one exhaustive ordered slice.
const perPage = 100

// Fetcher exposes the typed read and write operations the decision engine
// needs. Every operation is fresh per call; nothing is cached.
type Fetcher struct {
	client *Client
}

func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

func projectQuery(projectID int64) url.Values {
	return url.Values{"project_id": {strconv.FormatInt(projectID, 10)}}
}

// GetPurchaseOrder fetches a single purchase order contract.
func (f *Fetcher) GetPurchaseOrder(ctx context.Context, companyID, projectID, poID int64) (*PurchaseOrder, error) {
	path := fmt.Sprintf("/rest/v1.0/purchase_order_contracts/%d", poID)
	var po PurchaseOrder
	if err := f.client.Get(ctx, companyID, path, projectQuery(projectID), &po); err != nil {
		return nil, err
	}
	if po.ProjectID == 0 {
		po.ProjectID = projectID
	}
	return &po, nil
}

// ListLineItems returns every line item on the purchase order, following
// pagination until exhaustion.
func (f *Fetcher) ListLineItems(ctx context.Context, companyID, projectID, poID int64) ([]LineItem, error) {
	path := fmt.Sprintf("/rest/v1.0/purchase_order_contracts/%d/line_items", poID)
	var items []LineItem
	err := paginate(projectQuery(projectID), func(q url.Values) (int, error) {
		var page []LineItem
		if err := f.client.Get(ctx, companyID, path, q, &page); err != nil {
			return 0, err
		}
		items = append(items, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListBudgetViews returns the budget views configured for the project.
func (f *Fetcher) ListBudgetViews(ctx context.Context, companyID, projectID int64) ([]BudgetView, error) {
	var views []BudgetView
	if err := f.client.Get(ctx, companyID, "/rest/v1.0/budget_views", projectQuery(projectID), &views); err != nil {
		return nil, err
	}
	return views, nil
}

// ListBudgetRows returns every detail row of a budget view, following
// pagination until exhaustion.
func (f *Fetcher) ListBudgetRows(ctx context.Context, companyID, projectID, viewID int64) ([]BudgetRow, error) {
	path := fmt.Sprintf("/rest/v1.0/budget_views/%d/detail_rows", viewID)
	var rows []BudgetRow
	err := paginate(projectQuery(projectID), func(q url.Values) (int, error) {
		var page []BudgetRow
		if err := f.client.Get(ctx, companyID, path, q, &page); err != nil {
			return 0, err
		}
		rows = append(rows, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListChangeOrders returns the change orders attached to the purchase order.
func (f *Fetcher) ListChangeOrders(ctx context.Context, companyID, projectID, poID int64) ([]ChangeOrder, error) {
	path := fmt.Sprintf("/rest/v1.0/purchase_order_contracts/%d/change_orders", poID)
	var orders []ChangeOrder
	if err := f.client.Get(ctx, companyID, path, projectQuery(projectID), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListCustomFieldDefs returns the project's custom-field catalog for
// purchase order contracts.
func (f *Fetcher) ListCustomFieldDefs(ctx context.Context, companyID, projectID int64) ([]CustomFieldDef, error) {
	q := projectQuery(projectID)
	q.Set("type", "purchase_order_contract")
	var defs []CustomFieldDef
	if err := f.client.Get(ctx, companyID, "/rest/v1.0/custom_field_definitions", q, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// UpdateCustomFields patches custom-field values on a purchase order. fields
// maps custom-field definition id to new value.
func (f *Fetcher) UpdateCustomFields(ctx context.Context, companyID, projectID, poID int64, fields map[string]interface{}) error {
	path := fmt.Sprintf("/rest/v1.0/purchase_order_contracts/%d", poID)
	body := map[string]interface{}{
		"project_id": projectID,
		"purchase_order_contract": map[string]interface{}{
			"custom_fields": fields,
		},
	}
	return f.client.Patch(ctx, companyID, path, body, nil)
}

// paginate invokes fetch with increasing page numbers until a page comes back
// shorter than perPage.
func paginate(base url.Values, fetch func(url.Values) (int, error)) error {
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(perPage))

		n, err := fetch(q)
		if err != nil {
			return err
		}
		if n < perPage {
			return nil
		}
	}
}
