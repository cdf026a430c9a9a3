package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"tiergate/internal/engine/tiering"
)

// Resource types delivered by Procore that this service acts on. Line-item
// events carry the parent purchase order in related_resources.
const (
	resourcePurchaseOrder = "Purchase Order Contracts"
	resourceLineItems     = "Purchase Order Contract Line Items"
)

// Event is the inbound Procore webhook payload.
type Event struct {
	ID           int64             `json:"id"`
	Timestamp    string            `json:"timestamp"`
	Reason       string            `json:"reason"`
	CompanyID    int64             `json:"company_id"`
	ProjectID    int64             `json:"project_id"`
	UserID       int64             `json:"user_id"`
	ResourceType string            `json:"resource_type"`
	ResourceID   int64             `json:"resource_id"`
	APIVersion   string            `json:"api_version"`
	Data         json.RawMessage   `json:"data"`
	Related      []RelatedResource `json:"related_resources"`
}

type RelatedResource struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

type tierProcessor interface {
	ProcessPurchaseOrder(ctx context.Context, eventID string, companyID, projectID, poID int64) tiering.Decision
}

type WebhookHandler struct {
	processor tierProcessor
	metrics   *Metrics
}

func NewWebhookHandler(processor tierProcessor, metrics *Metrics) *WebhookHandler {
	return &WebhookHandler{processor: processor, metrics: metrics}
}

// Handle processes one Procore event. Every request, well-formed or not, is
// acknowledged with a success status: Procore is the retry authority, and a
// non-2xx here would trigger its redelivery storm. Processing failures
// surface through logs and the decision engine's fail-safe tier instead.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	h.metrics.EventsReceived.Add(1)

	var event Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Warn().Err(err).Msg("ignoring malformed webhook body")
		h.metrics.EventsSkipped.Add(1)
		ack(w, "ignored", "")
		return
	}

	eventID := eventIDString(event.ID)

	if event.Reason != "create" && event.Reason != "update" {
		log.Debug().Str("event_id", eventID).Str("reason", event.Reason).Msg("ignoring event reason")
		h.metrics.EventsSkipped.Add(1)
		ack(w, "ignored", "")
		return
	}

	poID, ok := resolvePurchaseOrderID(&event)
	if !ok {
		log.Debug().
			Str("event_id", eventID).
			Str("resource_type", event.ResourceType).
			Msg("ignoring event resource type")
		h.metrics.EventsSkipped.Add(1)
		ack(w, "ignored", "")
		return
	}

	log.Info().
		Str("event_id", eventID).
		Str("reason", event.Reason).
		Str("resource_type", event.ResourceType).
		Int64("purchase_order_id", poID).
		Msg("processing webhook event")

	decision := h.processor.ProcessPurchaseOrder(r.Context(), eventID, event.CompanyID, event.ProjectID, poID)
	h.metrics.EventsProcessed.Add(1)
	h.metrics.RecordDecision(decision.Tier)

	ack(w, "processed", decision.Tier.String())
}

// resolvePurchaseOrderID extracts the target purchase order from the event.
// Line-item events reference the PO through related_resources.
func resolvePurchaseOrderID(event *Event) (int64, bool) {
	switch event.ResourceType {
	case resourcePurchaseOrder:
		return event.ResourceID, event.ResourceID != 0
	case resourceLineItems:
		for _, related := range event.Related {
			if related.Type == resourcePurchaseOrder && related.ID != 0 {
				return related.ID, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func eventIDString(id int64) string {
	if id == 0 {
		return "unknown"
	}
	return strconv.FormatInt(id, 10)
}

func ack(w http.ResponseWriter, status, tier string) {
	resp := map[string]string{"status": status}
	if tier != "" {
		resp["tier"] = tier
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
