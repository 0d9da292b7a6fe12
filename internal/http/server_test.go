package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	internal_http "github.com/procurehq/potrack/internal/http"
	"github.com/procurehq/potrack/internal/log"
	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

func newTestServer() (*httptest.Server, *storage.MockStore) {
	store := storage.NewMockStore()
	bus := events.NewBus(log.GetLogger())
	srv := internal_http.NewServer(store, bus, log.GetLogger())
	return httptest.NewServer(srv.Handler()), store
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	assert.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "running")
}

func TestPurchaseOrderEndpoints(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	t.Run("CreateWithBody", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/purchase-orders", map[string]interface{}{
			"vendor": "Acme Supplies Co.",
			"items":  []models.LineItem{models.NewLineItem("Widget", 5, 25.0)},
			"total":  125.00,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var po models.PurchaseOrder
		assert.NoError(t, json.Unmarshal(body, &po))
		assert.Equal(t, "Acme Supplies Co.", po.Vendor)
		assert.Equal(t, models.POStatusPending, po.Status)

		t.Run("GetAndPatch", func(t *testing.T) {
			resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/purchase-orders/"+po.ID, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var got models.PurchaseOrder
			assert.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, po.ID, got.ID)
			assert.Len(t, got.ActivityLogs, 1)

			resp, body = doJSON(t, http.MethodPatch, ts.URL+"/api/purchase-orders/"+po.ID,
				map[string]string{"status": "ordered"})
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, models.POStatusOrdered, got.Status)
		})
	})

	t.Run("CreateEmptyBodyGeneratesRandom", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/purchase-orders", nil)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var po models.PurchaseOrder
		assert.NoError(t, json.Unmarshal(body, &po))
		assert.NotEmpty(t, po.Vendor)
	})

	t.Run("CreateBadJSON", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/purchase-orders", "application/json", strings.NewReader("{{{"))
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("GetMissing", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/purchase-orders/missing", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("List", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/purchase-orders", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var pos []models.PurchaseOrder
		assert.NoError(t, json.Unmarshal(body, &pos))
		assert.Len(t, pos, 2)
	})
}

func TestInvoiceEndpoints(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/invoices", map[string]interface{}{
		"vendor":    "Acme Supplies Co.",
		"lineItems": []models.LineItem{models.NewLineItem("Widget", 5, 25.0)},
		"total":     125.00,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var inv models.Invoice
	assert.NoError(t, json.Unmarshal(body, &inv))
	assert.Equal(t, models.InvoiceStatusUnprocessed, inv.Status)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/invoices/"+inv.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/api/invoices/"+inv.ID,
		map[string]string{"status": "failed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &inv))
	assert.Equal(t, models.InvoiceStatusFailed, inv.Status)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/invoices", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var invoices []models.Invoice
	assert.NoError(t, json.Unmarshal(body, &invoices))
	assert.Len(t, invoices, 1)
}

func TestGeneratePOEndpoint(t *testing.T) {
	ts, store := newTestServer()
	defer ts.Close()

	t.Run("Success", func(t *testing.T) {
		inv, err := store.SaveInvoice(models.Invoice{
			Vendor:    "Acme Supplies Co.",
			LineItems: `[{"name":"Widget","quantity":5,"unitPrice":25,"total":125}]`,
			Total:     125,
			Status:    models.InvoiceStatusUnprocessed,
		})
		assert.NoError(t, err)

		resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/generate-po", ts.URL, inv.ID), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Invoice       models.Invoice       `json:"invoice"`
			PurchaseOrder models.PurchaseOrder `json:"purchaseOrder"`
			AutomationRun models.RunSummary    `json:"automationRun"`
		}
		assert.NoError(t, json.Unmarshal(body, &result))
		assert.Equal(t, models.InvoiceStatusProcessed, result.Invoice.Status)
		assert.Equal(t, "Acme Supplies Co.", result.PurchaseOrder.Vendor)
		assert.Equal(t, models.RunStatusSuccess, result.AutomationRun.Status)

		// Retrying a processed invoice conflicts.
		resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/generate-po", ts.URL, inv.ID), nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, string(body), "error")
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/invoices/missing/generate-po", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("AutomationFailure", func(t *testing.T) {
		inv, err := store.SaveInvoice(models.Invoice{
			Vendor:    "Acme Supplies Co.",
			LineItems: "broken payload",
			Total:     10,
			Status:    models.InvoiceStatusUnprocessed,
		})
		assert.NoError(t, err)

		resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/generate-po", ts.URL, inv.ID), nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var envelope map[string]string
		assert.NoError(t, json.Unmarshal(body, &envelope))
		assert.Equal(t, "Automation failed", envelope["error"])
		assert.NotEmpty(t, envelope["details"])
		assert.NotEmpty(t, envelope["runId"])
	})
}

func TestDashboardAndSimulatorEndpoints(t *testing.T) {
	ts, store := newTestServer()
	defer ts.Close()

	_, err := store.SavePurchaseOrder(models.PurchaseOrder{
		Vendor: "Acme Supplies Co.", Items: "[]", Total: 100, Status: models.POStatusPending,
	})
	assert.NoError(t, err)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/dashboard/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"purchaseOrders"`)
	assert.Contains(t, string(body), `"activityChartData"`)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/simulator", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "PO status advanced")

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/automation-runs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []models.AutomationRun
	assert.NoError(t, json.Unmarshal(body, &runs))
	assert.Empty(t, runs)
}

func TestStream(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/purchase-orders/stream", nil)
	assert.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("stream read failed: %v", err)
			}
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.Contains(t, readEvent(), `"type":"connected"`)

	// A PO created through the API shows up on the open stream.
	resp2, _ := doJSON(t, http.MethodPost, ts.URL+"/api/purchase-orders", nil)
	assert.Equal(t, http.StatusCreated, resp2.StatusCode)

	event := readEvent()
	assert.Contains(t, event, `"type":"po:created"`)
	assert.Contains(t, event, `"vendor"`)
}
