package service

import (
	"math"
	"time"

	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

// StatsService aggregates the dashboard view over all four entity types.
type StatsService struct {
	store storage.Store
}

func NewStatsService(store storage.Store) *StatsService {
	return &StatsService{store: store}
}

type POStatusCounts struct {
	Pending   int `json:"pending"`
	Ordered   int `json:"ordered"`
	Delivered int `json:"delivered"`
	Received  int `json:"received"`
}

type InvoiceStatusCounts struct {
	Unprocessed int `json:"unprocessed"`
	Processing  int `json:"processing"`
	Processed   int `json:"processed"`
	Failed      int `json:"failed"`
}

type POStats struct {
	Total          int                    `json:"total"`
	ByStatus       POStatusCounts         `json:"byStatus"`
	TotalValue     float64                `json:"totalValue"`
	RecentActivity []models.PurchaseOrder `json:"recentActivity"`
}

type InvoiceStats struct {
	Total      int                 `json:"total"`
	ByStatus   InvoiceStatusCounts `json:"byStatus"`
	TotalValue float64             `json:"totalValue"`
	Recent     []models.Invoice    `json:"recent"`
}

type AutomationStats struct {
	TotalRuns   int                    `json:"totalRuns"`
	Successful  int                    `json:"successful"`
	Failed      int                    `json:"failed"`
	SuccessRate int                    `json:"successRate"`
	RecentRuns  []models.AutomationRun `json:"recentRuns"`
}

type ActivityPoint struct {
	Date     string `json:"date"`
	POs      int    `json:"pos"`
	Invoices int    `json:"invoices"`
}

type FailedInvoice struct {
	ID        string    `json:"id"`
	Vendor    string    `json:"vendor"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

type RecentFailures struct {
	AutomationRuns []models.AutomationRun `json:"automationRuns"`
	// Invoices lists failed invoices with no failed run at all, e.g. ones
	// that failed before a run record existed.
	Invoices []FailedInvoice `json:"invoices"`
}

type DashboardStats struct {
	PurchaseOrders    POStats              `json:"purchaseOrders"`
	Invoices          InvoiceStats         `json:"invoices"`
	Automation        AutomationStats      `json:"automation"`
	ActivityChartData []ActivityPoint      `json:"activityChartData"`
	RecentLogs        []models.ActivityLog `json:"recentLogs"`
	RecentFailures    RecentFailures       `json:"recentFailures"`
}

// Dashboard computes the live dashboard aggregates: status breakdowns, run
// success rate, a seven-day activity chart and recent failures.
func (s *StatsService) Dashboard() (*DashboardStats, error) {
	purchaseOrders, err := s.store.ListPurchaseOrders(storage.POFilter{})
	if err != nil {
		return nil, err
	}
	invoices, err := s.store.ListInvoices()
	if err != nil {
		return nil, err
	}
	runs, err := s.store.ListAutomationRuns(storage.RunFilter{})
	if err != nil {
		return nil, err
	}
	recentLogs, err := s.store.ListActivityLogs(storage.LogFilter{Limit: 10})
	if err != nil {
		return nil, err
	}
	failedRuns, err := s.store.ListAutomationRuns(storage.RunFilter{Status: models.RunStatusFailed, Limit: 10})
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		PurchaseOrders: POStats{
			Total:          len(purchaseOrders),
			RecentActivity: head(purchaseOrders, 5),
		},
		Invoices: InvoiceStats{
			Total:  len(invoices),
			Recent: head(invoices, 5),
		},
		Automation: AutomationStats{
			TotalRuns:  len(runs),
			RecentRuns: head(runs, 5),
		},
		RecentLogs: recentLogs,
		RecentFailures: RecentFailures{
			AutomationRuns: failedRuns,
		},
	}

	for _, po := range purchaseOrders {
		stats.PurchaseOrders.TotalValue = models.Round2(stats.PurchaseOrders.TotalValue + po.Total)
		switch po.Status {
		case models.POStatusPending:
			stats.PurchaseOrders.ByStatus.Pending++
		case models.POStatusOrdered:
			stats.PurchaseOrders.ByStatus.Ordered++
		case models.POStatusDelivered:
			stats.PurchaseOrders.ByStatus.Delivered++
		case models.POStatusReceived:
			stats.PurchaseOrders.ByStatus.Received++
		}
	}

	for _, inv := range invoices {
		stats.Invoices.TotalValue = models.Round2(stats.Invoices.TotalValue + inv.Total)
		switch inv.Status {
		case models.InvoiceStatusUnprocessed:
			stats.Invoices.ByStatus.Unprocessed++
		case models.InvoiceStatusProcessing:
			stats.Invoices.ByStatus.Processing++
		case models.InvoiceStatusProcessed:
			stats.Invoices.ByStatus.Processed++
		case models.InvoiceStatusFailed:
			stats.Invoices.ByStatus.Failed++
		}
	}

	for _, run := range runs {
		switch run.Status {
		case models.RunStatusSuccess:
			stats.Automation.Successful++
		case models.RunStatusFailed:
			stats.Automation.Failed++
		}
	}
	if len(runs) > 0 {
		stats.Automation.SuccessRate = int(math.Round(float64(stats.Automation.Successful) / float64(len(runs)) * 100))
	}

	stats.ActivityChartData = activityChart(purchaseOrders, invoices, time.Now())

	failedRunInvoices := make(map[string]bool, len(failedRuns))
	for _, run := range failedRuns {
		failedRunInvoices[run.InvoiceID] = true
	}
	for _, inv := range invoices {
		if inv.Status != models.InvoiceStatusFailed || failedRunInvoices[inv.ID] {
			continue
		}
		stats.RecentFailures.Invoices = append(stats.RecentFailures.Invoices, FailedInvoice{
			ID: inv.ID, Vendor: inv.Vendor, Total: inv.Total, CreatedAt: inv.CreatedAt,
		})
		if len(stats.RecentFailures.Invoices) == 5 {
			break
		}
	}

	return stats, nil
}

// activityChart buckets PO and invoice creations into the last seven days.
func activityChart(pos []models.PurchaseOrder, invoices []models.Invoice, now time.Time) []ActivityPoint {
	const day = 24 * time.Hour
	keys := make([]string, 0, 7)
	index := make(map[string]int, 7)
	for i := 6; i >= 0; i-- {
		key := now.Add(-time.Duration(i) * day).Format("Jan 2")
		index[key] = len(keys)
		keys = append(keys, key)
	}
	points := make([]ActivityPoint, len(keys))
	for i, key := range keys {
		points[i] = ActivityPoint{Date: key}
	}
	for _, po := range pos {
		if i, ok := index[po.CreatedAt.Format("Jan 2")]; ok {
			points[i].POs++
		}
	}
	for _, inv := range invoices {
		if i, ok := index[inv.CreatedAt.Format("Jan 2")]; ok {
			points[i].Invoices++
		}
	}
	return points
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
