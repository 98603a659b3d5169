package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportService computes the manager dashboards. Money is summed in Go so
// the results do not depend on the database's decimal aggregation.
type ReportService struct {
	db *gorm.DB
}

// NewReportService creates a report service
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// DateRange bounds a report. Zero values default to the 30 days before now.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) resolve(now time.Time) (time.Time, time.Time, error) {
	to := r.To
	if to.IsZero() {
		to = now
	}
	from := r.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, invalid("start_date", "must not be after end_date")
	}
	return from, to, nil
}

// DashboardStats is the shop overview
type DashboardStats struct {
	TotalCustomers      int64           `json:"total_customers"`
	ActiveWorkOrders    int64           `json:"active_work_orders"`
	CompletedToday      int64           `json:"completed_today"`
	RevenueToday        decimal.Decimal `json:"revenue_today"`
	RevenueWeek         decimal.Decimal `json:"revenue_week"`
	RevenueMonth        decimal.Decimal `json:"revenue_month"`
	PendingAppointments int64           `json:"pending_appointments"`
}

// RevenuePoint is one bucket of a revenue breakdown
type RevenuePoint struct {
	Period        string          `json:"period"`
	Revenue       decimal.Decimal `json:"revenue"`
	InvoicesCount int             `json:"invoices_count"`
}

// PopularService is a line item description and how often it was billed
type PopularService struct {
	ServiceName  string          `json:"service_name"`
	Count        int             `json:"count"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// MechanicPerformance summarises one mechanic's finished work
type MechanicPerformance struct {
	MechanicID                 uint            `json:"mechanic_id"`
	MechanicName               string          `json:"mechanic_name"`
	CompletedWorkOrders        int             `json:"completed_work_orders"`
	AverageCompletionTimeHours float64         `json:"average_completion_time_hours"`
	TotalRevenue               decimal.Decimal `json:"total_revenue"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *ReportService) paidSince(ctx context.Context, shopID uint, since time.Time) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("shop_id = ? AND status = ? AND paid_at >= ?", shopID, models.InvoicePaid, since).
		Pluck("total", &totals).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return decimal.Sum(decimal.Zero, totals...), nil
}

// Dashboard returns the overview counters as of now
func (s *ReportService) Dashboard(ctx context.Context, shopID uint, now time.Time) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	today := startOfDay(now)
	stats := &DashboardStats{}

	counts := []struct {
		dest  *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&stats.TotalCustomers, &models.Customer{}, "shop_id = ? AND is_active = ?", []interface{}{shopID, true}},
		{&stats.ActiveWorkOrders, &models.WorkOrder{}, "shop_id = ? AND status <> ?", []interface{}{shopID, models.WorkOrderDone}},
		{&stats.CompletedToday, &models.WorkOrder{}, "shop_id = ? AND status = ? AND completed_at >= ?", []interface{}{shopID, models.WorkOrderDone, today}},
		{&stats.PendingAppointments, &models.Appointment{}, "shop_id = ? AND status = ?", []interface{}{shopID, models.AppointmentRequested}},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where(c.where, c.args...).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to build dashboard: %w", err)
		}
	}

	var err error
	if stats.RevenueToday, err = s.paidSince(ctx, shopID, today); err != nil {
		return nil, err
	}
	weekday := (int(today.Weekday()) + 6) % 7 // Monday is day zero
	if stats.RevenueWeek, err = s.paidSince(ctx, shopID, today.AddDate(0, 0, -weekday)); err != nil {
		return nil, err
	}
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	if stats.RevenueMonth, err = s.paidSince(ctx, shopID, monthStart); err != nil {
		return nil, err
	}
	return stats, nil
}

// RevenueBreakdown groups paid invoices by day, week or month
func (s *ReportService) RevenueBreakdown(ctx context.Context, shopID uint, period string, r DateRange, now time.Time) ([]RevenuePoint, error) {
	var key func(time.Time) string
	switch period {
	case "", "daily", "day":
		key = func(t time.Time) string { return t.Format("2006-01-02") }
	case "weekly", "week":
		key = func(t time.Time) string {
			y, w := t.ISOWeek()
			return fmt.Sprintf("%d-W%02d", y, w)
		}
	case "monthly", "month":
		key = func(t time.Time) string { return t.Format("2006-01") }
	default:
		return nil, invalid("period", "must be daily, weekly or monthly")
	}
	from, to, err := r.resolve(now)
	if err != nil {
		return nil, err
	}

	var invoices []models.Invoice
	if err := s.db.WithContext(ctx).
		Select("id, total, paid_at").
		Where("shop_id = ? AND status = ? AND paid_at >= ? AND paid_at <= ?", shopID, models.InvoicePaid, from, to).
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	buckets := map[string]*RevenuePoint{}
	for _, inv := range invoices {
		if inv.PaidAt == nil {
			continue
		}
		k := key(*inv.PaidAt)
		point, ok := buckets[k]
		if !ok {
			point = &RevenuePoint{Period: k, Revenue: decimal.Zero}
			buckets[k] = point
		}
		point.Revenue = point.Revenue.Add(inv.Total)
		point.InvoicesCount++
	}

	points := make([]RevenuePoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}

// PopularServices ranks line item descriptions billed on work orders
// completed in the range
func (s *ReportService) PopularServices(ctx context.Context, shopID uint, r DateRange, limit int, now time.Time) ([]PopularService, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	from, to, err := r.resolve(now)
	if err != nil {
		return nil, err
	}

	var items []models.WorkOrderLineItem
	if err := s.db.WithContext(ctx).
		Joins("JOIN work_orders ON work_orders.id = work_order_line_items.work_order_id").
		Where("work_orders.shop_id = ? AND work_orders.status = ? AND work_orders.completed_at >= ? AND work_orders.completed_at <= ?",
			shopID, models.WorkOrderDone, from, to).
		Where("work_orders.deleted_at IS NULL").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}

	byName := map[string]*PopularService{}
	for _, item := range items {
		svc, ok := byName[item.Description]
		if !ok {
			svc = &PopularService{ServiceName: item.Description, TotalRevenue: decimal.Zero}
			byName[item.Description] = svc
		}
		svc.Count++
		svc.TotalRevenue = svc.TotalRevenue.Add(item.TotalPrice)
	}

	services := make([]PopularService, 0, len(byName))
	for _, svc := range byName {
		services = append(services, *svc)
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].Count != services[j].Count {
			return services[i].Count > services[j].Count
		}
		return services[i].ServiceName < services[j].ServiceName
	})
	if len(services) > limit {
		services = services[:limit]
	}
	return services, nil
}

// MechanicPerformance reports completed work per active mechanic. Mechanics
// with no completed work orders in the range are omitted.
func (s *ReportService) MechanicPerformance(ctx context.Context, shopID uint, r DateRange, now time.Time) ([]MechanicPerformance, error) {
	from, to, err := r.resolve(now)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var mechanics []models.Staff
	if err := db.Where("shop_id = ? AND role = ? AND is_active = ?", shopID, models.RoleMechanic, true).
		Order("id").Find(&mechanics).Error; err != nil {
		return nil, fmt.Errorf("failed to load mechanics: %w", err)
	}

	result := []MechanicPerformance{}
	for _, m := range mechanics {
		var orders []models.WorkOrder
		if err := db.Where("shop_id = ? AND assigned_mechanic_id = ? AND status = ? AND completed_at >= ? AND completed_at <= ?",
			shopID, m.ID, models.WorkOrderDone, from, to).Find(&orders).Error; err != nil {
			return nil, fmt.Errorf("failed to load work orders: %w", err)
		}
		if len(orders) == 0 {
			continue
		}

		ids := make([]uint, 0, len(orders))
		var hours float64
		timed := 0
		for _, wo := range orders {
			ids = append(ids, wo.ID)
			if wo.StartedAt != nil && wo.CompletedAt != nil {
				hours += wo.CompletedAt.Sub(*wo.StartedAt).Hours()
				timed++
			}
		}
		avg := 0.0
		if timed > 0 {
			avg = math.Round(hours/float64(timed)*100) / 100
		}

		var totals []decimal.Decimal
		if err := db.Model(&models.Invoice{}).
			Where("work_order_id IN ? AND status = ?", ids, models.InvoicePaid).
			Pluck("total", &totals).Error; err != nil {
			return nil, fmt.Errorf("failed to sum mechanic revenue: %w", err)
		}

		result = append(result, MechanicPerformance{
			MechanicID:                 m.ID,
			MechanicName:               m.FullName(),
			CompletedWorkOrders:        len(orders),
			AverageCompletionTimeHours: avg,
			TotalRevenue:               decimal.Sum(decimal.Zero, totals...),
		})
	}
	return result, nil
}
