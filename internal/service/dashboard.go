package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

// Dashboard sizes.
const (
	DashboardVisitDays    = 14
	DashboardPopularPlans = 5
	DashboardRecentOrders = 5
)

// Dashboard is the admin landing page.
type Dashboard struct {
	Plans        repository.PlanStats
	Orders       repository.OrderStats
	Messages     map[model.MessageStatus]int64
	OpenMessages int64
	DailyVisits  []model.DailyVisits
	TotalVisits  int64
	Popular      []*model.HousePlan
	RecentOrders []*model.Order
}

// DashboardService aggregates the admin dashboard.
type DashboardService struct {
	plans    PlanStore
	orders   OrderStore
	contacts ContactStore
	visits   VisitStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewDashboardService creates a new DashboardService. visits may be nil when request logging is off.
func NewDashboardService(plans PlanStore, orders OrderStore, contacts ContactStore, visits VisitStore, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		plans:    plans,
		orders:   orders,
		contacts: contacts,
		visits:   visits,
		logger:   logger.With("component", "service.dashboard"),
		now:      time.Now,
	}
}

// Load gathers every dashboard figure in parallel.
func (s *DashboardService) Load(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		d.Plans, err = s.plans.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.Orders, err = s.orders.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.Messages, err = s.contacts.StatusCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.Popular, err = s.plans.Popular(gctx, DashboardPopularPlans)
		return err
	})
	g.Go(func() error {
		page, err := s.orders.List(gctx, "", repository.Page{Number: 1, PerPage: DashboardRecentOrders})
		if err != nil {
			return err
		}
		d.RecentOrders = page.Orders
		return nil
	})
	if s.visits != nil {
		g.Go(func() error {
			visits, err := s.visits.DailyVisits(gctx, DashboardVisitDays, s.now())
			if err != nil {
				// The chart is optional; the rest of the dashboard still renders.
				s.logger.Warn("failed to load daily visits", "error", err)
				return nil
			}
			d.DailyVisits = visits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	d.OpenMessages = d.Messages[model.MessageStatusNew] + d.Messages[model.MessageStatusInProgress]
	for _, v := range d.DailyVisits {
		d.TotalVisits += v.Visits
	}
	return &d, nil
}
