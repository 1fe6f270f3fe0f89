package tracking

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"freight_link/internal/identity"
	"freight_link/internal/models"
	"freight_link/internal/store"
)

var (
	viewer = identity.Actor{UserID: 1, Role: identity.RoleCompany}
	driver = identity.Actor{UserID: 9, Role: identity.RoleDriver}
)

// assignedOrder seeds an order already assigned to the test driver.
func assignedOrder(t *testing.T, st *store.MemoryStore, base time.Time) *models.Order {
	t.Helper()
	o := &models.Order{
		Reference:     "TRACK-REF",
		CompanyID:     viewer.UserID,
		Status:        models.StatusPending,
		PickupAddress: "Depot 4",
		Stops: []models.Stop{
			{StopIndex: 1, Address: "Market St", Latitude: 28.70, Longitude: 77.10},
			{StopIndex: 2, Address: "Mill Rd", Latitude: 28.90, Longitude: 77.05},
		},
	}
	if err := o.Assign(7, driver.UserID, 3, 8200, base); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := st.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func newTestService(st *store.MemoryStore, keep int, clock *time.Time) *Service {
	svc := NewService(st, keep)
	svc.now = func() time.Time { return *clock }
	return svc
}

func TestFirstPingBeginsTransit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 50, &clock)
	o := assignedOrder(t, st, base)

	res, err := svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.62, Longitude: 77.19, CapturedAt: base})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !res.Accepted || res.Status != models.StatusInTransit {
		t.Fatalf("first accepted sample must flip to in_transit: %+v", res)
	}
	if res.NextStopDistance <= 0 {
		t.Fatalf("expected a distance to the next stop, got %f", res.NextStopDistance)
	}
	got, _ := st.GetOrder(ctx, o.ID)
	if got.Status != models.StatusInTransit || got.LastKnownAt == nil {
		t.Fatalf("order not updated: %+v", got)
	}
}

func TestStaleSampleIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 50, &clock)
	o := assignedOrder(t, st, base)

	if _, err := svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.62, Longitude: 77.19, CapturedAt: base}); err != nil {
		t.Fatalf("Report T: %v", err)
	}

	// A delayed duplicate with an older capture time arrives after the fact.
	res, err := svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.00, Longitude: 77.00, CapturedAt: base.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("stale sample must not error: %v", err)
	}
	if res.Accepted {
		t.Fatalf("stale sample must be dropped")
	}

	pos, err := svc.Current(ctx, viewer, o.ID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !pos.Known || pos.Latitude != 28.62 || !pos.CapturedAt.Equal(base) {
		t.Fatalf("stored position must be the newer sample: %+v", pos)
	}

	// Equal timestamps are also not strictly newer.
	res, err = svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.63, Longitude: 77.18, CapturedAt: base})
	if err != nil || res.Accepted {
		t.Fatalf("duplicate timestamp must be dropped: accepted=%v err=%v", res.Accepted, err)
	}
}

func TestLastKnownAtMonotonic(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 50, &clock)
	o := assignedOrder(t, st, base)

	stamps := []time.Duration{0, 30 * time.Second, 10 * time.Second, time.Minute, 45 * time.Second}
	for _, d := range stamps {
		svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.6, Longitude: 77.2, CapturedAt: base.Add(d)})
	}
	got, _ := st.GetOrder(ctx, o.ID)
	if !got.LastKnownAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("LastKnownAt must be the max accepted capture time, got %v", got.LastKnownAt)
	}
}

func TestTrailBounded(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 5, &clock)
	o := assignedOrder(t, st, base)

	for i := 0; i < 12; i++ {
		in := ReportInput{
			Latitude:   28.60 + float64(i)*0.01,
			Longitude:  77.20,
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := svc.Report(ctx, driver, o.ID, in); err != nil {
			t.Fatalf("Report %d: %v", i, err)
		}
	}
	geojson, count, err := svc.Trail(ctx, viewer, o.ID)
	if err != nil {
		t.Fatalf("Trail: %v", err)
	}
	if count != 5 {
		t.Fatalf("trail must keep the newest five samples, got %d", count)
	}
	if !strings.Contains(geojson, "LineString") {
		t.Fatalf("expected a GeoJSON LineString, got %s", geojson)
	}
	pings, err := st.RecentPings(ctx, o.ID, 0)
	if err != nil {
		t.Fatalf("RecentPings: %v", err)
	}
	if len(pings) != 5 {
		t.Fatalf("store must hold exactly the kept samples, got %d", len(pings))
	}
	// Oldest retained sample is number 8 of 12.
	if !pings[0].CapturedAt.Equal(base.Add(7 * time.Minute)) {
		t.Fatalf("trail retained the wrong samples, oldest at %v", pings[0].CapturedAt)
	}
}

func TestTrailTooShort(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 50, &clock)
	o := assignedOrder(t, st, base)

	if _, err := svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.6, Longitude: 77.2, CapturedAt: base}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	geojson, count, err := svc.Trail(ctx, viewer, o.ID)
	if err != nil {
		t.Fatalf("Trail: %v", err)
	}
	if geojson != "" || count != 1 {
		t.Fatalf("single sample yields an empty trail, got %q count=%d", geojson, count)
	}
}

func TestCurrentUnknownForFreshOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 50, &clock)
	o := assignedOrder(t, st, base)

	pos, err := svc.Current(ctx, viewer, o.ID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if pos.Known {
		t.Fatalf("fresh order must report no known position: %+v", pos)
	}
	if pos.Status != models.StatusAssigned {
		t.Fatalf("expected assigned, got %s", pos.Status)
	}
}

func TestCurrentReportsAge(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 50, &clock)
	o := assignedOrder(t, st, base)

	if _, err := svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.6, Longitude: 77.2, CapturedAt: base}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	clock = base.Add(90 * time.Second)
	pos, err := svc.Current(ctx, viewer, o.ID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if pos.AgeSeconds != 90 {
		t.Fatalf("expected age 90s, got %f", pos.AgeSeconds)
	}
}

func TestReportGuards(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	clock := base
	svc := newTestService(st, 50, &clock)
	o := assignedOrder(t, st, base)

	stranger := identity.Actor{UserID: 77, Role: identity.RoleDriver}
	if _, err := svc.Report(ctx, stranger, o.ID, ReportInput{Latitude: 28.6, Longitude: 77.2, CapturedAt: base}); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for an unassigned driver, got %v", err)
	}
	if _, err := svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 128.6, Longitude: 77.2, CapturedAt: base}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for a bad latitude, got %v", err)
	}
	if _, err := svc.Report(ctx, driver, o.ID, ReportInput{Latitude: 28.6, Longitude: 77.2}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for a zero capture time, got %v", err)
	}

	// Not trackable before assignment or after delivery.
	fresh := &models.Order{CompanyID: viewer.UserID, Status: models.StatusPending, Stops: []models.Stop{{StopIndex: 1, Address: "x"}}}
	if err := st.CreateOrder(ctx, fresh); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svc.Report(ctx, identity.Actor{UserID: 1, Role: identity.RoleAdmin}, fresh.ID, ReportInput{Latitude: 28.6, Longitude: 77.2, CapturedAt: base}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for a pending order, got %v", err)
	}
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is roughly 111.2km.
	d := HaversineMeters(28.0, 77.0, 29.0, 77.0)
	if math.Abs(d-111200) > 1000 {
		t.Fatalf("one degree of latitude: want ~111.2km, got %.0fm", d)
	}
	if HaversineMeters(28.6, 77.2, 28.6, 77.2) != 0 {
		t.Fatalf("distance to self must be zero")
	}
	b := BearingDegrees(28.0, 77.0, 29.0, 77.0)
	if math.Abs(b) > 0.5 && math.Abs(b-360) > 0.5 {
		t.Fatalf("due north bearing: want ~0, got %.2f", b)
	}
}
