package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	geojson "github.com/twpayne/go-geom/encoding/geojson"

	"freight_link/internal/identity"
	"freight_link/internal/models"
	"freight_link/internal/store"
)

// Service is the location tracker: it owns the staleness/ordering guard for
// incoming samples and serves current-position reads to any number of
// pollers.
type Service struct {
	store     store.Store
	trailKeep int

	now func() time.Time
}

func NewService(st store.Store, trailKeep int) *Service {
	if trailKeep <= 0 {
		trailKeep = 50
	}
	return &Service{store: st, trailKeep: trailKeep, now: time.Now}
}

// ReportInput is one GPS sample from the driver's device.
type ReportInput struct {
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
	Speed      float64
	Bearing    float64
}

// ReportResult tells the driver client what happened to its sample.
type ReportResult struct {
	Accepted bool
	// DistanceFromLast is meters moved since the previous accepted sample.
	DistanceFromLast float64
	// NextStopDistance is meters to the next incomplete stop, -1 when the
	// route is finished.
	NextStopDistance float64
	Status           models.OrderStatus
}

// Report applies one sample. Samples not strictly newer than the stored
// position are dropped without error: duplicates and reordering are normal
// network behavior for a moving device, and surfacing them would only cause
// retry storms. The first accepted sample on an assigned order flips it to
// in_transit.
func (s *Service) Report(ctx context.Context, actor identity.Actor, orderID uint, in ReportInput) (*ReportResult, error) {
	if err := validateCoordinate(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	if in.CapturedAt.IsZero() {
		return nil, fmt.Errorf("%w: captured_at required", models.ErrValidation)
	}
	res := &ReportResult{NextStopDistance: -1}
	err := s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		if !actor.CanDrive(o) {
			return models.ErrForbidden
		}
		switch o.Status {
		case models.StatusAssigned, models.StatusInTransit:
		default:
			return fmt.Errorf("%w: order is %s, not trackable", models.ErrInvalidTransition, o.Status)
		}
		res.Status = o.Status
		if o.LastKnownAt != nil && !in.CapturedAt.After(*o.LastKnownAt) {
			// Stale or duplicate delivery; keep the stored sample.
			logrus.WithFields(logrus.Fields{
				"order_id":    o.ID,
				"captured_at": in.CapturedAt,
				"stored_at":   *o.LastKnownAt,
			}).Debug("Dropped stale location sample.")
			return nil
		}

		distance := 0.0
		bearing := in.Bearing
		if o.LastKnownAt != nil {
			distance = HaversineMeters(o.LastKnownLatitude, o.LastKnownLongitude, in.Latitude, in.Longitude)
			if bearing == 0 {
				bearing = BearingDegrees(o.LastKnownLatitude, o.LastKnownLongitude, in.Latitude, in.Longitude)
			}
		}

		if err := tx.AddPing(&models.LocationPing{
			DriverID:         o.AssignedDriverID,
			Latitude:         in.Latitude,
			Longitude:        in.Longitude,
			Speed:            in.Speed,
			Bearing:          bearing,
			DistanceFromLast: distance,
			CapturedAt:       in.CapturedAt,
		}); err != nil {
			return err
		}
		if err := tx.TrimPings(s.trailKeep); err != nil {
			return err
		}

		captured := in.CapturedAt
		o.LastKnownLatitude = in.Latitude
		o.LastKnownLongitude = in.Longitude
		o.LastKnownAt = &captured
		if err := o.BeginTransit(s.now()); err != nil {
			return err
		}
		if err := tx.SaveOrder(o); err != nil {
			return err
		}

		res.Accepted = true
		res.DistanceFromLast = distance
		res.Status = o.Status
		if next := o.NextStop(); next != nil {
			res.NextStopDistance = HaversineMeters(in.Latitude, in.Longitude, next.Latitude, next.Longitude)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Position is the answer to a current-position poll. Known=false is the
// legitimate state of a freshly assigned order, distinct from any error.
type Position struct {
	Known      bool               `json:"known"`
	Latitude   float64            `json:"latitude,omitempty"`
	Longitude  float64            `json:"longitude,omitempty"`
	CapturedAt *time.Time         `json:"captured_at,omitempty"`
	AgeSeconds float64            `json:"age_seconds,omitempty"`
	Status     models.OrderStatus `json:"order_status"`
}

// Current returns the latest accepted sample with its age, letting the
// consumer apply its own staleness policy.
func (s *Service) Current(ctx context.Context, actor identity.Actor, orderID uint) (*Position, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(o) {
		return nil, models.ErrForbidden
	}
	p := &Position{Status: o.Status}
	if o.LastKnownAt == nil {
		return p, nil
	}
	captured := *o.LastKnownAt
	p.Known = true
	p.Latitude = o.LastKnownLatitude
	p.Longitude = o.LastKnownLongitude
	p.CapturedAt = &captured
	p.AgeSeconds = s.now().Sub(captured).Seconds()
	return p, nil
}

// Trail renders the retained ping history as a GeoJSON LineString for map
// display. Fewer than two samples yields an empty trail, not an error.
func (s *Service) Trail(ctx context.Context, actor identity.Actor, orderID uint) (string, int, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", 0, err
	}
	if !actor.CanView(o) {
		return "", 0, models.ErrForbidden
	}
	pings, err := s.store.RecentPings(ctx, orderID, s.trailKeep)
	if err != nil {
		return "", 0, err
	}
	if len(pings) < 2 {
		return "", len(pings), nil
	}
	coords := make([]geom.Coord, 0, len(pings))
	for _, p := range pings {
		coords = append(coords, geom.Coord{p.Longitude, p.Latitude})
	}
	line := geom.NewLineString(geom.XY)
	if _, err := line.SetCoords(coords); err != nil {
		return "", 0, fmt.Errorf("build trail geometry: %w", err)
	}
	raw, err := geojson.Marshal(line)
	if err != nil {
		return "", 0, fmt.Errorf("encode trail geojson: %w", err)
	}
	return string(raw), len(pings), nil
}

func validateCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: coordinate out of range", models.ErrValidation)
	}
	return nil
}
