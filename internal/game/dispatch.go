package game

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/routing"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
)

// DispatchResult is the mission and the vehicles touched by a dispatch or recall.
type DispatchResult struct {
	Mission  model.Mission
	Vehicles []model.Vehicle
}

// ArrivalResult describes the effect of an arrival report. Applied is false
// when the report was stale and nothing changed.
type ArrivalResult struct {
	Vehicle model.Vehicle
	Mission *model.Mission
	Applied bool
}

// Candidate is a vehicle that could be sent to a mission.
type Candidate struct {
	Vehicle        model.Vehicle
	TypeName       string
	DistanceMeters float64
	ETASeconds     float64
	Covers         []string
}

// RouteView is the leg a vehicle is driving and where it is on it right now.
type RouteView struct {
	Route    model.VehicleRoute
	Progress float64
	Position routing.Point
}

// Dispatch sends vehicles to a mission. Vehicles already assigned to the
// mission are skipped, so repeating a dispatch is harmless.
func (s *Service) Dispatch(ctx context.Context, userID, missionID uuid.UUID, vehicleIDs []uuid.UUID) (DispatchResult, error) {
	ids := sortedIDs(vehicleIDs)
	if len(ids) == 0 {
		m, err := s.store.GetMission(ctx, userID, missionID)
		if err != nil {
			return DispatchResult{}, err
		}
		return DispatchResult{Mission: m}, nil
	}

	cs := newChangeSet(userID)
	var res DispatchResult
	var distances []float64
	err := s.store.InTx(ctx, func(q store.Queries) error {
		m, err := q.GetMission(ctx, userID, missionID)
		if err != nil {
			return err
		}
		if m.Status == model.MissionStatusCompleted {
			return fmt.Errorf("%w: mission already completed", ErrInvalidTransition)
		}

		now := s.now()
		types := newTypeCache(q)
		target := routing.Point{Lat: m.Lat, Lon: m.Lon}
		for _, id := range ids {
			v, err := q.GetVehicle(ctx, userID, id)
			if err != nil {
				return err
			}
			if v.MissionID != nil && *v.MissionID == m.ID {
				continue
			}
			if !v.Dispatchable() {
				return fmt.Errorf("%w: %s is %s", ErrVehicleBusy, v.CallSign, v.Status.Label())
			}
			vt, err := types.get(ctx, v.TypeID)
			if err != nil {
				return err
			}

			from, travelledKM, err := vehiclePosition(ctx, q, v, now)
			if err != nil {
				return err
			}
			route, err := startRoute(ctx, q, v, vt, model.RouteKindToScene, from, target, &m.ID, now)
			if err != nil {
				return err
			}

			mid := m.ID
			v.Status = model.VehicleStatusEnRoute
			v.MissionID = &mid
			v.Lat, v.Lon = from.Lat, from.Lon
			v.OdometerKM += travelledKM
			if v, err = q.UpdateVehicle(ctx, v); err != nil {
				return err
			}
			cs.vehicle(realtime.ChangeUpdate, v)
			res.Vehicles = append(res.Vehicles, v)
			distances = append(distances, route.LengthMeters)

			if !m.HasVehicle(v.ID) {
				m.AssignedVehicleIDs = append(m.AssignedVehicleIDs, v.ID)
			}
		}

		if len(res.Vehicles) == 0 {
			res.Mission = m
			return nil
		}
		if m.Status == model.MissionStatusNew {
			if err := moveMission(&m, model.MissionStatusDispatched); err != nil {
				return err
			}
		}
		if m, err = q.UpdateMission(ctx, m); err != nil {
			return err
		}
		cs.mission(realtime.ChangeUpdate, m)
		res.Mission = m
		return nil
	})
	if err != nil {
		return DispatchResult{}, err
	}

	s.publish(ctx, cs)
	for _, d := range distances {
		dispatchDistance.Observe(d)
	}
	vehicleMovements.WithLabelValues("dispatch").Add(float64(len(res.Vehicles)))
	s.log.Info().
		Str("user_id", userID.String()).
		Str("mission_id", missionID.String()).
		Int("vehicles", len(res.Vehicles)).
		Str("status", string(res.Mission.Status)).
		Msg("vehicles dispatched")
	return res, nil
}

// Recall sends assigned vehicles back to their stations. An empty list recalls
// every assigned vehicle. The mission status is re-derived from the vehicles
// that stay assigned.
func (s *Service) Recall(ctx context.Context, userID, missionID uuid.UUID, vehicleIDs []uuid.UUID) (DispatchResult, error) {
	want := sortedIDs(vehicleIDs)
	recallAll := len(want) == 0

	cs := newChangeSet(userID)
	var res DispatchResult
	err := s.store.InTx(ctx, func(q store.Queries) error {
		m, err := q.GetMission(ctx, userID, missionID)
		if err != nil {
			return err
		}
		if m.Status == model.MissionStatusCompleted {
			return fmt.Errorf("%w: mission already completed", ErrInvalidTransition)
		}

		now := s.now()
		types := newTypeCache(q)
		keep := map[uuid.UUID]bool{}
		var remaining []model.Vehicle
		for _, id := range sortedIDs(m.AssignedVehicleIDs) {
			v, err := q.GetVehicle(ctx, userID, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if v.MissionID == nil || *v.MissionID != m.ID {
				continue
			}
			if !recallAll && !slices.Contains(want, id) {
				keep[id] = true
				remaining = append(remaining, v)
				continue
			}
			if v, err = sendHome(ctx, q, types, v, now); err != nil {
				return err
			}
			cs.vehicle(realtime.ChangeUpdate, v)
			res.Vehicles = append(res.Vehicles, v)
		}

		assigned := make([]uuid.UUID, 0, len(keep))
		for _, id := range m.AssignedVehicleIDs {
			if keep[id] {
				assigned = append(assigned, id)
			}
		}
		if len(res.Vehicles) == 0 && len(assigned) == len(m.AssignedVehicleIDs) {
			res.Mission = m
			return nil
		}
		m.AssignedVehicleIDs = assigned
		if err := moveMission(&m, deriveStatus(remaining)); err != nil {
			return err
		}
		if m, err = q.UpdateMission(ctx, m); err != nil {
			return err
		}
		cs.mission(realtime.ChangeUpdate, m)
		res.Mission = m
		return nil
	})
	if err != nil {
		return DispatchResult{}, err
	}

	s.publish(ctx, cs)
	vehicleMovements.WithLabelValues("recall").Add(float64(len(res.Vehicles)))
	s.log.Info().
		Str("user_id", userID.String()).
		Str("mission_id", missionID.String()).
		Int("vehicles", len(res.Vehicles)).
		Str("status", string(res.Mission.Status)).
		Msg("vehicles recalled")
	return res, nil
}

// ReportArrival marks an en-route vehicle as on scene. The first arrival
// starts the mission's processing timer. Reports for vehicles that are no
// longer driving to a mission are ignored.
func (s *Service) ReportArrival(ctx context.Context, userID, vehicleID uuid.UUID) (ArrivalResult, error) {
	// Peek without locking to learn the mission, so the transaction can lock
	// the mission before the vehicle.
	peek, err := s.store.GetVehicle(ctx, userID, vehicleID)
	if err != nil {
		return ArrivalResult{}, err
	}
	if peek.Status != model.VehicleStatusEnRoute || peek.MissionID == nil {
		err := s.store.InTx(ctx, func(q store.Queries) error {
			v, err := q.GetVehicle(ctx, userID, vehicleID)
			if err != nil {
				return err
			}
			if v.Status == model.VehicleStatusEnRoute {
				return nil
			}
			return dropStaleRoute(ctx, q, vehicleID, model.RouteKindToScene)
		})
		return ArrivalResult{Vehicle: peek}, err
	}
	missionID := *peek.MissionID

	cs := newChangeSet(userID)
	res := ArrivalResult{Vehicle: peek}
	err = s.store.InTx(ctx, func(q store.Queries) error {
		m, err := q.GetMission(ctx, userID, missionID)
		if err != nil {
			return err
		}
		v, err := q.GetVehicle(ctx, userID, vehicleID)
		if err != nil {
			return err
		}
		res.Vehicle = v
		if v.Status != model.VehicleStatusEnRoute {
			return dropStaleRoute(ctx, q, vehicleID, model.RouteKindToScene)
		}
		if v.MissionID == nil || *v.MissionID != m.ID || m.Status == model.MissionStatusCompleted {
			return nil
		}

		now := s.now()
		scene := routing.Point{Lat: m.Lat, Lon: m.Lon}
		lengthMeters := 0.0
		route, err := q.GetVehicleRoute(ctx, v.ID)
		switch {
		case err == nil:
			lengthMeters = route.LengthMeters
		case errors.Is(err, store.ErrNotFound):
			lengthMeters = routing.EstimateTrip(routing.Point{Lat: v.Lat, Lon: v.Lon}, scene, 0).DistanceMeters
		default:
			return err
		}
		if err := q.DeleteVehicleRoute(ctx, v.ID); err != nil {
			return err
		}

		v.Status = model.VehicleStatusOnScene
		v.Lat, v.Lon = scene.Lat, scene.Lon
		v.OdometerKM += lengthMeters / 1000
		if v, err = q.UpdateVehicle(ctx, v); err != nil {
			return err
		}
		cs.vehicle(realtime.ChangeUpdate, v)
		res.Vehicle = v
		res.Applied = true

		if m.Status == model.MissionStatusDispatched {
			if err := moveMission(&m, model.MissionStatusOnScene); err != nil {
				return err
			}
			started := now
			m.ProcessingStartedAt = &started
			if m, err = q.UpdateMission(ctx, m); err != nil {
				return err
			}
			cs.mission(realtime.ChangeUpdate, m)
		}
		res.Mission = &m
		return nil
	})
	if err != nil {
		return ArrivalResult{}, err
	}

	if res.Applied {
		s.publish(ctx, cs)
		vehicleMovements.WithLabelValues("arrival").Inc()
		s.log.Debug().Str("vehicle_id", vehicleID.String()).Str("mission_id", missionID.String()).Msg("vehicle on scene")
	}
	return res, nil
}

// CompleteMission finishes an on-scene mission whose processing time ran out,
// pays the reward and sends every assigned vehicle home.
func (s *Service) CompleteMission(ctx context.Context, userID, missionID uuid.UUID) (model.Mission, error) {
	cs := newChangeSet(userID)
	var done model.Mission
	err := s.store.InTx(ctx, func(q store.Queries) error {
		m, err := q.GetMission(ctx, userID, missionID)
		if err != nil {
			return err
		}
		if m.Status != model.MissionStatusOnScene {
			return fmt.Errorf("%w: mission is %s", ErrInvalidTransition, m.Status)
		}
		now := s.now()
		deadline, ok := m.ProcessingDeadline()
		if !ok || deadline.After(now) {
			return fmt.Errorf("%w: processing not finished", ErrInvalidTransition)
		}

		types := newTypeCache(q)
		for _, id := range sortedIDs(m.AssignedVehicleIDs) {
			v, err := q.GetVehicle(ctx, userID, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if v.MissionID == nil || *v.MissionID != m.ID {
				continue
			}
			if v, err = sendHome(ctx, q, types, v, now); err != nil {
				return err
			}
			cs.vehicle(realtime.ChangeUpdate, v)
		}

		if err := moveMission(&m, model.MissionStatusCompleted); err != nil {
			return err
		}
		completedAt := now
		m.CompletedAt = &completedAt
		m.AssignedVehicleIDs = []uuid.UUID{}
		if m, err = q.UpdateMission(ctx, m); err != nil {
			return err
		}
		cs.mission(realtime.ChangeUpdate, m)

		p, err := q.AdjustCredits(ctx, userID, m.Payout)
		if err != nil {
			return err
		}
		cs.profile(p)
		done = m
		return nil
	})
	if err != nil {
		return model.Mission{}, err
	}

	s.publish(ctx, cs)
	missionsCompleted.Inc()
	creditsPaid.Add(float64(done.Payout))
	s.log.Info().
		Str("user_id", userID.String()).
		Str("mission_id", missionID.String()).
		Int64("payout", done.Payout).
		Msg("mission completed")
	return done, nil
}

// ReturnToStation parks a returning vehicle whose route has elapsed at its station.
func (s *Service) ReturnToStation(ctx context.Context, userID, vehicleID uuid.UUID) (model.Vehicle, error) {
	cs := newChangeSet(userID)
	var parked model.Vehicle
	applied := false
	err := s.store.InTx(ctx, func(q store.Queries) error {
		v, err := q.GetVehicle(ctx, userID, vehicleID)
		if err != nil {
			return err
		}
		parked = v
		if v.Status != model.VehicleStatusReturning {
			return dropStaleRoute(ctx, q, vehicleID, model.RouteKindReturn)
		}

		st, err := q.GetStation(ctx, userID, v.StationID)
		if err != nil {
			return err
		}
		home := routing.Point{Lat: st.Lat, Lon: st.Lon}
		lengthMeters := 0.0
		route, err := q.GetVehicleRoute(ctx, v.ID)
		switch {
		case err == nil:
			if route.ArrivesAt().After(s.now()) {
				return fmt.Errorf("%w: vehicle still driving", ErrInvalidTransition)
			}
			lengthMeters = route.LengthMeters
		case errors.Is(err, store.ErrNotFound):
			lengthMeters = routing.EstimateTrip(routing.Point{Lat: v.Lat, Lon: v.Lon}, home, 0).DistanceMeters
		default:
			return err
		}
		if err := q.DeleteVehicleRoute(ctx, v.ID); err != nil {
			return err
		}

		v.Status = model.VehicleStatusAtStation
		v.Lat, v.Lon = home.Lat, home.Lon
		v.OdometerKM += lengthMeters / 1000
		if v.Condition > 0 {
			v.Condition--
		}
		if v, err = q.UpdateVehicle(ctx, v); err != nil {
			return err
		}
		cs.vehicle(realtime.ChangeUpdate, v)
		parked = v
		applied = true
		return nil
	})
	if err != nil {
		return model.Vehicle{}, err
	}
	if applied {
		s.publish(ctx, cs)
		vehicleMovements.WithLabelValues("return").Inc()
	}
	return parked, nil
}

// Candidates lists the vehicles that could be dispatched to a mission, fastest first.
func (s *Service) Candidates(ctx context.Context, userID, missionID uuid.UUID) ([]Candidate, error) {
	m, err := s.store.GetMission(ctx, userID, missionID)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.store.ListVehicles(ctx, userID)
	if err != nil {
		return nil, err
	}
	types := newTypeCache(s.store)
	now := s.now()
	target := routing.Point{Lat: m.Lat, Lon: m.Lon}

	out := make([]Candidate, 0, len(vehicles))
	for _, v := range vehicles {
		if !v.Dispatchable() {
			continue
		}
		vt, err := types.get(ctx, v.TypeID)
		if err != nil {
			return nil, err
		}
		from, _, err := vehiclePosition(ctx, s.store, v, now)
		if err != nil {
			return nil, err
		}
		est := routing.EstimateTrip(from, target, vt.SpeedKMH)
		covers := make([]string, 0)
		for _, capability := range m.RequiredCapabilities {
			if vt.Capabilities[capability] > 0 {
				covers = append(covers, capability)
			}
		}
		out = append(out, Candidate{
			Vehicle:        v,
			TypeName:       vt.Name,
			DistanceMeters: est.DistanceMeters,
			ETASeconds:     est.DurationSeconds,
			Covers:         covers,
		})
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		return cmp.Or(cmp.Compare(a.ETASeconds, b.ETASeconds), cmp.Compare(a.Vehicle.CallSign, b.Vehicle.CallSign))
	})
	return out, nil
}

// VehicleRoute returns the active route of a vehicle.
func (s *Service) VehicleRoute(ctx context.Context, userID, vehicleID uuid.UUID) (RouteView, error) {
	if _, err := s.store.GetVehicle(ctx, userID, vehicleID); err != nil {
		return RouteView{}, err
	}
	r, err := s.store.GetVehicleRoute(ctx, vehicleID)
	if err != nil {
		return RouteView{}, err
	}
	progress := r.Progress(s.now())
	plan := routing.Plan(routing.Point{Lat: r.FromLat, Lon: r.FromLon}, routing.Point{Lat: r.ToLat, Lon: r.ToLon}, 0)
	return RouteView{Route: r, Progress: progress, Position: plan.PositionAt(progress)}, nil
}

// vehiclePosition returns where a vehicle is now and how far it travelled on
// its current route. Parked vehicles report their stored coordinates.
func vehiclePosition(ctx context.Context, q store.Queries, v model.Vehicle, now time.Time) (routing.Point, float64, error) {
	here := routing.Point{Lat: v.Lat, Lon: v.Lon}
	if v.Status != model.VehicleStatusEnRoute && v.Status != model.VehicleStatusReturning {
		return here, 0, nil
	}
	r, err := q.GetVehicleRoute(ctx, v.ID)
	if errors.Is(err, store.ErrNotFound) {
		return here, 0, nil
	}
	if err != nil {
		return routing.Point{}, 0, err
	}
	progress := r.Progress(now)
	plan := routing.Plan(routing.Point{Lat: r.FromLat, Lon: r.FromLon}, routing.Point{Lat: r.ToLat, Lon: r.ToLon}, 0)
	return plan.PositionAt(progress), r.LengthMeters * progress / 1000, nil
}

// sendHome puts a vehicle on a return route to its station and releases it from its mission.
func sendHome(ctx context.Context, q store.Queries, types *typeCache, v model.Vehicle, now time.Time) (model.Vehicle, error) {
	vt, err := types.get(ctx, v.TypeID)
	if err != nil {
		return model.Vehicle{}, err
	}
	st, err := q.GetStation(ctx, v.UserID, v.StationID)
	if err != nil {
		return model.Vehicle{}, err
	}
	from, travelledKM, err := vehiclePosition(ctx, q, v, now)
	if err != nil {
		return model.Vehicle{}, err
	}
	if _, err := startRoute(ctx, q, v, vt, model.RouteKindReturn, from, routing.Point{Lat: st.Lat, Lon: st.Lon}, nil, now); err != nil {
		return model.Vehicle{}, err
	}
	v.Status = model.VehicleStatusReturning
	v.MissionID = nil
	v.Lat, v.Lon = from.Lat, from.Lon
	v.OdometerKM += travelledKM
	return q.UpdateVehicle(ctx, v)
}

func startRoute(ctx context.Context, q store.Queries, v model.Vehicle, vt model.VehicleType, kind model.RouteKind, from, to routing.Point, missionID *uuid.UUID, now time.Time) (model.VehicleRoute, error) {
	plan := routing.Plan(from, to, vt.SpeedKMH)
	geo, err := plan.GeoJSON()
	if err != nil {
		return model.VehicleRoute{}, fmt.Errorf("encode route: %w", err)
	}
	r := model.VehicleRoute{
		VehicleID:       v.ID,
		UserID:          v.UserID,
		Kind:            kind,
		FromLat:         from.Lat,
		FromLon:         from.Lon,
		ToLat:           to.Lat,
		ToLon:           to.Lon,
		LengthMeters:    plan.DistanceMeters,
		DurationSeconds: plan.DurationSeconds,
		GeoJSON:         geo,
		StartedAt:       now,
	}
	if missionID != nil {
		id := *missionID
		r.MissionID = &id
	}
	if err := q.SaveVehicleRoute(ctx, r); err != nil {
		return model.VehicleRoute{}, err
	}
	return r, nil
}

func dropStaleRoute(ctx context.Context, q store.Queries, vehicleID uuid.UUID, kind model.RouteKind) error {
	r, err := q.GetVehicleRoute(ctx, vehicleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if r.Kind != kind {
		return nil
	}
	return q.DeleteVehicleRoute(ctx, vehicleID)
}

// sortedIDs returns the ids deduplicated in lock order.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return slices.Compact(out)
}

type typeCache struct {
	q    store.Queries
	byID map[string]model.VehicleType
}

func newTypeCache(q store.Queries) *typeCache {
	return &typeCache{q: q, byID: map[string]model.VehicleType{}}
}

func (c *typeCache) get(ctx context.Context, id string) (model.VehicleType, error) {
	if vt, ok := c.byID[id]; ok {
		return vt, nil
	}
	vt, err := c.q.GetVehicleType(ctx, id)
	if err != nil {
		return model.VehicleType{}, err
	}
	c.byID[id] = vt
	return vt, nil
}
