package game

import (
	"context"
	"fmt"
	"math"
	"slices"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/notify"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/routing"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
)

// MissionLimit is the number of unfinished missions a player may have at once.
func (s *Service) MissionLimit(hqLevel int32) int {
	return s.cfg.MaxActiveMissions + int(hqLevel) - 1
}

// Generate creates a new mission near the player's home city, or near one of
// their stations when no home is set.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID) (model.Mission, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return model.Mission{}, err
	}
	limit := s.MissionLimit(p.HQLevel)
	active, err := s.store.CountActiveMissions(ctx, userID)
	if err != nil {
		return model.Mission{}, err
	}
	if active >= limit {
		return model.Mission{}, ErrMissionLimit
	}

	origin, err := s.missionOrigin(ctx, p)
	if err != nil {
		return model.Mission{}, err
	}
	arch, ok := pickWeighted(s.archetypes.Allowed(p.HQLevel), s.float64())
	if !ok {
		return model.Mission{}, fmt.Errorf("%w: no archetype unlocked at hq level %d", ErrInvalidInput, p.HQLevel)
	}
	at, address := s.placeMission(ctx, origin)

	m := model.Mission{
		ID:                   uuid.New(),
		UserID:               userID,
		Archetype:            arch.Code,
		Title:                arch.Title,
		Description:          arch.Description,
		Lat:                  at.Lat,
		Lon:                  at.Lon,
		Address:              address,
		CallerName:           s.pickString(s.archetypes.callers, "Unbekannter Anrufer"),
		CallerText:           s.pickString(arch.CallerTexts, arch.Description),
		Payout:               arch.PayoutMin + int64(s.intN(int(arch.PayoutMax-arch.PayoutMin)+1)),
		Status:               model.MissionStatusNew,
		AssignedVehicleIDs:   []uuid.UUID{},
		RequiredCapabilities: slices.Clone(arch.RequiredCapabilities),
		ProcessingSeconds:    arch.ProcessingSeconds,
	}

	err = s.store.InTx(ctx, func(q store.Queries) error {
		// The profile row serialises concurrent generation for one player.
		if _, err := q.GetProfile(ctx, userID); err != nil {
			return err
		}
		n, err := q.CountActiveMissions(ctx, userID)
		if err != nil {
			return err
		}
		if n >= limit {
			return ErrMissionLimit
		}
		m, err = q.CreateMission(ctx, m)
		return err
	})
	if err != nil {
		return model.Mission{}, err
	}

	cs := newChangeSet(userID)
	cs.mission(realtime.ChangeInsert, m)
	s.publish(ctx, cs)
	if s.alerter != nil {
		s.alerter.Enqueue(notify.MissionAlert{
			UserID:    userID,
			MissionID: m.ID,
			Title:     m.Title,
			Address:   m.Address,
			Payout:    m.Payout,
		})
	}
	missionsGenerated.WithLabelValues(m.Archetype).Inc()
	s.log.Info().
		Str("user_id", userID.String()).
		Str("mission_id", m.ID.String()).
		Str("archetype", m.Archetype).
		Str("address", m.Address).
		Msg("mission generated")
	return m, nil
}

func (s *Service) missionOrigin(ctx context.Context, p model.Profile) (routing.Point, error) {
	if p.HasHome() {
		return routing.Point{Lat: *p.HomeLat, Lon: *p.HomeLon}, nil
	}
	stations, err := s.store.ListStations(ctx, p.ID)
	if err != nil {
		return routing.Point{}, err
	}
	if len(stations) == 0 {
		return routing.Point{}, ErrNoOrigin
	}
	st := stations[s.intN(len(stations))]
	return routing.Point{Lat: st.Lat, Lon: st.Lon}, nil
}

// placeMission draws random locations around origin until one is on land.
// Without a geocoder, or when it fails, the coordinates become the address.
// If every draw lands on water the mission is placed at origin.
func (s *Service) placeMission(ctx context.Context, origin routing.Point) (routing.Point, string) {
	attempts := max(s.cfg.LocationAttempts, 1)
	for i := 0; i < attempts; i++ {
		at := s.randomPoint(origin, s.cfg.MissionRadiusKM*1000)
		if s.geocoder == nil {
			return at, coordinateAddress(at)
		}
		place, err := s.geocoder.Reverse(ctx, at.Lat, at.Lon)
		if err != nil {
			s.log.Warn().Err(err).Float64("lat", at.Lat).Float64("lon", at.Lon).Msg("reverse geocoding failed")
			return at, coordinateAddress(at)
		}
		if place.Water || place.Address == "" {
			s.log.Debug().Int("attempt", i+1).Float64("lat", at.Lat).Float64("lon", at.Lon).Msg("mission location rejected")
			continue
		}
		return at, place.Address
	}
	s.log.Warn().Int("attempts", attempts).Msg("no land location found, using origin")
	return origin, coordinateAddress(origin)
}

// randomPoint returns a point uniformly distributed within radius metres of origin.
func (s *Service) randomPoint(origin routing.Point, radius float64) routing.Point {
	r := radius * math.Sqrt(s.float64())
	theta := 2 * math.Pi * s.float64()
	return routing.Offset(origin, r*math.Cos(theta), r*math.Sin(theta))
}

func (s *Service) pickString(options []string, fallback string) string {
	if len(options) == 0 {
		return fallback
	}
	return options[s.intN(len(options))]
}

func coordinateAddress(p routing.Point) string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lon)
}
