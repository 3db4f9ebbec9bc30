package game

import (
	"context"
	"errors"
	"time"

	"leitstelle/api/internal/model"
)

// TickStats counts what one simulation tick did.
type TickStats struct {
	Arrivals  int
	Returns   int
	Completed int
	Failed    int
}

// Tick applies every arrival, return and completion that is due. Failures are
// logged per item and do not stop the tick.
func (s *Service) Tick(ctx context.Context) (TickStats, error) {
	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	var stats TickStats
	now := s.now()

	routes, err := s.store.ListDueRoutes(ctx, now)
	if err != nil {
		return stats, err
	}
	for _, r := range routes {
		switch r.Kind {
		case model.RouteKindToScene:
			res, err := s.ReportArrival(ctx, r.UserID, r.VehicleID)
			if err != nil {
				stats.Failed++
				s.log.Error().Err(err).Str("vehicle_id", r.VehicleID.String()).Msg("apply arrival")
				continue
			}
			if res.Applied {
				stats.Arrivals++
			}
		case model.RouteKindReturn:
			if _, err := s.ReturnToStation(ctx, r.UserID, r.VehicleID); err != nil {
				stats.Failed++
				s.log.Error().Err(err).Str("vehicle_id", r.VehicleID.String()).Msg("apply return")
				continue
			}
			stats.Returns++
		}
	}

	missions, err := s.store.ListDueMissions(ctx, now)
	if err != nil {
		return stats, err
	}
	for _, m := range missions {
		if _, err := s.CompleteMission(ctx, m.UserID, m.ID); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			stats.Failed++
			s.log.Error().Err(err).Str("mission_id", m.ID.String()).Msg("complete mission")
			continue
		}
		stats.Completed++
	}
	return stats, nil
}

// RunSimulation ticks until ctx is cancelled.
func (s *Service) RunSimulation(ctx context.Context) {
	interval := s.cfg.TickInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("simulation started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("simulation stopped")
			return
		case <-ticker.C:
			stats, err := s.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Error().Err(err).Msg("simulation tick")
				continue
			}
			if stats != (TickStats{}) {
				s.log.Debug().
					Int("arrivals", stats.Arrivals).
					Int("returns", stats.Returns).
					Int("completed", stats.Completed).
					Int("failed", stats.Failed).
					Msg("simulation tick")
			}
		}
	}
}

// GenerateForAll creates one mission for every player below the mission limit
// and returns how many were created.
func (s *Service) GenerateForAll(ctx context.Context) (int, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, p := range profiles {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		_, err := s.Generate(ctx, p.ID)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrMissionLimit), errors.Is(err, ErrNoOrigin):
		default:
			s.log.Warn().Err(err).Str("user_id", p.ID.String()).Msg("auto generate mission")
		}
	}
	return created, nil
}

// RunAutoGenerator calls GenerateForAll every GenerateInterval until ctx is cancelled.
func (s *Service) RunAutoGenerator(ctx context.Context) {
	interval := s.cfg.GenerateInterval
	if interval <= 0 {
		interval = 90 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("mission auto generator started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.GenerateForAll(ctx)
			if err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("auto generate missions")
			}
			if n > 0 {
				s.log.Debug().Int("created", n).Msg("missions auto generated")
			}
		}
	}
}
