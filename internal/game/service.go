// Package game implements the dispatch simulation: mission lifecycle,
// vehicle movement, economy and mission generation.
package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"leitstelle/api/internal/config"
	"leitstelle/api/internal/geocode"
	"leitstelle/api/internal/model"
	"leitstelle/api/internal/notify"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

//go:generate mockgen -destination=mocks/geocoder_mock.go -package=mocks leitstelle/api/internal/game Geocoder

// Geocoder resolves coordinates to addresses and place names to coordinates.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Place, error)
	Search(ctx context.Context, query string) (lat, lon float64, err error)
}

// Alerter queues push notifications for new missions.
type Alerter interface {
	Enqueue(alert notify.MissionAlert) bool
}

// Deps wires a Service. Geocoder and Alerter are optional.
type Deps struct {
	Store      store.Store
	Broker     realtime.Broker
	Geocoder   Geocoder
	Alerter    Alerter
	Archetypes *Archetypes
	Config     config.GameConfig
	Logger     zerolog.Logger
}

// Service owns every state-changing game operation.
type Service struct {
	store      store.Store
	broker     realtime.Broker
	geocoder   Geocoder
	alerter    Alerter
	archetypes *Archetypes
	cfg        config.GameConfig
	log        zerolog.Logger

	now func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand replaces the random source used by mission generation.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// NewService builds the service. Archetypes default to the embedded set.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	archetypes := deps.Archetypes
	if archetypes == nil {
		var err error
		archetypes, err = LoadArchetypes(deps.Config.ArchetypesFile)
		if err != nil {
			return nil, err
		}
	}
	s := &Service{
		store:      deps.Store,
		broker:     deps.Broker,
		geocoder:   deps.Geocoder,
		alerter:    deps.Alerter,
		archetypes: archetypes,
		cfg:        deps.Config,
		log:        deps.Logger.With().Str("component", "game").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Archetypes returns the loaded mission archetypes.
func (s *Service) Archetypes() []Archetype {
	return s.archetypes.All()
}

func (s *Service) float64() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

func (s *Service) intN(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

// changeSet collects row changes made inside a transaction so they can be
// published once it committed.
type changeSet struct {
	userID  uuid.UUID
	changes []realtime.Change
	err     error
}

func newChangeSet(userID uuid.UUID) *changeSet {
	return &changeSet{userID: userID}
}

func (cs *changeSet) add(table string, typ realtime.ChangeType, id uuid.UUID, version int64, record any) {
	if cs.err != nil {
		return
	}
	c, err := realtime.NewChange(table, typ, cs.userID, id.String(), version, record)
	if err != nil {
		cs.err = err
		return
	}
	cs.changes = append(cs.changes, c)
}

func (cs *changeSet) profile(p model.Profile) {
	cs.add(realtime.TableProfiles, realtime.ChangeUpdate, p.ID, p.UpdatedAt.UnixNano(), p)
}

func (cs *changeSet) vehicle(typ realtime.ChangeType, v model.Vehicle) {
	if typ == realtime.ChangeDelete {
		cs.add(realtime.TableVehicles, typ, v.ID, v.Version+1, nil)
		return
	}
	cs.add(realtime.TableVehicles, typ, v.ID, v.Version, v)
}

func (cs *changeSet) mission(typ realtime.ChangeType, m model.Mission) {
	cs.add(realtime.TableMissions, typ, m.ID, m.Version, m)
}

func (cs *changeSet) station(typ realtime.ChangeType, st model.Station) {
	cs.add(realtime.TableStations, typ, st.ID, st.UpdatedAt.UnixNano(), st)
}

// publish sends the collected changes. Delivery problems are logged, the
// write itself already succeeded.
func (s *Service) publish(ctx context.Context, cs *changeSet) {
	if s.broker == nil {
		return
	}
	if cs.err != nil {
		s.log.Error().Err(cs.err).Str("user_id", cs.userID.String()).Msg("encode changes")
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, c := range cs.changes {
		if err := s.broker.Publish(ctx, c); err != nil {
			s.log.Warn().Err(err).Str("table", c.Table).Str("id", c.ID).Msg("publish change")
		}
	}
}
