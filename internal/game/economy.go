package game

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
)

const (
	MaxHQLevel      = 5
	MaxStationLevel = 5
	hqUpgradeCost   = 25_000
)

type stationLayout struct {
	slots            int32
	personnel        int32
	personnelPerSlot int32
}

var stationLayouts = map[model.StationType]stationLayout{
	model.StationTypeFire:   {slots: 2, personnel: 9, personnelPerSlot: 6},
	model.StationTypeRescue: {slots: 1, personnel: 4, personnelPerSlot: 2},
}

// HQUpgradeCost is the price of raising the headquarters from level.
func HQUpgradeCost(level int32) int64 {
	return hqUpgradeCost * int64(level)
}

// StationUpgradeCost is the price of raising a station from level.
func StationUpgradeCost(blueprintCost int64, level int32) int64 {
	return blueprintCost / 2 * int64(level)
}

// SellValue is the refund for a vehicle of the given type and condition.
func SellValue(cost int64, condition int32, ratio float64) int64 {
	return int64(float64(cost) * float64(condition) / 100 * ratio)
}

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Username *string
	HomeCity *string
	HomeLat  *float64
	HomeLon  *float64
}

// EnsureProfile returns the player's profile, creating it with the starting
// balance on first contact.
func (s *Service) EnsureProfile(ctx context.Context, userID uuid.UUID, username string) (model.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Profile{}, err
	}

	p, err = s.store.CreateProfile(ctx, model.Profile{
		ID:       userID,
		Username: username,
		Credits:  s.cfg.StartingCredits,
		HQLevel:  1,
	})
	if errors.Is(err, store.ErrConflict) {
		return s.store.GetProfile(ctx, userID)
	}
	if err != nil {
		return model.Profile{}, err
	}

	cs := newChangeSet(userID)
	cs.add(realtime.TableProfiles, realtime.ChangeInsert, p.ID, p.UpdatedAt.UnixNano(), p)
	s.publish(ctx, cs)
	s.log.Info().Str("user_id", userID.String()).Int64("credits", p.Credits).Msg("profile created")
	return p, nil
}

// UpdateProfile changes name and home city. A new home city without explicit
// coordinates is geocoded; when that fails the home coordinates are cleared.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (model.Profile, error) {
	if (upd.HomeLat == nil) != (upd.HomeLon == nil) {
		return model.Profile{}, fmt.Errorf("%w: home_lat and home_lon must be set together", ErrInvalidInput)
	}

	var lat, lon *float64
	if upd.HomeLat != nil {
		lat, lon = upd.HomeLat, upd.HomeLon
	} else if upd.HomeCity != nil && strings.TrimSpace(*upd.HomeCity) != "" && s.geocoder != nil {
		la, lo, err := s.geocoder.Search(ctx, *upd.HomeCity)
		if err != nil {
			s.log.Warn().Err(err).Str("home_city", *upd.HomeCity).Msg("home city lookup failed")
		} else {
			lat, lon = &la, &lo
		}
	}

	cs := newChangeSet(userID)
	var out model.Profile
	err := s.store.InTx(ctx, func(q store.Queries) error {
		p, err := q.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if upd.Username != nil {
			p.Username = strings.TrimSpace(*upd.Username)
		}
		if upd.HomeCity != nil {
			city := strings.TrimSpace(*upd.HomeCity)
			if city != p.HomeCity {
				p.HomeLat, p.HomeLon = nil, nil
			}
			p.HomeCity = city
		}
		if lat != nil {
			p.HomeLat, p.HomeLon = lat, lon
		}
		if out, err = q.UpdateProfile(ctx, p); err != nil {
			return err
		}
		cs.profile(out)
		return nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	s.publish(ctx, cs)
	return out, nil
}

// UpgradeHeadquarters raises the HQ level, which allows more parallel missions
// and unlocks archetypes.
func (s *Service) UpgradeHeadquarters(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	cs := newChangeSet(userID)
	var out model.Profile
	err := s.store.InTx(ctx, func(q store.Queries) error {
		p, err := q.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if p.HQLevel >= MaxHQLevel {
			return ErrMaxLevel
		}
		if _, err := q.AdjustCredits(ctx, userID, -HQUpgradeCost(p.HQLevel)); err != nil {
			return err
		}
		p.HQLevel++
		if out, err = q.UpdateProfile(ctx, p); err != nil {
			return err
		}
		cs.profile(out)
		return nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	s.publish(ctx, cs)
	s.log.Info().Str("user_id", userID.String()).Int32("hq_level", out.HQLevel).Msg("headquarters upgraded")
	return out, nil
}

// PurchaseStation buys a blueprint and builds a level 1 station on it.
func (s *Service) PurchaseStation(ctx context.Context, userID, blueprintID uuid.UUID) (model.Station, error) {
	cs := newChangeSet(userID)
	var out model.Station
	err := s.store.InTx(ctx, func(q store.Queries) error {
		bp, err := q.GetStationBlueprint(ctx, blueprintID)
		if err != nil {
			return err
		}
		layout, ok := stationLayouts[bp.Type]
		if !ok {
			return fmt.Errorf("%w: unknown station type %q", ErrInvalidInput, bp.Type)
		}
		out, err = q.CreateStation(ctx, model.Station{
			ID:                uuid.New(),
			UserID:            userID,
			BlueprintID:       bp.ID,
			Name:              bp.Name,
			Type:              bp.Type,
			Lat:               bp.Lat,
			Lon:               bp.Lon,
			Level:             1,
			VehicleSlots:      layout.slots,
			PersonnelCapacity: layout.personnel,
			Extensions:        map[string]any{},
		})
		if err != nil {
			return err
		}
		p, err := q.AdjustCredits(ctx, userID, -bp.Cost)
		if err != nil {
			return err
		}
		cs.station(realtime.ChangeInsert, out)
		cs.profile(p)
		return nil
	})
	if err != nil {
		return model.Station{}, err
	}
	s.publish(ctx, cs)
	s.log.Info().Str("user_id", userID.String()).Str("station", out.Name).Msg("station purchased")
	return out, nil
}

// UpgradeStation adds a vehicle slot and personnel to a station.
func (s *Service) UpgradeStation(ctx context.Context, userID, stationID uuid.UUID) (model.Station, error) {
	cs := newChangeSet(userID)
	var out model.Station
	err := s.store.InTx(ctx, func(q store.Queries) error {
		st, err := q.GetStation(ctx, userID, stationID)
		if err != nil {
			return err
		}
		if st.Level >= MaxStationLevel {
			return ErrMaxLevel
		}
		bp, err := q.GetStationBlueprint(ctx, st.BlueprintID)
		if err != nil {
			return err
		}
		p, err := q.AdjustCredits(ctx, userID, -StationUpgradeCost(bp.Cost, st.Level))
		if err != nil {
			return err
		}
		st.Level++
		st.VehicleSlots++
		st.PersonnelCapacity += stationLayouts[st.Type].personnelPerSlot
		if out, err = q.UpdateStation(ctx, st); err != nil {
			return err
		}
		cs.station(realtime.ChangeUpdate, out)
		cs.profile(p)
		return nil
	})
	if err != nil {
		return model.Station{}, err
	}
	s.publish(ctx, cs)
	return out, nil
}

// PurchaseVehicle buys a vehicle and parks it at a station with a free slot.
// An empty call sign is generated from the type and slot number.
func (s *Service) PurchaseVehicle(ctx context.Context, userID, stationID uuid.UUID, typeID, callSign string) (model.Vehicle, error) {
	cs := newChangeSet(userID)
	var out model.Vehicle
	err := s.store.InTx(ctx, func(q store.Queries) error {
		st, err := q.GetStation(ctx, userID, stationID)
		if err != nil {
			return err
		}
		vt, err := q.GetVehicleType(ctx, typeID)
		if err != nil {
			return err
		}
		if vt.StationType != st.Type {
			return fmt.Errorf("%w: %s needs a %s", ErrWrongStationType, vt.Name, vt.StationType)
		}
		used, err := q.CountStationVehicles(ctx, st.ID)
		if err != nil {
			return err
		}
		if used >= int(st.VehicleSlots) {
			return ErrNoFreeSlot
		}

		p, err := q.AdjustCredits(ctx, userID, -vt.Cost)
		if err != nil {
			return err
		}
		callSign = strings.TrimSpace(callSign)
		if callSign == "" {
			callSign = fmt.Sprintf("%s %s %d", st.Name, strings.ToUpper(vt.ID), used+1)
		}
		out, err = q.CreateVehicle(ctx, model.Vehicle{
			ID:        uuid.New(),
			UserID:    userID,
			StationID: st.ID,
			TypeID:    vt.ID,
			CallSign:  callSign,
			Status:    model.VehicleStatusAtStation,
			Lat:       st.Lat,
			Lon:       st.Lon,
			Condition: 100,
			Config:    vt.DefaultConfig(),
		})
		if err != nil {
			return err
		}
		cs.vehicle(realtime.ChangeInsert, out)
		cs.profile(p)
		return nil
	})
	if err != nil {
		return model.Vehicle{}, err
	}
	s.publish(ctx, cs)
	s.log.Info().Str("user_id", userID.String()).Str("call_sign", out.CallSign).Str("type", out.TypeID).Msg("vehicle purchased")
	return out, nil
}

// SellVehicle removes an idle vehicle and refunds part of its price.
func (s *Service) SellVehicle(ctx context.Context, userID, vehicleID uuid.UUID) (int64, error) {
	cs := newChangeSet(userID)
	var refund int64
	err := s.store.InTx(ctx, func(q store.Queries) error {
		v, err := q.GetVehicle(ctx, userID, vehicleID)
		if err != nil {
			return err
		}
		if v.Status != model.VehicleStatusAtStation || v.MissionID != nil {
			return fmt.Errorf("%w: %s is %s", ErrVehicleNotIdle, v.CallSign, v.Status.Label())
		}
		vt, err := q.GetVehicleType(ctx, v.TypeID)
		if err != nil {
			return err
		}
		refund = SellValue(vt.Cost, v.Condition, s.cfg.SellRatio)
		if err := q.DeleteVehicleRoute(ctx, v.ID); err != nil {
			return err
		}
		if err := q.DeleteVehicle(ctx, userID, v.ID); err != nil {
			return err
		}
		p, err := q.AdjustCredits(ctx, userID, refund)
		if err != nil {
			return err
		}
		cs.vehicle(realtime.ChangeDelete, v)
		cs.profile(p)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, cs)
	s.log.Info().Str("user_id", userID.String()).Str("vehicle_id", vehicleID.String()).Int64("refund", refund).Msg("vehicle sold")
	return refund, nil
}

// ConfigureVehicle changes configuration options. Keys not mentioned keep their value.
func (s *Service) ConfigureVehicle(ctx context.Context, userID, vehicleID uuid.UUID, settings map[string]string) (model.Vehicle, error) {
	cs := newChangeSet(userID)
	var out model.Vehicle
	err := s.store.InTx(ctx, func(q store.Queries) error {
		v, err := q.GetVehicle(ctx, userID, vehicleID)
		if err != nil {
			return err
		}
		vt, err := q.GetVehicleType(ctx, v.TypeID)
		if err != nil {
			return err
		}
		next := maps.Clone(v.Config)
		if next == nil {
			next = map[string]string{}
		}
		for _, key := range slices.Sorted(maps.Keys(settings)) {
			allowed, ok := vt.ConfigOptions[key]
			if !ok {
				return fmt.Errorf("%w: %s has no option %q", ErrInvalidConfig, vt.Name, key)
			}
			if !slices.Contains(allowed, settings[key]) {
				return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidConfig, settings[key], key)
			}
			next[key] = settings[key]
		}
		v.Config = next
		if out, err = q.UpdateVehicle(ctx, v); err != nil {
			return err
		}
		cs.vehicle(realtime.ChangeUpdate, out)
		return nil
	})
	if err != nil {
		return model.Vehicle{}, err
	}
	s.publish(ctx, cs)
	return out, nil
}
