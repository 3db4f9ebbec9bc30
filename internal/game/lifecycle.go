package game

import (
	"fmt"
	"slices"

	"leitstelle/api/internal/model"
)

var missionTransitions = map[model.MissionStatus][]model.MissionStatus{
	model.MissionStatusNew:        {model.MissionStatusDispatched},
	model.MissionStatusDispatched: {model.MissionStatusOnScene, model.MissionStatusNew},
	model.MissionStatusOnScene:    {model.MissionStatusCompleted, model.MissionStatusDispatched, model.MissionStatusNew},
	model.MissionStatusCompleted:  nil,
}

// CanTransition reports whether a mission may move from one status to another.
func CanTransition(from, to model.MissionStatus) bool {
	return slices.Contains(missionTransitions[from], to)
}

// deriveStatus computes the non-terminal status implied by the vehicles still
// assigned to a mission.
func deriveStatus(assigned []model.Vehicle) model.MissionStatus {
	if len(assigned) == 0 {
		return model.MissionStatusNew
	}
	for _, v := range assigned {
		if v.Status == model.VehicleStatusOnScene {
			return model.MissionStatusOnScene
		}
	}
	return model.MissionStatusDispatched
}

// moveMission applies a status change. Leaving on_scene for anything but
// completed stops the processing timer.
func moveMission(m *model.Mission, to model.MissionStatus) error {
	if m.Status == to {
		return nil
	}
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}
	if to == model.MissionStatusNew || to == model.MissionStatusDispatched {
		m.ProcessingStartedAt = nil
	}
	m.Status = to
	return nil
}
