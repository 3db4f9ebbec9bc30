package model

// MissionStatus is the lifecycle stage of a mission.
type MissionStatus string

const (
	MissionStatusNew        MissionStatus = "new"
	MissionStatusDispatched MissionStatus = "dispatched"
	MissionStatusOnScene    MissionStatus = "on_scene"
	MissionStatusCompleted  MissionStatus = "completed"
)

// Valid reports whether s is a known mission status.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionStatusNew, MissionStatusDispatched, MissionStatusOnScene, MissionStatusCompleted:
		return true
	}
	return false
}

// VehicleStatus is the FMS radio status tag of a vehicle.
type VehicleStatus string

const (
	// VehicleStatusReturning is FMS 1: free on radio, driving back to the station.
	VehicleStatusReturning VehicleStatus = "status_1"
	// VehicleStatusAtStation is FMS 2: idle at the home station.
	VehicleStatusAtStation VehicleStatus = "status_2"
	// VehicleStatusEnRoute is FMS 3: mission accepted, driving to the scene.
	VehicleStatusEnRoute VehicleStatus = "status_3"
	// VehicleStatusOnScene is FMS 4: arrived at the scene.
	VehicleStatusOnScene VehicleStatus = "status_4"
)

// FMSCode returns the numeric radio code shown in the UI.
func (s VehicleStatus) FMSCode() int {
	switch s {
	case VehicleStatusReturning:
		return 1
	case VehicleStatusAtStation:
		return 2
	case VehicleStatusEnRoute:
		return 3
	case VehicleStatusOnScene:
		return 4
	}
	return 0
}

// Label is a human readable description of the status.
func (s VehicleStatus) Label() string {
	switch s {
	case VehicleStatusReturning:
		return "returning"
	case VehicleStatusAtStation:
		return "at station"
	case VehicleStatusEnRoute:
		return "en route"
	case VehicleStatusOnScene:
		return "on scene"
	}
	return "unknown"
}

// StationType distinguishes fire stations from rescue (EMS) stations.
type StationType string

const (
	StationTypeFire   StationType = "fire_station"
	StationTypeRescue StationType = "rescue_station"
)

// RouteKind tells whether a vehicle drives to a scene or back home.
type RouteKind string

const (
	RouteKindToScene RouteKind = "to_scene"
	RouteKindReturn  RouteKind = "return"
)
