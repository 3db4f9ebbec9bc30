package memory

import (
	"leitstelle/api/internal/model"

	"github.com/google/uuid"
)

// DefaultBlueprints mirrors the station catalog seeded by migrations/0002_seed_catalog.sql.
func DefaultBlueprints() []model.StationBlueprint {
	return []model.StationBlueprint{
		{ID: uuid.MustParse("00000000-0000-4000-8000-000000000101"), Name: "Feuer- und Rettungswache Altona", City: "Hamburg", Type: model.StationTypeFire, Lat: 53.5503, Lon: 9.9355, Cost: 50000},
		{ID: uuid.MustParse("00000000-0000-4000-8000-000000000102"), Name: "Feuer- und Rettungswache Berliner Tor", City: "Hamburg", Type: model.StationTypeFire, Lat: 53.5537, Lon: 10.0274, Cost: 60000},
		{ID: uuid.MustParse("00000000-0000-4000-8000-000000000103"), Name: "Rettungswache Eppendorf", City: "Hamburg", Type: model.StationTypeRescue, Lat: 53.5907, Lon: 9.9838, Cost: 30000},
		{ID: uuid.MustParse("00000000-0000-4000-8000-000000000104"), Name: "Feuerwache Mitte", City: "Berlin", Type: model.StationTypeFire, Lat: 52.5265, Lon: 13.3866, Cost: 55000},
		{ID: uuid.MustParse("00000000-0000-4000-8000-000000000105"), Name: "Rettungswache Kreuzberg", City: "Berlin", Type: model.StationTypeRescue, Lat: 52.4986, Lon: 13.4034, Cost: 30000},
		{ID: uuid.MustParse("00000000-0000-4000-8000-000000000106"), Name: "Feuerwache Sendling", City: "München", Type: model.StationTypeFire, Lat: 48.1196, Lon: 11.5419, Cost: 55000},
		{ID: uuid.MustParse("00000000-0000-4000-8000-000000000107"), Name: "Rettungswache Schwabing", City: "München", Type: model.StationTypeRescue, Lat: 48.1640, Lon: 11.5860, Cost: 30000},
	}
}

// DefaultVehicleTypes mirrors the vehicle catalog seeded by migrations/0002_seed_catalog.sql.
func DefaultVehicleTypes() []model.VehicleType {
	none := map[string][]string{}
	return []model.VehicleType{
		{ID: "hlf", Name: "HLF 20", StationType: model.StationTypeFire, Cost: 25000, SpeedKMH: 60, Crew: 9,
			Capabilities:  map[string]int{"fire_fighting": 3, "technical_rescue": 2, "water_supply": 1},
			ConfigOptions: map[string][]string{"equipment": {"standard", "hazmat", "forest"}}},
		{ID: "tlf", Name: "TLF 3000", StationType: model.StationTypeFire, Cost: 20000, SpeedKMH: 55, Crew: 3,
			Capabilities: map[string]int{"fire_fighting": 2, "water_supply": 3}, ConfigOptions: none},
		{ID: "dlk", Name: "DLK 23-12", StationType: model.StationTypeFire, Cost: 35000, SpeedKMH: 55, Crew: 3,
			Capabilities: map[string]int{"aerial_ladder": 3, "fire_fighting": 1}, ConfigOptions: none},
		{ID: "elw", Name: "ELW 1", StationType: model.StationTypeFire, Cost: 15000, SpeedKMH: 70, Crew: 3,
			Capabilities: map[string]int{"command": 3}, ConfigOptions: none},
		{ID: "rw", Name: "RW", StationType: model.StationTypeFire, Cost: 30000, SpeedKMH: 55, Crew: 3,
			Capabilities: map[string]int{"technical_rescue": 3}, ConfigOptions: none},
		{ID: "rtw", Name: "RTW", StationType: model.StationTypeRescue, Cost: 12000, SpeedKMH: 70, Crew: 2,
			Capabilities:  map[string]int{"medical": 3, "patient_transport": 2},
			ConfigOptions: map[string][]string{"equipment": {"standard", "heavy_patient"}}},
		{ID: "nef", Name: "NEF", StationType: model.StationTypeRescue, Cost: 10000, SpeedKMH: 80, Crew: 2,
			Capabilities: map[string]int{"emergency_doctor": 3, "medical": 1}, ConfigOptions: none},
		{ID: "ktw", Name: "KTW", StationType: model.StationTypeRescue, Cost: 8000, SpeedKMH: 60, Crew: 2,
			Capabilities: map[string]int{"patient_transport": 3}, ConfigOptions: none},
	}
}
