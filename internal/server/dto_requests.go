package server

type UpdateProfileRequest struct {
	Username *string  `json:"username" validate:"omitempty,min=3,max=32"`
	HomeCity *string  `json:"home_city" validate:"omitempty,max=120"`
	HomeLat  *float64 `json:"home_lat" validate:"omitempty,latitude"`
	HomeLon  *float64 `json:"home_lon" validate:"omitempty,longitude"`
}

type PurchaseStationRequest struct {
	BlueprintID string `json:"blueprint_id" validate:"required,uuid"`
}

type PurchaseVehicleRequest struct {
	StationID string `json:"station_id" validate:"required,uuid"`
	TypeID    string `json:"type_id" validate:"required,max=32"`
	CallSign  string `json:"call_sign" validate:"omitempty,max=64"`
}

type ConfigureVehicleRequest struct {
	Config map[string]string `json:"config" validate:"required,min=1,dive,keys,required,max=32,endkeys,required,max=64"`
}

// VehicleIDsRequest is the body of dispatch and recall. An empty list
// dispatches nothing and recalls every assigned vehicle.
type VehicleIDsRequest struct {
	VehicleIDs []string `json:"vehicle_ids" validate:"max=32,dive,uuid"`
}

type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256DH string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

type DeletePushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

type PushPublicKeyResponse struct {
	Enabled   bool   `json:"enabled"`
	PublicKey string `json:"public_key,omitempty"`
}
