package game

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid mission status transition")
	ErrVehicleBusy       = errors.New("vehicle is not available for dispatch")
	ErrVehicleNotIdle    = errors.New("vehicle must be idle at its station")
	ErrNoFreeSlot        = errors.New("station has no free vehicle slot")
	ErrWrongStationType  = errors.New("vehicle type does not fit the station")
	ErrMissionLimit      = errors.New("active mission limit reached")
	ErrMaxLevel          = errors.New("maximum level reached")
	ErrInvalidConfig     = errors.New("invalid vehicle configuration")
	ErrNoOrigin          = errors.New("no home city or station to place missions around")
	ErrInvalidInput      = errors.New("invalid input")
)
