// Package traci implements a client for the TraCI control protocol: the
// socket-based request/response protocol used to step and query a running
// SUMO engine. Messages are length-prefixed binary frames; per-session
// subscriptions make simulation values available on every step response
// without additional round trips.
package traci

// Top-level commands.
const (
	CmdGetVersion byte = 0x00
	CmdSimStep    byte = 0x02
	CmdSetOrder   byte = 0x03
	CmdClose      byte = 0x7f
)

// Variable subscription commands and their responses, by domain.
const (
	CmdSubscribeTLVariable      byte = 0xd2
	CmdSubscribeVehicleVariable byte = 0xd4
	CmdSubscribeSimVariable     byte = 0xdb

	ResponseSubscribeTLVariable      byte = 0xe2
	ResponseSubscribeVehicleVariable byte = 0xe4
	ResponseSubscribeSimVariable     byte = 0xeb
)

// Simulation-domain variables.
const (
	VarTimeStep               byte = 0x70
	VarDepartedVehicleIDs     byte = 0x74
	VarTeleportStartingVehIDs byte = 0x76
	VarArrivedVehicleIDs      byte = 0x7a
	VarDeltaT                 byte = 0x7b
)

// Vehicle-domain variables.
const (
	VarSpeed     byte = 0x40
	VarPosition  byte = 0x42
	VarAngle     byte = 0x43
	VarRoadID    byte = 0x50
	VarLaneIndex byte = 0x52
)

// Traffic-light-domain variables.
const (
	VarTLState byte = 0x20 // red-yellow-green state string
	VarTLPhase byte = 0x28 // current phase index
)

// Wire data types.
const (
	TypePosition2D byte = 0x01
	TypeUByte      byte = 0x07
	TypeByte       byte = 0x08
	TypeInteger    byte = 0x09
	TypeDouble     byte = 0x0b
	TypeString     byte = 0x0c
	TypeStringList byte = 0x0e
	TypeCompound   byte = 0x0f
)

// Status results.
const (
	StatusOK             byte = 0x00
	StatusErr            byte = 0xff
	StatusNotImplemented byte = 0x01
)

// SimVariables is the simulation-level subscription set the kernel relies
// on: departures, arrivals, teleport starts (the collision proxy), current
// time and step delta.
var SimVariables = []byte{
	VarDepartedVehicleIDs,
	VarArrivedVehicleIDs,
	VarTeleportStartingVehIDs,
	VarTimeStep,
	VarDeltaT,
}

// VehicleVariables is the per-vehicle subscription set issued when a
// vehicle departs.
var VehicleVariables = []byte{
	VarSpeed,
	VarPosition,
	VarAngle,
}

// TLVariables is the per-traffic-light subscription set.
var TLVariables = []byte{
	VarTLState,
	VarTLPhase,
}
