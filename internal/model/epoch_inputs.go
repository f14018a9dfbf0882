package model

import "math/big"

// EpochInputs carries the on-chain figures needed to compute one operator's
// reward for one epoch.
type EpochInputs struct {
	Epoch             uint64
	ValidatorEmission *big.Int
	OperatorWeight    *big.Int
	TotalWeight       *big.Int
	CollateralShare   *big.Int
	DelegationShare   *big.Int
	CommissionRate    *big.Int
}
