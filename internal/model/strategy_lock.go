package model

// StrategyLock pins the reward computation strategy used for an operator.
type StrategyLock struct {
	OperatorAddress string
	Strategy        string
}
