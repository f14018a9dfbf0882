package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const distributorABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "valAddr", "type": "address"}],
    "name": "claimableOperatorRewards",
    "outputs": [
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "uint256", "name": "epoch", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "valAddr", "type": "address"}],
    "name": "lastClaimedOperatorRewardsEpoch",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const epochFeederABIJSON = `[
  {
    "inputs": [],
    "name": "epoch",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const contributionFeedABIJSON = `[
  {
    "inputs": [{"internalType": "uint256", "name": "epoch", "type": "uint256"}],
    "name": "available",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "epoch", "type": "uint256"}],
    "name": "summary",
    "outputs": [
      {"internalType": "uint256", "name": "totalWeight", "type": "uint256"},
      {"internalType": "uint256", "name": "numOfValidators", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "epoch", "type": "uint256"},
      {"internalType": "address", "name": "valAddr", "type": "address"}
    ],
    "name": "weightOf",
    "outputs": [
      {"internalType": "uint256", "name": "weight", "type": "uint256"},
      {"internalType": "uint256", "name": "collateralRewardShare", "type": "uint256"},
      {"internalType": "uint256", "name": "delegationRewardShare", "type": "uint256"},
      {"internalType": "bool", "name": "exists", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const validatorManagerABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "valAddr", "type": "address"},
      {"internalType": "uint256", "name": "epoch", "type": "uint256"}
    ],
    "name": "commissionRateAt",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const emissionABIJSON = `[
  {
    "inputs": [{"internalType": "uint256", "name": "epoch", "type": "uint256"}],
    "name": "validatorReward",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	distributorABI      = &lazyABI{json: distributorABIJSON}
	epochFeederABI      = &lazyABI{json: epochFeederABIJSON}
	contributionFeedABI = &lazyABI{json: contributionFeedABIJSON}
	validatorManagerABI = &lazyABI{json: validatorManagerABIJSON}
	emissionABI         = &lazyABI{json: emissionABIJSON}
)

// DistributorABI returns the parsed reward distributor ABI.
func DistributorABI() (abi.ABI, error) { return distributorABI.get() }

// EpochFeederABI returns the parsed epoch feeder ABI.
func EpochFeederABI() (abi.ABI, error) { return epochFeederABI.get() }

// ContributionFeedABI returns the parsed validator contribution feed ABI.
func ContributionFeedABI() (abi.ABI, error) { return contributionFeedABI.get() }

// ValidatorManagerABI returns the parsed validator manager ABI.
func ValidatorManagerABI() (abi.ABI, error) { return validatorManagerABI.get() }

// EmissionABI returns the parsed validator emission ABI.
func EmissionABI() (abi.ABI, error) { return emissionABI.get() }
