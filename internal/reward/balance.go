package reward

import (
	"encoding/json"
	"math/big"

	"rewardLedger/internal/model"
)

// Balance summarises what happened to claimed rewards. Available is
// Claimed minus Restaked minus Sold and may go negative if actions were
// recorded against rewards the ledger has not seen yet.
type Balance struct {
	Claimed   *big.Int
	Unclaimed *big.Int
	Restaked  *big.Int
	Sold      *big.Int
	Available *big.Int
}

type balanceJSON struct {
	Claimed   string `json:"claimed"`
	Unclaimed string `json:"unclaimed"`
	Restaked  string `json:"restaked"`
	Sold      string `json:"sold"`
	Available string `json:"available"`
}

func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(balanceJSON{
		Claimed:   model.FormatAmount(b.Claimed),
		Unclaimed: model.FormatAmount(b.Unclaimed),
		Restaked:  model.FormatAmount(b.Restaked),
		Sold:      model.FormatAmount(b.Sold),
		Available: model.FormatAmount(b.Available),
	})
}

func ComputeBalance(rewards []model.ValidatorReward, actions []model.RewardAction) Balance {
	b := Balance{
		Claimed:   new(big.Int),
		Unclaimed: new(big.Int),
		Restaked:  new(big.Int),
		Sold:      new(big.Int),
	}
	for _, r := range rewards {
		if r.Claimed {
			b.Claimed.Add(b.Claimed, r.AmountOrZero())
		} else {
			b.Unclaimed.Add(b.Unclaimed, r.AmountOrZero())
		}
	}
	for _, a := range actions {
		amount := orZero(a.Amount)
		switch a.Type {
		case model.RewardActionRestaking:
			b.Restaked.Add(b.Restaked, amount)
		case model.RewardActionSell:
			b.Sold.Add(b.Sold, amount)
		}
	}
	b.Available = new(big.Int).Sub(b.Claimed, b.Restaked)
	b.Available.Sub(b.Available, b.Sold)
	return b
}
