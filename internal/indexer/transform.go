package indexer

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"rewardLedger/internal/model"
)

// buildContractEvent keeps hashes and addresses lowercased so the stored
// rows compare equal regardless of the node's checksum casing.
func buildContractEvent(log types.Log) model.ContractEvent {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.ContractEvent{
		Address:     strings.ToLower(log.Address.Hex()),
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Data:        hexutil.Encode(log.Data),
		Topics:      topics,
	}
}
