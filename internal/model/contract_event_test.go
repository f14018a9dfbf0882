package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestContractEventJSONRoundTrip(t *testing.T) {
	original := ContractEvent{
		Address:     "0x1111111111111111111111111111111111111111",
		BlockNumber: 36000000,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		LogIndex:    12,
		Data:        "0xdeadbeef",
		Topics:      []string{"0xaaa", "0xbbb"},
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"blockNumber":"36000000"`) {
		t.Fatalf("block number should be a string: %s", b)
	}

	var decoded ContractEvent
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestContractEventNilTopics(t *testing.T) {
	b, err := json.Marshal(ContractEvent{TxHash: "0x01"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"topics":[]`) {
		t.Fatalf("expected empty topics array: %s", b)
	}
}
