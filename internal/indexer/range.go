package indexer

// BlockRange is an inclusive span of blocks scanned by one eth_getLogs query.
type BlockRange struct {
	From uint64
	To   uint64
}

// Blocks returns the number of blocks covered by the range.
func (r BlockRange) Blocks() uint64 { return r.To - r.From + 1 }

// planRanges covers [from, head] with queries of at most maxBlocks blocks.
// A zero maxBlocks yields a single query; an empty interval yields none.
func planRanges(from, head, maxBlocks uint64) []BlockRange {
	if head < from {
		return nil
	}
	if maxBlocks == 0 {
		return []BlockRange{{From: from, To: head}}
	}

	ranges := make([]BlockRange, 0, (head-from)/maxBlocks+1)
	for start := from; ; {
		end := head
		if head-start >= maxBlocks {
			end = start + maxBlocks - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == head {
			return ranges
		}
		start = end + 1
	}
}
