package eventstream

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"
)

const streamPrefix = "sitehub.stream"

// StreamName returns the partition stream an aggregate kind shards into.
func StreamName(kind string, partition int) string {
	return fmt.Sprintf("%s.%s.%d", streamPrefix, strings.ToLower(kind), partition)
}

// PartitionFor hashes an aggregate identifier onto a partition. All events of
// one aggregate land in one partition, which is what guarantees per-aggregate
// delivery order.
func PartitionFor(id uuid.UUID, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return int(h.Sum32() % uint32(partitions))
}
