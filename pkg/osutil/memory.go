package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

const (
	// This is the default value for cgroup v1's limit_in_bytes. It indicates that
	// the memory is not restricted.
	unrestrictedMemoryLimit = 9223372036854771712

	// cgroup v2 reports an unrestricted limit with this literal
	unrestrictedMemoryMax = "max"
)

var cgroupMemoryLimitLocations = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	return totalMemory(memory.TotalMemory(), cgroupMemoryLimitLocations, os.ReadFile)
}

func totalMemory(hostMemory uint64, locations []string, readFile func(string) ([]byte, error)) uint64 {
	for _, location := range locations {
		raw, err := readFile(location)
		if err != nil {
			continue
		}

		value := strings.TrimSpace(string(raw))
		if value == unrestrictedMemoryMax {
			return hostMemory
		}

		limit, err := strconv.ParseUint(value, 10, 64)
		if err != nil || limit == 0 || limit == unrestrictedMemoryLimit {
			continue
		}

		if hostMemory > 0 && limit > hostMemory {
			return hostMemory
		}
		return limit
	}
	return hostMemory
}
