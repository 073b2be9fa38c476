package testutil

import (
	"fmt"

	"github.com/roach88/shellsync/internal/record"
)

// HostID returns a stable, valid host id for the n-th test host.
//
// Golden snapshots need host ids that do not change between runs, and sort
// order must follow n:
//
//	HostID(1) = "00000000-0000-7000-8000-000000000001"
func HostID(n int) record.HostID {
	return record.HostID(fmt.Sprintf("00000000-0000-7000-8000-%012d", n))
}
