package wsstore

import (
	"fmt"
	"sync/atomic"
)

// localRevisionSeq is a process-wide monotonic counter used to mint local
// revisions. Revisions are opaque strings (§3); this store represents a
// local one as a zero-padded sequence number so that plain string
// comparison preserves ordering, while remaining agnostic to whatever
// format the server's assigned revisions use.
var localRevisionSeq atomic.Uint64

// nextLocalRevision returns a revision strictly greater than any value
// previously returned by this process, satisfying §4.2's "within a
// transaction, revisions are assigned strictly increasing" rule.
func nextLocalRevision() string {
	n := localRevisionSeq.Add(1)
	return fmt.Sprintf("l%020d", n)
}
