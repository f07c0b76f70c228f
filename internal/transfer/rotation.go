package transfer

import "github.com/SteelMorgan/log-transporter/internal/domain"

// ResolveStart decides the effective start offset for reading a target
// this cycle.
//
// Rotation is declared when the saved file identity no longer matches the
// current one, or when the file shrank below the saved offset (truncated
// and regrown under the same identity). On rotation the start offset is
// forced to 0 regardless of the saved value. A target with no prior
// record (saved offset and identity both zero) starts at 0 without being
// reported as rotated.
//
// This must run before any read is issued: the identity token is the only
// signal distinguishing truncation from a rotated file reusing the name.
func ResolveStart(savedOffset, savedIdentity uint64, current domain.FileStat) (start uint64, rotated bool) {
	if savedOffset == 0 && savedIdentity == 0 {
		return 0, false
	}
	if savedIdentity != current.Identity || current.Size < savedOffset {
		return 0, true
	}
	return savedOffset, false
}
