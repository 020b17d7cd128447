package goGuard

import (
	"strings"
	"sync"

	"github.com/MrEthical07/goGuard/keyhash"
)

// BeamIDLength is the fixed width of a beam id.
const BeamIDLength = 20

var beamHasher = sync.OnceValue(func() *keyhash.Hasher {
	return keyhash.MustNew(keyhash.Beam)
})

// BeamID derives a stable, unsalted identifier from parts: the Beam hash of
// their concatenation cut or right-padded with '=' to BeamIDLength.
func BeamID(parts ...string) string {
	id, err := beamHasher().HashString(strings.Join(parts, ""))
	if err != nil {
		return ""
	}
	if len(id) >= BeamIDLength {
		return id[:BeamIDLength]
	}
	return id + strings.Repeat("=", BeamIDLength-len(id))
}
