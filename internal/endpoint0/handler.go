// Package endpoint0 implements the distinguished endpoint-0 JSON
// descriptor and version handler every link bootstraps against, plus the
// heartbeat endpoint used to exercise server dispatch end to end without
// any motor-application semantics.
package endpoint0

import (
	_ "embed"
	"encoding/binary"
	"hash/crc32"

	"github.com/legacylink/legacylink-bridge/internal/wire"
)

//go:embed descriptor.json
var descriptorJSON []byte

// JSONCRC is the CRC-16 trailer value every non-zero endpoint request must
// carry; it is computed once over the embedded descriptor using the same
// CRC-16 configuration as the frame trailer.
var JSONCRC = wire.CRC16(descriptorJSON)

// JSONVersionID is the 32-bit identifier endpoint 0 returns for the
// special offset 0xFFFFFFFF. It is distinct from JSONCRC: JSONCRC guards
// wire-level trailer matching, JSONVersionID is an application-level
// descriptor version a client can cache across reconnects. CRC-32/IEEE is
// an ordinary reflected CRC with no bespoke parameters, unlike the frame
// CRC-8/CRC-16, so the standard library suffices here.
var JSONVersionID = crc32.ChecksumIEEE(descriptorJSON)

const versionQueryOffset = 0xFFFFFFFF

// HeartbeatEndpointID is the supplemented endpoint used for end-to-end
// dispatch exercises; see heartbeat.go.
const HeartbeatEndpointID = 1

// Handler implements mux.EndpointHandler for endpoint 0 (JSON descriptor
// and version query) and the heartbeat endpoint. Any other endpoint ID is
// reported as unhandled.
type Handler struct{}

// New returns a ready-to-use Handler. It holds no state of its own; the
// descriptor is a package-level embedded constant.
func New() *Handler { return &Handler{} }

// Handle dispatches endpointID to the matching behavior. It satisfies
// mux.EndpointHandler by structural typing.
func (h *Handler) Handle(endpointID uint16, input, output []byte) (produced int, ok bool) {
	switch endpointID {
	case 0:
		return handleDescriptor(input, output)
	case HeartbeatEndpointID:
		return heartbeat(input, output)
	default:
		return 0, false
	}
}

// handleDescriptor implements spec's offset table: 0xFFFFFFFF returns the
// version ID, an offset past the end of the descriptor returns zero
// bytes, and any other offset returns a slice of the descriptor starting
// there, truncated to fit output. A missing or short offset field fails
// the request outright so no reply is sent.
func handleDescriptor(input, output []byte) (int, bool) {
	if len(input) < 4 {
		return 0, false
	}
	offset := binary.LittleEndian.Uint32(input[:4])

	if offset == versionQueryOffset {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], JSONVersionID)
		return copy(output, buf[:]), true
	}
	if offset >= uint32(len(descriptorJSON)) {
		return 0, true
	}
	return copy(output, descriptorJSON[offset:]), true
}
