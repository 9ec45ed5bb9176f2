/*
Package aram talks to the Access Rule Application Master (ARA-M), the
GlobalPlatform applet holding the central access-control rule store of a
secure element.

The applet exposes its store through two primitives (SEAC v1.1 Chapters 4
and 5):

  - STORE DATA ('80 E2 90 00') carrying a command data object: store one
    rule ('F0' wrapping a REF-AR-DO), delete rules ('F1', empty for
    "delete all"), or read all rules ('F4').
  - GET DATA ('80 CA', tag in P1/P2): read all rules ('FF40'), the refresh
    tag ('DF20'), or the applet's interface version ('DF21').

Client implements these flows over an ISO 7816 connection and satisfies
the Transport interface the higher layers consume.
*/
package aram

import (
	"errors"
	"fmt"

	"github.com/cardforge/aram/pkg/tlv"
)

// AID is the Access Rule Application Master application identifier.
var AID = []byte{0xA0, 0x00, 0x00, 0x01, 0x51, 0x41, 0x43, 0x4C, 0x00}

// Label is the registry name under which the ARA-M applet is selectable.
const Label = "ARA-M"

// applicationAIDs maps selectable application labels to their AIDs.
var applicationAIDs = map[string][]byte{
	Label: AID,
}

// Command and response data object tags, SEAC v1.1 Tables 4-2 to 5-14.
const (
	// TagCommandStoreRefAR ('F0') wraps one REF-AR-DO to store.
	TagCommandStoreRefAR tlv.Tag = 0xF0

	// TagCommandDelete ('F1') deletes rules; an empty value deletes all.
	TagCommandDelete tlv.Tag = 0xF1

	// TagCommandGetAll ('F4') requests all stored rules via STORE DATA.
	TagCommandGetAll tlv.Tag = 0xF4

	// TagResponseAllRefAR ('FF40') wraps the full rule set in a GET DATA
	// [All] response, and doubles as the GET DATA parameter.
	TagResponseAllRefAR tlv.Tag = 0xFF40

	// TagResponseRefreshTag ('DF20') wraps the 8-byte refresh tag that
	// changes whenever the rule set changes.
	TagResponseRefreshTag tlv.Tag = 0xDF20

	// TagResponseConfig ('DF21') wraps the ARAM-Config-DO in a GET DATA
	// [Config] response, and doubles as the GET DATA parameter.
	TagResponseConfig tlv.Tag = 0xDF21

	// TagDeviceConfig ('E4') carries the device's interface version in a
	// GET DATA [Config] command.
	TagDeviceConfig tlv.Tag = 0xE4

	// TagAramConfig ('E5') carries the applet's interface version.
	TagAramConfig tlv.Tag = 0xE5

	// TagInterfaceVersion ('E6') holds a major/minor/patch byte triple.
	TagInterfaceVersion tlv.Tag = 0xE6
)

// ErrNotFound is returned when a selection target does not exist, either
// as an unknown label or as an application absent from the card.
var ErrNotFound = errors.New("application not found")

// Transport is the card-facing boundary of the rule tooling: persist the
// canonical rule bytes, read them back, select the target applet. The
// core owns no transport logic; failures arrive as opaque
// *TransportError values and are never retried here.
type Transport interface {
	SendStoreData(canonical []byte) error
	ReadAllData() ([]byte, error)
	SelectApplication(label string) error
}

// TransportError wraps an opaque failure of the underlying card
// transport. Retry policy, if any, belongs to the transport itself.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
