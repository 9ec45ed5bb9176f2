package iso7816

import (
	"fmt"

	"github.com/cardforge/aram/pkg/bits"
)

// Status Word Logic:
//
// Most Status Words (SW) are static 2-byte values (e.g., 0x9000), but
// ISO 7816-4 defines ranges where the value is dynamic and carries
// contextual information:
//
// 1. '61XX' (SW1=0x61): Process Completed, Response Available.
//    XX is the number of extra bytes retrievable via GET RESPONSE.
//
// 2. '6CXX' (SW1=0x6C): Wrong Length.
//    XX is the correct expected length (Le) for the command.
//
// 3. '63CX' (Warning): Counter Management.
//    If the upper nibble of SW2 is 'C', the lower nibble is a counter.
//
// On top of the generic ISO meanings, the Access Rule Application defines
// its own status semantics (SEAC v1.1 Sections 4.1.2.2 and 5.1.2.2), e.g.
// 0x6381 "rule already exists" after a successful store. Verbose() knows
// both vocabularies.

// StatusWord represents the two-byte status response (SW1-SW2) returned by the card.
type StatusWord uint16

// NewStatusWord creates a StatusWord instance from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first byte (high byte) of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second byte (low byte) of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsCounter checks if the status carries a counter value (63CX).
func (sw StatusWord) IsCounter() bool {
	if sw.SW1() != 0x63 {
		return false
	}
	return bits.GetRange(sw.SW2(), 8, 5) == 0x0C
}

// IsSuccess returns true if the command was processed successfully (9000) or
// if data is available (61XX).
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR || sw.SW1() == 0x61
}

// IsWarning returns true if the status indicates a warning (62XX or 63XX).
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError returns true if the status indicates an execution or checking
// error (64XX to 6FXX).
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return sw1 >= 0x64 && sw1 <= 0x6F
}

// Standard Status Word codes defined in ISO/IEC 7816-4 that the
// access-control flows test against.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_ERR_WRONG_LENGTH            StatusWord = 0x6700
	SW_ERR_SECURITY_STATUS_NOT_SAT StatusWord = 0x6982
	SW_ERR_COND_OF_USE_NOT_SAT     StatusWord = 0x6985
	SW_ERR_INCORRECT_PARAMS_DATA   StatusWord = 0x6A80
	SW_ERR_FILE_NOT_FOUND          StatusWord = 0x6A82
	SW_ERR_INCORRECT_PARAMS_P1P2   StatusWord = 0x6A86
	SW_ERR_REF_DATA_NOT_FOUND      StatusWord = 0x6A88
	SW_ERR_INS_INVALID             StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED       StatusWord = 0x6E00
)

// araStatusDescriptions carries the Access Rule Application specific status
// meanings from SEAC v1.1 Sections 4.1.2.2 and 5.1.2.2.
var araStatusDescriptions = map[StatusWord]string{
	0x6381: "Rule successfully stored but an access rule already exists",
	0x6382: "Rule successfully stored but contained at least one unknown (discarded) BER-TLV",
	0x6581: "Memory problem",
	0x6700: "Wrong length in Lc",
	0x6981: "DO is not supported by the ARA-M/ARA-C",
	0x6982: "Security status not satisfied",
	0x6984: "Rules have been updated and must be read again / logical channels in use",
	0x6985: "Conditions not satisfied",
	0x6A80: "Incorrect values in the command data",
	0x6A84: "Rules have been updated and must be read again",
	0x6A86: "Incorrect P1 P2",
	0x6A88: "Referenced data not found",
	0x6A89: "Conflicting access rule already exists in the Secure Element",
	0x6D00: "Invalid instruction",
	0x6E00: "Invalid class",
}

// Verbose returns a human-readable description of the status word.
// It prioritizes the applet-specific vocabulary, then dynamic ISO
// definitions, then a generic category derived from SW1.
func (sw StatusWord) Verbose() string {
	if desc, ok := araStatusDescriptions[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), desc)
	}

	sw1 := sw.SW1()
	sw2 := sw.SW2()

	if sw == SW_NO_ERROR {
		return "[9000] Normal processing"
	}

	if sw.IsCounter() {
		return fmt.Sprintf("Warning: State changed, counter = %d", bits.GetRange(sw2, 4, 1))
	}

	if sw1 == 0x61 {
		return fmt.Sprintf("Process completed, %d bytes available", sw2)
	}

	if sw1 == 0x6C {
		return fmt.Sprintf("Wrong length, correct Le is %d", sw2)
	}

	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.genericCategoryDescription())
}

// genericCategoryDescription provides a fallback description based on SW1.
func (sw StatusWord) genericCategoryDescription() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	default:
		return "Unknown Status"
	}
}
