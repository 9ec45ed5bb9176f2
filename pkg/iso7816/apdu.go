package iso7816

import (
	"bytes"
	"fmt"
)

// APDU (Application Protocol Data Unit) structures according to
// ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// A command consists of a mandatory Header (4 bytes) and an optional Body.
//
// 1. Header:
//   - CLA (Class): Interindustry or proprietary class, logical channel.
//   - INS (Instruction): The specific command to execute.
//   - P1, P2 (Parameters): Command modifiers.
//
// 2. Body:
//   - Lc (Length Command): Number of bytes in the data field.
//   - Data: The command payload.
//   - Le (Length Expected): Maximum number of bytes expected in the response.
//
// This package implements the Short Length encoding only (Lc and Le on one
// byte each). The Secure Element Access Control flows it serves never move
// more than 255 bytes per command: the applet's STORE DATA interface chains
// larger rule sets into multiple blocks itself.
//
// RESPONSE APDU (R-APDU):
// An optional data field followed by a mandatory two-byte Status Word
// (SW1, SW2). 0x9000 indicates success.

// APDU limits for the Short Length encoding.
const (
	// MaxShortLc is the maximum data length (Nc) encodable on one byte.
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne).
	// In Short mode, 0x00 encodes 256.
	MaxShortLe = 256
)

// Instruction (INS) codes used by the GlobalPlatform access-control flows.
const (
	InsSelect      byte = 0xA4
	InsGetResponse byte = 0xC0
	InsGetData     byte = 0xCA
	InsStoreData   byte = 0xE2
)

// Class (CLA) values used by the GlobalPlatform access-control flows.
const (
	ClaInterindustry byte = 0x00
	ClaProprietary   byte = 0x80
)

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Cla    byte
	Ins    byte
	P1, P2 byte
	Data   []byte
	Ne     int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla, ins, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Cla:  cla,
		Ins:  ins,
		P1:   p1,
		P2:   p2,
		Data: data,
		Ne:   ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU).
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	if nc > MaxShortLc {
		return nil, fmt.Errorf("data field of %d bytes exceeds short-length limit %d", nc, MaxShortLc)
	}
	if c.Ne > MaxShortLe {
		return nil, fmt.Errorf("expected length %d exceeds short-length limit %d", c.Ne, MaxShortLe)
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(c.Cla)
	buf.WriteByte(c.Ins)
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	// Case 3/4: Lc + Data
	if nc > 0 {
		buf.WriteByte(byte(nc))
		buf.Write(c.Data)
	}

	// Case 2/4: Le
	if c.Ne > 0 {
		if c.Ne == MaxShortLe {
			buf.WriteByte(0x00) // 0x00 represents 256
		} else {
			buf.WriteByte(byte(c.Ne))
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("CLA: %02X, INS: %02X | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Cla, c.Ins, c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	data := raw[:indexSW1]
	sw1 := raw[indexSW1]
	sw2 := raw[indexSW1+1]

	return &ResponseAPDU{
		Data:   data,
		Status: NewStatusWord(sw1, sw2),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
