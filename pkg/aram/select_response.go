package aram

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// GlobalPlatform SELECT response logic.
//
// Selecting a security domain or applet returns File Control Information:
// an '6F' template holding the DF name ('84') and a proprietary template
// ('A5') with security-domain management data. The exact proprietary
// content varies per card; unrecognized elements are kept raw so
// Describe() can still render them.

// FCI is the File Control Information returned by a SELECT.
type FCI struct {
	DFName      []byte
	Proprietary []bertlv.TLV
}

// ParseSelectResponse interprets raw SELECT response data as a
// GlobalPlatform FCI.
func ParseSelectResponse(data []byte) (*FCI, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data cannot be parsed")
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}

	// Some cards return the template content without the 6F wrapper.
	if len(packets) > 0 && strings.EqualFold(packets[0].Tag, "6F") {
		packets = packets[0].TLVs
	}

	fci := &FCI{}
	for _, p := range packets {
		switch strings.ToUpper(p.Tag) {
		case "84":
			fci.DFName = p.Value
		case "A5":
			fci.Proprietary = p.TLVs
		}
	}

	if len(fci.DFName) == 0 {
		return nil, fmt.Errorf("SELECT response carries no DF name")
	}
	return fci, nil
}

// Describe generates a readable report of the FCI content.
func (f *FCI) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== SELECT RESPONSE (FCI) ===\n")
	sb.WriteString(fmt.Sprintf("    - DF Name (84): %s\n", strings.ToUpper(hex.EncodeToString(f.DFName))))
	for _, p := range f.Proprietary {
		sb.WriteString(fmt.Sprintf("    - Proprietary Tag %s: %s\n",
			p.Tag, strings.ToUpper(hex.EncodeToString(p.Value))))
	}
	return strings.TrimRight(sb.String(), "\n")
}
