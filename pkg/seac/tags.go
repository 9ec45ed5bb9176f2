package seac

import "github.com/cardforge/aram/pkg/tlv"

// BER-TLV tags of the rule data objects, SEAC v1.1 Tables 6-3 to 6-9.
const (
	// TagAIDRef ('4F') carries the AID of the secure element application
	// the rule applies to. A zero-length value means "all applications".
	TagAIDRef tlv.Tag = 0x4F

	// TagAIDRefEmpty ('C0') is the alternate empty AID reference form
	// ("implicitly selected application"). Accepted on decode, never
	// produced on encode.
	TagAIDRefEmpty tlv.Tag = 0xC0

	// TagDevAppIDRef ('C1') carries the device application identifier:
	// empty, a 20-byte SHA-1 certificate hash, or a 32-byte hash.
	TagDevAppIDRef tlv.Tag = 0xC1

	// TagPkgRef ('CA') carries a full Android package name of up to 127
	// ASCII characters (Android UICC Carrier Privileges extension).
	TagPkgRef tlv.Tag = 0xCA

	// TagRef ('E1') is the REF-DO container pairing AID and device
	// application references, optionally refined by a package reference.
	TagRef tlv.Tag = 0xE1

	// TagAPDUAccessRule ('D0') holds the APDU policy: a single byte 0x00
	// (never) or 0x01 (always), or a concatenation of 8-byte filters.
	TagAPDUAccessRule tlv.Tag = 0xD0

	// TagNFCAccessRule ('D1') holds the NFC event policy byte.
	TagNFCAccessRule tlv.Tag = 0xD1

	// TagPermAccessRule ('DB') holds the 8-byte Android carrier-privilege
	// permission mask (Android UICC Carrier Privileges extension).
	TagPermAccessRule tlv.Tag = 0xDB

	// TagAccessRule ('E3') is the AR-DO container holding the policy DOs.
	TagAccessRule tlv.Tag = 0xE3

	// TagRefAccessRule ('E2') is the REF-AR-DO container, one complete
	// rule: a REF-DO followed by an AR-DO.
	TagRefAccessRule tlv.Tag = 0xE2
)
