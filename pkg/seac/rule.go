package seac

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxAIDLength is the longest AID the AID-REF-DO admits (SEAC v1.1 Table 6-3).
// Shorter values are allowed down to a bare 5-byte RID, and the empty value
// is the wildcard.
const MaxAIDLength = 16

// Device application identifier lengths accepted by DEV-APP-ID-REF-DO:
// a SHA-1 hash of the signing certificate, or the 32-byte form newer
// deployments use.
const (
	DeviceAppIDSHA1Length = 20
	DeviceAppIDHashLength = 32
)

// AIDRef identifies the secure element application a rule targets.
// The zero value is the wildcard reference, matching every application.
// The wildcard and an explicitly empty AID are the same reference: both
// serialize as a zero-length '4F' value, so no distinction survives the
// wire and none is kept in memory.
type AIDRef struct {
	aid []byte
}

// WildcardAID is the reference matching all secure element applications.
var WildcardAID = AIDRef{}

// AIDRefFrom builds an AID reference. An empty input yields the wildcard.
func AIDRefFrom(aid []byte) (AIDRef, error) {
	if len(aid) > MaxAIDLength {
		return AIDRef{}, fmt.Errorf("AID of %d bytes exceeds maximum of %d", len(aid), MaxAIDLength)
	}
	return AIDRef{aid: bytes.Clone(aid)}, nil
}

// IsWildcard reports whether the reference matches all applications.
func (a AIDRef) IsWildcard() bool {
	return len(a.aid) == 0
}

// Bytes returns the AID value; empty for the wildcard.
func (a AIDRef) Bytes() []byte {
	return bytes.Clone(a.aid)
}

// Equal reports byte-for-byte equality of the references.
func (a AIDRef) Equal(other AIDRef) bool {
	return bytes.Equal(a.aid, other.aid)
}

func (a AIDRef) String() string {
	if a.IsWildcard() {
		return "<all>"
	}
	return strings.ToUpper(hex.EncodeToString(a.aid))
}

// DeviceAppID identifies the off-card application a rule applies to,
// normally by a hash of its signing certificate. The zero value is the
// wildcard, matching any device application.
type DeviceAppID struct {
	id []byte
}

// WildcardDeviceAppID matches any device application.
var WildcardDeviceAppID = DeviceAppID{}

// DeviceAppIDFrom builds a device application reference. The input must be
// empty (wildcard), 20 bytes (SHA-1) or 32 bytes.
func DeviceAppIDFrom(id []byte) (DeviceAppID, error) {
	switch len(id) {
	case 0, DeviceAppIDSHA1Length, DeviceAppIDHashLength:
		return DeviceAppID{id: bytes.Clone(id)}, nil
	default:
		return DeviceAppID{}, fmt.Errorf("device application identifier must be empty, %d or %d bytes, got %d",
			DeviceAppIDSHA1Length, DeviceAppIDHashLength, len(id))
	}
}

// IsWildcard reports whether the reference matches any device application.
func (d DeviceAppID) IsWildcard() bool {
	return len(d.id) == 0
}

// Bytes returns the identifier value; empty for the wildcard.
func (d DeviceAppID) Bytes() []byte {
	return bytes.Clone(d.id)
}

// Equal reports byte-for-byte equality of the references.
func (d DeviceAppID) Equal(other DeviceAppID) bool {
	return bytes.Equal(d.id, other.id)
}

func (d DeviceAppID) String() string {
	if d.IsWildcard() {
		return "<any>"
	}
	return strings.ToUpper(hex.EncodeToString(d.id))
}

// Access is a generic access decision.
type Access byte

const (
	// Never denies access unconditionally.
	Never Access = 0x00
	// Always grants access unconditionally.
	Always Access = 0x01
	// Filtered grants APDU access governed by a filter list. Only valid
	// for the APDU policy.
	Filtered Access = 0x02
)

func (a Access) String() string {
	switch a {
	case Never:
		return "never"
	case Always:
		return "always"
	case Filtered:
		return "filtered"
	default:
		return fmt.Sprintf("unknown access (0x%02X)", byte(a))
	}
}

// FilterLength is the size of one APDU filter entry: a 4-byte
// CLA/INS/P1/P2 header followed by a 4-byte mask.
const FilterLength = 8

// Filter is one APDU filter entry. An APDU is admitted when its header
// ANDed with the mask equals the filter header ANDed with the mask.
type Filter [FilterLength]byte

// Header returns the 4-byte CLA/INS/P1/P2 part of the filter.
func (f Filter) Header() []byte {
	return bytes.Clone(f[:4])
}

// Mask returns the 4-byte mask part of the filter.
func (f Filter) Mask() []byte {
	return bytes.Clone(f[4:])
}

func (f Filter) String() string {
	return strings.ToUpper(hex.EncodeToString(f[:]))
}

// FiltersFrom splits raw filter bytes into 8-byte filter entries. The
// input length must be a non-zero multiple of FilterLength; longer inputs
// are normalized into multiple entries, since the wire format is a plain
// concatenation either way.
func FiltersFrom(raw []byte) ([]Filter, error) {
	if len(raw) == 0 || len(raw)%FilterLength != 0 {
		return nil, fmt.Errorf("filter bytes must be a non-zero multiple of %d, got %d", FilterLength, len(raw))
	}
	filters := make([]Filter, 0, len(raw)/FilterLength)
	for offset := 0; offset < len(raw); offset += FilterLength {
		var f Filter
		copy(f[:], raw[offset:offset+FilterLength])
		filters = append(filters, f)
	}
	return filters, nil
}

// APDUPolicy is the APDU half of a rule definition.
type APDUPolicy struct {
	Access  Access
	Filters []Filter // present iff Access == Filtered, at least one entry
}

// APDUNever and APDUAlways are the two unconditional APDU policies.
var (
	APDUNever  = APDUPolicy{Access: Never}
	APDUAlways = APDUPolicy{Access: Always}
)

// APDUFiltered builds a filter-governed APDU policy.
func APDUFiltered(filters ...Filter) APDUPolicy {
	return APDUPolicy{Access: Filtered, Filters: filters}
}

// Validate checks the policy's structural invariants.
func (p APDUPolicy) Validate() error {
	switch p.Access {
	case Never, Always:
		if len(p.Filters) > 0 {
			return fmt.Errorf("APDU policy %q must not carry filters", p.Access)
		}
	case Filtered:
		if len(p.Filters) == 0 {
			return fmt.Errorf("filtered APDU policy requires at least one filter")
		}
	default:
		return fmt.Errorf("invalid APDU policy 0x%02X", byte(p.Access))
	}
	return nil
}

// Equal reports semantic equality of the policies.
func (p APDUPolicy) Equal(other APDUPolicy) bool {
	if p.Access != other.Access || len(p.Filters) != len(other.Filters) {
		return false
	}
	for i := range p.Filters {
		if p.Filters[i] != other.Filters[i] {
			return false
		}
	}
	return true
}

func (p APDUPolicy) String() string {
	if p.Access != Filtered {
		return p.Access.String()
	}
	parts := make([]string, len(p.Filters))
	for i, f := range p.Filters {
		parts[i] = f.String()
	}
	return "filtered[" + strings.Join(parts, " ") + "]"
}

// MaxPackageNameLength is the longest Android package name the
// PKG-REF-DO admits.
const MaxPackageNameLength = 127

// ValidatePackageName checks a PKG-REF-DO value: printable ASCII, at
// most 127 characters (Android UICC Carrier Privileges extension).
func ValidatePackageName(name string) error {
	if len(name) > MaxPackageNameLength {
		return fmt.Errorf("package name of %d characters exceeds maximum of %d", len(name), MaxPackageNameLength)
	}
	for i := 0; i < len(name); i++ {
		if name[i] <= 0x20 || name[i] > 0x7E {
			return fmt.Errorf("package name must be printable ASCII without spaces, got 0x%02X at position %d", name[i], i)
		}
	}
	return nil
}

// PermissionsLength is the size of the Android carrier-privilege mask.
const PermissionsLength = 8

// Permissions is the 64-bit Android carrier-privilege permission mask.
type Permissions [PermissionsLength]byte

// PermissionsFrom builds a permission mask from its 8 raw bytes.
func PermissionsFrom(raw []byte) (Permissions, error) {
	if len(raw) != PermissionsLength {
		return Permissions{}, fmt.Errorf("permission mask must be %d bytes, got %d", PermissionsLength, len(raw))
	}
	var p Permissions
	copy(p[:], raw)
	return p, nil
}

func (p Permissions) String() string {
	return strings.ToUpper(hex.EncodeToString(p[:]))
}

// Rule is one access rule: a reference (AID + device application) paired
// with an access rule definition.
type Rule struct {
	AID         AIDRef
	DeviceAppID DeviceAppID
	// PackageName is the Android package name of the PKG-REF-DO
	// (Android UICC Carrier Privileges extension), empty when absent.
	PackageName string
	APDU        APDUPolicy
	NFC         Access
	Permissions *Permissions // nil when absent
}

// Validate checks the rule's structural invariants.
func (r Rule) Validate() error {
	if err := ValidatePackageName(r.PackageName); err != nil {
		return fmt.Errorf("package reference: %w", err)
	}
	if err := r.APDU.Validate(); err != nil {
		return fmt.Errorf("APDU policy: %w", err)
	}
	if r.NFC != Never && r.NFC != Always {
		return fmt.Errorf("NFC policy must be never or always, got %s", r.NFC)
	}
	return nil
}

// Equal reports byte-for-byte equality of all rule fields.
func (r Rule) Equal(other Rule) bool {
	if !r.AID.Equal(other.AID) || !r.DeviceAppID.Equal(other.DeviceAppID) {
		return false
	}
	if r.PackageName != other.PackageName {
		return false
	}
	if !r.APDU.Equal(other.APDU) || r.NFC != other.NFC {
		return false
	}
	if (r.Permissions == nil) != (other.Permissions == nil) {
		return false
	}
	return r.Permissions == nil || *r.Permissions == *other.Permissions
}

func (r Rule) String() string {
	s := fmt.Sprintf("aid=%s dev-app-id=%s", r.AID, r.DeviceAppID)
	if r.PackageName != "" {
		s += fmt.Sprintf(" pkg=%s", r.PackageName)
	}
	s += fmt.Sprintf(" apdu=%s nfc=%s", r.APDU, r.NFC)
	if r.Permissions != nil {
		s += fmt.Sprintf(" permissions=%s", r.Permissions)
	}
	return s
}
