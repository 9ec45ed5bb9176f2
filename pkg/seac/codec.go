package seac

import (
	"fmt"

	"github.com/cardforge/aram/pkg/tlv"
)

// MalformedRecordError reports a REF-AR-DO whose TLV structure violates
// the rule contract: a required inner tag is absent, a value length is
// inconsistent with its semantic type, or an unknown tag appears.
// Access-control data is never silently repaired.
type MalformedRecordError struct {
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return "malformed access rule record: " + e.Reason
}

func malformedRecordf(format string, args ...any) error {
	return &MalformedRecordError{Reason: fmt.Sprintf(format, args...)}
}

// ToTLV encodes the rule as a complete REF-AR-DO ('E2').
func (r Rule) ToTLV() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	// REF-DO: AID reference, device application reference, optional
	// package reference. The wildcard AID serializes as a zero-length
	// '4F' value.
	ref := tlv.Encode(TagAIDRef, r.AID.Bytes())
	ref = append(ref, tlv.Encode(TagDevAppIDRef, r.DeviceAppID.Bytes())...)
	if r.PackageName != "" {
		ref = append(ref, tlv.Encode(TagPkgRef, []byte(r.PackageName))...)
	}

	// AR-DO: APDU rule, NFC rule, optional permission mask.
	ar := tlv.Encode(TagAPDUAccessRule, r.APDU.encodeValue())
	ar = append(ar, tlv.Encode(TagNFCAccessRule, []byte{byte(r.NFC)})...)
	if r.Permissions != nil {
		ar = append(ar, tlv.Encode(TagPermAccessRule, r.Permissions[:])...)
	}

	body := tlv.Encode(TagRef, ref)
	body = append(body, tlv.Encode(TagAccessRule, ar)...)
	return tlv.Encode(TagRefAccessRule, body), nil
}

func (p APDUPolicy) encodeValue() []byte {
	if p.Access != Filtered {
		return []byte{byte(p.Access)}
	}
	raw := make([]byte, 0, len(p.Filters)*FilterLength)
	for _, f := range p.Filters {
		raw = append(raw, f[:]...)
	}
	return raw
}

// RuleFromTLV decodes one complete REF-AR-DO ('E2'). It is the exact
// inverse of ToTLV: RuleFromTLV(r.ToTLV()) reproduces r.
func RuleFromTLV(data []byte) (Rule, error) {
	elems, err := tlv.Decode(data)
	if err != nil {
		return Rule{}, err
	}
	if len(elems) != 1 || elems[0].Tag != TagRefAccessRule {
		return Rule{}, malformedRecordf("expected a single '%s' REF-AR-DO", TagRefAccessRule)
	}
	return ruleFromBody(elems[0].Value)
}

// ruleFromBody decodes the value of a REF-AR-DO.
func ruleFromBody(body []byte) (Rule, error) {
	elems, err := tlv.Decode(body)
	if err != nil {
		return Rule{}, err
	}

	var rule Rule
	var haveRef, haveAR bool

	for _, e := range elems {
		switch e.Tag {
		case TagRef:
			if haveRef {
				return Rule{}, malformedRecordf("duplicate REF-DO")
			}
			haveRef = true
			if err := rule.decodeRef(e.Value); err != nil {
				return Rule{}, err
			}
		case TagAccessRule:
			if haveAR {
				return Rule{}, malformedRecordf("duplicate AR-DO")
			}
			haveAR = true
			if err := rule.decodeAccessRule(e.Value); err != nil {
				return Rule{}, err
			}
		default:
			return Rule{}, malformedRecordf("unexpected tag '%s' in REF-AR-DO", e.Tag)
		}
	}

	if !haveRef {
		return Rule{}, malformedRecordf("missing REF-DO")
	}
	if !haveAR {
		return Rule{}, malformedRecordf("missing AR-DO")
	}
	return rule, nil
}

func (r *Rule) decodeRef(value []byte) error {
	elems, err := tlv.Decode(value)
	if err != nil {
		return err
	}

	var haveAID, haveDev bool
	for _, e := range elems {
		switch e.Tag {
		case TagAIDRef, TagAIDRefEmpty:
			if haveAID {
				return malformedRecordf("duplicate AID reference")
			}
			haveAID = true
			if e.Tag == TagAIDRefEmpty && len(e.Value) > 0 {
				return malformedRecordf("'%s' AID reference must be empty", TagAIDRefEmpty)
			}
			aid, err := AIDRefFrom(e.Value)
			if err != nil {
				return malformedRecordf("AID reference: %v", err)
			}
			r.AID = aid
		case TagDevAppIDRef:
			if haveDev {
				return malformedRecordf("duplicate device application reference")
			}
			haveDev = true
			dev, err := DeviceAppIDFrom(e.Value)
			if err != nil {
				return malformedRecordf("device application reference: %v", err)
			}
			r.DeviceAppID = dev
		case TagPkgRef:
			if r.PackageName != "" {
				return malformedRecordf("duplicate package reference")
			}
			name := string(e.Value)
			if len(name) == 0 {
				return malformedRecordf("package reference must not be empty")
			}
			if err := ValidatePackageName(name); err != nil {
				return malformedRecordf("package reference: %v", err)
			}
			r.PackageName = name
		default:
			return malformedRecordf("unexpected tag '%s' in REF-DO", e.Tag)
		}
	}

	if !haveAID {
		return malformedRecordf("missing AID reference")
	}
	if !haveDev {
		return malformedRecordf("missing device application reference")
	}
	return nil
}

func (r *Rule) decodeAccessRule(value []byte) error {
	elems, err := tlv.Decode(value)
	if err != nil {
		return err
	}

	var haveAPDU, haveNFC bool
	for _, e := range elems {
		switch e.Tag {
		case TagAPDUAccessRule:
			if haveAPDU {
				return malformedRecordf("duplicate APDU rule")
			}
			haveAPDU = true
			policy, err := apduPolicyFromValue(e.Value)
			if err != nil {
				return err
			}
			r.APDU = policy
		case TagNFCAccessRule:
			if haveNFC {
				return malformedRecordf("duplicate NFC rule")
			}
			haveNFC = true
			if len(e.Value) != 1 || e.Value[0] > 0x01 {
				return malformedRecordf("NFC rule must be a single 0x00 or 0x01 byte")
			}
			r.NFC = Access(e.Value[0])
		case TagPermAccessRule:
			if r.Permissions != nil {
				return malformedRecordf("duplicate permission mask")
			}
			perms, err := PermissionsFrom(e.Value)
			if err != nil {
				return malformedRecordf("permission mask: %v", err)
			}
			r.Permissions = &perms
		default:
			return malformedRecordf("unexpected tag '%s' in AR-DO", e.Tag)
		}
	}

	if !haveAPDU {
		return malformedRecordf("missing APDU rule")
	}
	if !haveNFC {
		return malformedRecordf("missing NFC rule")
	}
	return nil
}

func apduPolicyFromValue(value []byte) (APDUPolicy, error) {
	if len(value) == 1 {
		switch value[0] {
		case byte(Never):
			return APDUNever, nil
		case byte(Always):
			return APDUAlways, nil
		default:
			return APDUPolicy{}, malformedRecordf("invalid one-byte APDU rule 0x%02X", value[0])
		}
	}

	filters, err := FiltersFrom(value)
	if err != nil {
		return APDUPolicy{}, malformedRecordf("APDU filter: %v", err)
	}
	return APDUFiltered(filters...), nil
}
