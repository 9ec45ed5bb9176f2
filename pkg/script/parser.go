package script

import (
	"encoding/hex"
	"strings"

	"github.com/cardforge/aram/pkg/seac"
)

// Parse converts script text into its operation sequence. It fails with
// *UnsupportedOperationError on operations outside the grammar and
// *MalformedFieldError on field encodings it rejects; both carry the
// 1-based source line.
func Parse(text string) ([]Op, error) {
	var ops []Op

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens := strings.Fields(line)
		switch tokens[0] {
		case "select-target":
			if len(tokens) != 2 {
				return nil, &MalformedFieldError{SourceLine: lineNo, Field: "label", Reason: "select-target takes exactly one label"}
			}
			ops = append(ops, SelectTarget{lineInfo: lineInfo(lineNo), Label: tokens[1]})

		case "delete-all":
			if len(tokens) != 1 {
				return nil, &MalformedFieldError{SourceLine: lineNo, Field: "delete-all", Reason: "takes no arguments"}
			}
			ops = append(ops, DeleteAll{lineInfo: lineInfo(lineNo)})

		case "store-rule":
			rule, err := parseStoreRule(lineNo, tokens[1:])
			if err != nil {
				return nil, err
			}
			ops = append(ops, StoreRule{lineInfo: lineInfo(lineNo), Rule: rule})

		case "read-all":
			if len(tokens) != 1 {
				return nil, &MalformedFieldError{SourceLine: lineNo, Field: "read-all", Reason: "takes no arguments"}
			}
			ops = append(ops, ReadAll{lineInfo: lineInfo(lineNo)})

		default:
			return nil, &UnsupportedOperationError{SourceLine: lineNo, Name: tokens[0]}
		}
	}

	return ops, nil
}

// storeRuleParser accumulates the flags of one store-rule line.
type storeRuleParser struct {
	line    int
	aid     *seac.AIDRef
	dev     *seac.DeviceAppID
	pkg     *string
	apdu    *seac.APDUPolicy
	filters []seac.Filter
	nfc     *seac.Access
	perms   *seac.Permissions
}

func parseStoreRule(lineNo int, tokens []string) (seac.Rule, error) {
	p := storeRuleParser{line: lineNo}

	i := 0
	for i < len(tokens) {
		flag := tokens[i]
		i++

		// Flags taking a value consume the next token.
		var value string
		switch flag {
		case "--aid", "--device-app-id", "--pkg-ref", "--apdu-filter", "--android-permissions":
			if i >= len(tokens) {
				return seac.Rule{}, p.malformed(flag, "missing value")
			}
			value = tokens[i]
			i++
		}

		var err error
		switch flag {
		case "--aid":
			err = p.setAID(flag, value)
		case "--device-app-id":
			err = p.setDeviceAppID(flag, value)
		case "--pkg-ref":
			err = p.setPkgRef(flag, value)
		case "--apdu-never":
			err = p.setAPDU(flag, seac.APDUNever)
		case "--apdu-always":
			err = p.setAPDU(flag, seac.APDUAlways)
		case "--apdu-filter":
			err = p.addFilter(flag, value)
		case "--nfc-never":
			err = p.setNFC(flag, seac.Never)
		case "--nfc-always":
			err = p.setNFC(flag, seac.Always)
		case "--android-permissions":
			err = p.setPermissions(flag, value)
		default:
			err = p.malformed(flag, "unknown flag")
		}
		if err != nil {
			return seac.Rule{}, err
		}
	}

	return p.finish()
}

func (p *storeRuleParser) malformed(field, reason string) error {
	return &MalformedFieldError{SourceLine: p.line, Field: field, Reason: reason}
}

// decodeHexValue interprets a field value: the literal `""` is the empty
// byte sequence, anything else must be valid hex.
func (p *storeRuleParser) decodeHexValue(field, value string) ([]byte, error) {
	if value == `""` {
		return nil, nil
	}
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, p.malformed(field, "invalid hex: "+value)
	}
	return b, nil
}

func (p *storeRuleParser) setAID(flag, value string) error {
	if p.aid != nil {
		return p.malformed(flag, "duplicate flag")
	}
	raw, err := p.decodeHexValue(flag, value)
	if err != nil {
		return err
	}
	aid, err := seac.AIDRefFrom(raw)
	if err != nil {
		return p.malformed(flag, err.Error())
	}
	p.aid = &aid
	return nil
}

func (p *storeRuleParser) setDeviceAppID(flag, value string) error {
	if p.dev != nil {
		return p.malformed(flag, "duplicate flag")
	}
	raw, err := p.decodeHexValue(flag, value)
	if err != nil {
		return err
	}
	dev, err := seac.DeviceAppIDFrom(raw)
	if err != nil {
		return p.malformed(flag, err.Error())
	}
	p.dev = &dev
	return nil
}

func (p *storeRuleParser) setPkgRef(flag, value string) error {
	if p.pkg != nil {
		return p.malformed(flag, "duplicate flag")
	}
	if value == "" || value == `""` {
		return p.malformed(flag, "package name must not be empty")
	}
	if err := seac.ValidatePackageName(value); err != nil {
		return p.malformed(flag, err.Error())
	}
	p.pkg = &value
	return nil
}

func (p *storeRuleParser) setAPDU(flag string, policy seac.APDUPolicy) error {
	if p.apdu != nil || len(p.filters) > 0 {
		return p.malformed(flag, "conflicting APDU policy flags")
	}
	p.apdu = &policy
	return nil
}

func (p *storeRuleParser) addFilter(flag, value string) error {
	if p.apdu != nil {
		return p.malformed(flag, "conflicting APDU policy flags")
	}
	raw, err := p.decodeHexValue(flag, value)
	if err != nil {
		return err
	}
	filters, err := seac.FiltersFrom(raw)
	if err != nil {
		return p.malformed(flag, err.Error())
	}
	p.filters = append(p.filters, filters...)
	return nil
}

func (p *storeRuleParser) setNFC(flag string, access seac.Access) error {
	if p.nfc != nil {
		return p.malformed(flag, "conflicting NFC policy flags")
	}
	p.nfc = &access
	return nil
}

func (p *storeRuleParser) setPermissions(flag, value string) error {
	if p.perms != nil {
		return p.malformed(flag, "duplicate flag")
	}
	raw, err := p.decodeHexValue(flag, value)
	if err != nil {
		return err
	}
	perms, err := seac.PermissionsFrom(raw)
	if err != nil {
		return p.malformed(flag, err.Error())
	}
	p.perms = &perms
	return nil
}

func (p *storeRuleParser) finish() (seac.Rule, error) {
	if p.aid == nil {
		return seac.Rule{}, p.malformed("--aid", "required flag missing")
	}
	if p.dev == nil {
		return seac.Rule{}, p.malformed("--device-app-id", "required flag missing")
	}
	if p.apdu == nil && len(p.filters) == 0 {
		return seac.Rule{}, p.malformed("--apdu-never|--apdu-always|--apdu-filter", "one APDU policy flag required")
	}
	if p.nfc == nil {
		return seac.Rule{}, p.malformed("--nfc-never|--nfc-always", "one NFC policy flag required")
	}

	rule := seac.Rule{
		AID:         *p.aid,
		DeviceAppID: *p.dev,
		NFC:         *p.nfc,
		Permissions: p.perms,
	}
	if p.pkg != nil {
		rule.PackageName = *p.pkg
	}
	if p.apdu != nil {
		rule.APDU = *p.apdu
	} else {
		rule.APDU = seac.APDUFiltered(p.filters...)
	}
	return rule, nil
}
