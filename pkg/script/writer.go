package script

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/cardforge/aram/pkg/seac"
)

// Write serializes a store snapshot to script text. The script starts
// with select-target and delete-all so a replay always reconstructs the
// store from a known-empty state, emits one store-rule per record in
// store order, and closes with a read-all snapshot marker.
//
// The target label becomes a single select-target token, so it must be
// non-empty and free of whitespace. Anything else would produce a line
// the parser cannot read back.
func Write(store *seac.Store, target string) (string, error) {
	if target == "" {
		return "", errors.New("script: target label must not be empty")
	}
	if strings.ContainsAny(target, " \t") {
		return "", fmt.Errorf("script: target label %q must not contain whitespace", target)
	}

	var sb strings.Builder

	sb.WriteString("select-target " + target + "\n")
	sb.WriteString("delete-all\n")
	for _, rule := range store.Rules() {
		sb.WriteString(formatStoreRule(rule) + "\n")
	}
	sb.WriteString("read-all\n")

	return sb.String(), nil
}

func formatStoreRule(r seac.Rule) string {
	fields := []string{
		"store-rule",
		"--aid", hexOrEmpty(r.AID.Bytes()),
		"--device-app-id", hexOrEmpty(r.DeviceAppID.Bytes()),
	}

	if r.PackageName != "" {
		fields = append(fields, "--pkg-ref", r.PackageName)
	}

	switch r.APDU.Access {
	case seac.Never:
		fields = append(fields, "--apdu-never")
	case seac.Always:
		fields = append(fields, "--apdu-always")
	case seac.Filtered:
		for _, f := range r.APDU.Filters {
			fields = append(fields, "--apdu-filter", hex.EncodeToString(f[:]))
		}
	}

	switch r.NFC {
	case seac.Never:
		fields = append(fields, "--nfc-never")
	case seac.Always:
		fields = append(fields, "--nfc-always")
	}

	if r.Permissions != nil {
		fields = append(fields, "--android-permissions", hex.EncodeToString(r.Permissions[:]))
	}

	return strings.Join(fields, " ")
}

func hexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return `""`
	}
	return hex.EncodeToString(b)
}
