/*
Package seac implements the rule model and rule store of the GlobalPlatform
Secure Element Access Control specification (SEAC), the data the ARA-M
applet (Access Rule Application Master) keeps on card.

# Access Rules

An access rule answers "may this device application talk to this secure
element application, and how". Each rule pairs a reference (REF-DO) with a
rule definition (AR-DO):

  - The reference names a secure element application by AID (possibly the
    wildcard "all applications") and a device application by the hash of
    its signing certificate (possibly the wildcard "any application").
  - The definition carries the APDU access policy (never, always, or a
    list of header/mask filters), the NFC event policy, and optionally an
    eight-byte Android carrier-privilege permission mask.

On the wire a rule is the nested BER-TLV structure REF-AR-DO ('E2')
containing REF-DO ('E1' with '4F' AID and 'C1' hash) and AR-DO ('E3' with
'D0' APDU rule, 'D1' NFC rule and 'DB' permissions).

# The Store

Store holds rules in insertion order with (AID, device application)
uniqueness: storing a rule whose reference already exists replaces the old
rule and moves it to the end. The order is preserved through Marshal and
Unmarshal so that exporting a store and replaying the export reproduces it
bit for bit.
*/
package seac

import "errors"

// ErrNotFound is returned by lookups whose reference matches no stored rule.
var ErrNotFound = errors.New("rule not found")
