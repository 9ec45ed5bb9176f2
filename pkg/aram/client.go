package aram

import (
	"fmt"

	"github.com/cardforge/aram/pkg/iso7816"
	"github.com/cardforge/aram/pkg/seac"
	"github.com/cardforge/aram/pkg/tlv"
)

// Client drives the ARA-M applet over an ISO 7816 client. It implements
// the Transport interface.
type Client struct {
	client *iso7816.Client
}

// NewClient creates a Client over the given connection.
func NewClient(card iso7816.Transmitter) *Client {
	return &Client{client: iso7816.NewClient(card)}
}

// SelectApplication selects the applet registered under the given label.
// It returns ErrNotFound for an unknown label and for a card that does
// not host the application.
func (c *Client) SelectApplication(label string) error {
	_, err := c.Select(label)
	return err
}

// Select selects the applet registered under the given label and parses
// the File Control Information the card returns. Cards answering a
// SELECT with a bare status word yield a nil FCI.
func (c *Client) Select(label string) (*FCI, error) {
	aid, ok := applicationAIDs[label]
	if !ok {
		return nil, fmt.Errorf("label %q: %w", label, ErrNotFound)
	}

	// Case 3: the transport resolves the FCI via 61XX chaining.
	cmd := iso7816.NewCommandAPDU(iso7816.ClaInterindustry, iso7816.InsSelect, 0x04, 0x00, aid, 0)
	trace, err := c.client.Send(cmd)
	if err != nil {
		return nil, &TransportError{Op: "select", Err: err}
	}

	status := trace.Last().Response.Status
	if status == iso7816.SW_ERR_FILE_NOT_FOUND {
		return nil, fmt.Errorf("label %q: %w", label, ErrNotFound)
	}
	if !trace.IsSuccess() {
		return nil, &TransportError{Op: "select", Err: fmt.Errorf("card returned %s", status.Verbose())}
	}

	data := trace.Data()
	if len(data) == 0 {
		return nil, nil
	}
	fci, err := ParseSelectResponse(data)
	if err != nil {
		return nil, fmt.Errorf("select response: %w", err)
	}
	return fci, nil
}

// SendStoreData persists canonical rule bytes on the applet, one STORE
// DATA [Command-Store-REF-AR-DO] per record.
func (c *Client) SendStoreData(canonical []byte) error {
	store, err := seac.UnmarshalStore(canonical)
	if err != nil {
		return err
	}

	for _, rule := range store.Rules() {
		enc, err := rule.ToTLV()
		if err != nil {
			return err
		}
		if _, err := c.storeData(tlv.Encode(TagCommandStoreRefAR, enc)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAllRules issues STORE DATA [Command-Delete] with an empty value,
// clearing the applet's entire rule store.
func (c *Client) DeleteAllRules() error {
	_, err := c.storeData(tlv.Encode(TagCommandDelete, nil))
	return err
}

// ReadAllData fetches the applet's rule store via GET DATA [All] and
// unwraps the 'FF40' response into canonical rule bytes.
func (c *Client) ReadAllData() ([]byte, error) {
	data, err := c.getData(TagResponseAllRefAR, nil)
	if err != nil {
		return nil, err
	}
	return unwrapAllRefAR("GET DATA [All]", data)
}

// ReadAllViaStoreData fetches the rule store through the STORE DATA
// [Command-Get-All] flow, the alternative SEAC v1.1 provides for cards
// whose GET DATA path is unavailable. The response carries the same
// 'FF40' wrapper as GET DATA [All].
func (c *Client) ReadAllViaStoreData() ([]byte, error) {
	data, err := c.storeData(tlv.Encode(TagCommandGetAll, nil))
	if err != nil {
		return nil, err
	}
	return unwrapAllRefAR("STORE DATA [Get all]", data)
}

func unwrapAllRefAR(op string, data []byte) ([]byte, error) {
	elems, err := tlv.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(elems) != 1 || elems[0].Tag != TagResponseAllRefAR {
		return nil, fmt.Errorf("%s response is not a single '%s' element", op, TagResponseAllRefAR)
	}
	return elems[0].Value, nil
}

// FetchRules reads the applet's rule store into a Store.
func (c *Client) FetchRules() (*seac.Store, error) {
	canonical, err := c.ReadAllData()
	if err != nil {
		return nil, err
	}
	return seac.UnmarshalStore(canonical)
}

// StoreRules pushes every rule of the store to the applet in store order.
func (c *Client) StoreRules(store *seac.Store) error {
	canonical, err := seac.MarshalStore(store)
	if err != nil {
		return err
	}
	return c.SendStoreData(canonical)
}

// GetRefreshTag reads the applet's 8-byte refresh tag. The tag changes
// whenever the rule set changes, letting the device cache rules safely.
func (c *Client) GetRefreshTag() ([]byte, error) {
	data, err := c.getData(TagResponseRefreshTag, nil)
	if err != nil {
		return nil, err
	}

	elems, err := tlv.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(elems) != 1 || elems[0].Tag != TagResponseRefreshTag || len(elems[0].Value) != 8 {
		return nil, fmt.Errorf("GET DATA [Refresh tag] response is not a single 8-byte '%s' element", TagResponseRefreshTag)
	}
	return elems[0].Value, nil
}

// InterfaceVersion is the major/minor/patch triple of the access-control
// interface an endpoint implements.
type InterfaceVersion struct {
	Major, Minor, Patch byte
}

func (v InterfaceVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// GetConfig announces the device's interface version to the applet and
// returns the applet's own version (GET DATA [Config]).
func (c *Client) GetConfig(device InterfaceVersion) (InterfaceVersion, error) {
	cmdDO := tlv.Encode(TagDeviceConfig,
		tlv.Encode(TagInterfaceVersion, []byte{device.Major, device.Minor, device.Patch}))

	data, err := c.getData(TagResponseConfig, cmdDO)
	if err != nil {
		return InterfaceVersion{}, err
	}

	version, err := parseConfigResponse(data)
	if err != nil {
		return InterfaceVersion{}, err
	}
	return version, nil
}

func parseConfigResponse(data []byte) (InterfaceVersion, error) {
	elems, err := tlv.Decode(data)
	if err != nil {
		return InterfaceVersion{}, err
	}
	if len(elems) != 1 || elems[0].Tag != TagResponseConfig {
		return InterfaceVersion{}, fmt.Errorf("GET DATA [Config] response is not a single '%s' element", TagResponseConfig)
	}

	inner, err := tlv.Decode(elems[0].Value)
	if err != nil {
		return InterfaceVersion{}, err
	}
	if len(inner) != 1 || inner[0].Tag != TagAramConfig {
		return InterfaceVersion{}, fmt.Errorf("missing '%s' ARAM-Config-DO", TagAramConfig)
	}

	versionElems, err := tlv.Decode(inner[0].Value)
	if err != nil {
		return InterfaceVersion{}, err
	}
	if len(versionElems) != 1 || versionElems[0].Tag != TagInterfaceVersion || len(versionElems[0].Value) != 3 {
		return InterfaceVersion{}, fmt.Errorf("missing 3-byte '%s' interface version", TagInterfaceVersion)
	}

	v := versionElems[0].Value
	return InterfaceVersion{Major: v[0], Minor: v[1], Patch: v[2]}, nil
}

// storeData sends one STORE DATA command carrying the given data object
// and returns any response data the card attached.
func (c *Client) storeData(do []byte) ([]byte, error) {
	cmd := iso7816.NewCommandAPDU(iso7816.ClaProprietary, iso7816.InsStoreData, 0x90, 0x00, do, 0)
	trace, err := c.client.Send(cmd)
	if err != nil {
		return nil, &TransportError{Op: "store data", Err: err}
	}

	status := trace.Last().Response.Status
	// 63XX after a store is a warning (e.g. rule replaced an existing
	// one), not a failure.
	if !trace.IsSuccess() && !status.IsWarning() {
		return nil, &TransportError{Op: "store data", Err: fmt.Errorf("card returned %s", status.Verbose())}
	}
	return trace.Data(), nil
}

// getData sends GET DATA for the given two-byte tag, with an optional
// command data object.
func (c *Client) getData(tag tlv.Tag, do []byte) ([]byte, error) {
	tagBytes := tag.Bytes()
	if len(tagBytes) != 2 {
		return nil, fmt.Errorf("GET DATA requires a two-byte tag, got '%s'", tag)
	}

	ne := iso7816.MaxShortLe
	if len(do) > 0 {
		// Case 3: the transport resolves the response via 61XX chaining.
		ne = 0
	}

	cmd := iso7816.NewCommandAPDU(iso7816.ClaProprietary, iso7816.InsGetData, tagBytes[0], tagBytes[1], do, ne)
	trace, err := c.client.Send(cmd)
	if err != nil {
		return nil, &TransportError{Op: "get data", Err: err}
	}

	if !trace.IsSuccess() {
		return nil, &TransportError{Op: "get data", Err: fmt.Errorf("card returned %s", trace.Last().Response.Status.Verbose())}
	}
	return trace.Data(), nil
}
