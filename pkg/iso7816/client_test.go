package iso7816

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

// scriptedCard returns pre-recorded responses and records every command
// it receives.
type scriptedCard struct {
	responses [][]byte
	received  [][]byte
}

func (c *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	c.received = append(c.received, bytes.Clone(cmd))
	if len(c.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func raw(h string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(h, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}

func TestClient_Send_Simple(t *testing.T) {
	card := &scriptedCard{responses: [][]byte{raw("0102 9000")}}
	client := NewClient(card)

	trace, err := client.Send(NewCommandAPDU(ClaProprietary, InsGetData, 0xFF, 0x40, nil, MaxShortLe))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(trace) != 1 {
		t.Fatalf("Trace length = %d, want 1", len(trace))
	}
	if !trace.IsSuccess() {
		t.Error("Trace should be successful")
	}
	if !bytes.Equal(trace.Data(), raw("0102")) {
		t.Errorf("Data = %X, want 0102", trace.Data())
	}
}

func TestClient_Send_GetResponseChaining(t *testing.T) {
	// First response announces 4 more bytes (61 04); the client must
	// issue GET RESPONSE and merge the data.
	card := &scriptedCard{responses: [][]byte{
		raw("AABB 6104"),
		raw("CCDDEEFF 9000"),
	}}
	client := NewClient(card)

	trace, err := client.Send(NewCommandAPDU(ClaProprietary, InsGetData, 0xFF, 0x40, nil, MaxShortLe))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(trace) != 2 {
		t.Fatalf("Trace length = %d, want 2", len(trace))
	}
	if !trace.IsSuccess() {
		t.Error("Final transaction should be successful")
	}
	if !bytes.Equal(trace.Data(), raw("AABBCCDDEEFF")) {
		t.Errorf("Merged data = %X, want AABBCCDDEEFF", trace.Data())
	}

	// The second command must be GET RESPONSE with Le = 4.
	if len(card.received) != 2 {
		t.Fatalf("Card received %d commands, want 2", len(card.received))
	}
	if !bytes.Equal(card.received[1], raw("80C0000004")) {
		t.Errorf("GET RESPONSE = %X, want 80C0000004", card.received[1])
	}
}

func TestClient_Send_WrongLengthRetry(t *testing.T) {
	// 6C 02: wrong Le, retry with Le = 2.
	card := &scriptedCard{responses: [][]byte{
		raw("6C02"),
		raw("CAFE 9000"),
	}}
	client := NewClient(card)

	trace, err := client.Send(NewCommandAPDU(ClaProprietary, InsGetData, 0xDF, 0x20, nil, MaxShortLe))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !trace.IsSuccess() {
		t.Error("Final transaction should be successful")
	}
	if !bytes.Equal(trace.Data(), raw("CAFE")) {
		t.Errorf("Data = %X, want CAFE", trace.Data())
	}
	if !bytes.Equal(card.received[1], raw("80CADF2002")) {
		t.Errorf("Retry command = %X, want 80CADF2002", card.received[1])
	}
}

func TestTrace_Empty(t *testing.T) {
	var trace Trace
	if trace.Last() != nil {
		t.Error("Last() on empty trace should be nil")
	}
	if trace.IsSuccess() {
		t.Error("Empty trace should not be successful")
	}
}
