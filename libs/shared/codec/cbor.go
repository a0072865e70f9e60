// Package codec provides the deterministic CBOR encoding used for sealed
// submission payloads.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding: sorted map keys, shortest
// integer forms, no indefinite-length items.
var encMode cbor.EncMode

// decMode rejects invalid UTF-8 in text strings and duplicate map keys.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
		UTF8:      cbor.UTF8RejectInvalid,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
