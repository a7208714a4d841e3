package wasm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs/v2"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// Guest ABI: every call crosses the boundary as a JSON payload in guest
// memory, addressed by a single i64 packing a 32-bit pointer in the upper
// half and a 32-bit length in the lower half. Guests export "allocate" so
// the host can place payloads; guest exports take (ptr, len) and return a
// packed i64. Host imports take a packed i64 and return one.
//
// Payloads:
//
//	call request   {"args": [...]}
//	call response  {"ok": <result>} or {"error": "<message>"}

// packPtrLen packs a guest pointer and payload length into one i64.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen splits a packed i64 back into pointer and length.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// encodeCallRequest builds the request payload for a call with the given
// arguments. Marshaling cannot fail: every value variant has a JSON form.
func encodeCallRequest(args []value.Value) []byte {
	if args == nil {
		args = []value.Value{}
	}
	data, err := json.Marshal(map[string][]value.Value{"args": args})
	if err != nil {
		return []byte(`{"args":[]}`)
	}
	return data
}

// parseEnvelope parses a JSON payload with UseNumber enabled. Numbers stay
// json.Number so whole numbers project to Int, not Float; without this every
// integer crossing the boundary would widen and lose its kind.
func parseEnvelope(data []byte) (*gabs.Container, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return gabs.ParseJSONDecoder(dec)
}

// decodeCallRequest extracts the argument list from a request payload sent
// by a guest to a host function.
func decodeCallRequest(data []byte) ([]value.Value, error) {
	envelope, err := parseEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("malformed call request: %w", err)
	}
	argsNode := envelope.Path("args")
	if argsNode == nil {
		return nil, fmt.Errorf("malformed call request: missing args")
	}
	children := argsNode.Children()
	args := make([]value.Value, len(children))
	for i, child := range children {
		args[i] = value.FromInterface(child.Data())
	}
	return args, nil
}

// encodeResult builds a success response payload.
func encodeResult(result value.Value) []byte {
	data, err := json.Marshal(map[string]value.Value{"ok": result})
	if err != nil {
		return encodeError(err.Error())
	}
	return data
}

// encodeError builds a failure response payload.
func encodeError(message string) []byte {
	data, _ := json.Marshal(map[string]string{"error": message})
	return data
}

// decodeCallResponse interprets a guest response payload: an error envelope
// becomes a CallError attributed to function, an ok envelope becomes the
// result value, and anything else is a guest contract violation.
func decodeCallResponse(function string, data []byte) (value.Value, error) {
	envelope, err := parseEnvelope(data)
	if err != nil {
		return value.Null(), &sdk.RuntimeError{
			Runtime: runtimeName,
			Message: fmt.Sprintf("malformed response from function %q", function),
			Err:     err,
		}
	}

	if errNode := envelope.Path("error"); errNode != nil {
		msg, ok := errNode.Data().(string)
		if !ok {
			msg = errNode.String()
		}
		return value.Null(), &sdk.CallError{Function: function, Message: msg}
	}
	if okNode := envelope.Search("ok"); okNode != nil {
		return value.FromInterface(okNode.Data()), nil
	}
	return value.Null(), &sdk.RuntimeError{
		Runtime: runtimeName,
		Message: fmt.Sprintf("response from function %q has neither ok nor error", function),
	}
}
