package gqlstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type Encoding int

const (
	MsgPack Encoding = iota
	JSON
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("invalid encoding %d", int(enc))
	}
}

func (enc Encoding) encode(v any) ([]byte, error) {
	switch enc {
	case MsgPack:
		var buf bytes.Buffer
		e := msgpack.GetEncoder()
		e.ResetDict(&buf, nil)
		e.SetSortMapKeys(true)
		err := e.Encode(v)
		msgpack.PutEncoder(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
		}
		return buf.Bytes(), nil
	case JSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T to JSON: %w", v, err)
		}
		return raw, nil
	default:
		panic(invariantf("unsupported encoding %v", enc))
	}
}

// decode fills the value pointed to by ptr. Untyped MsgPack values decode
// loosely: integers as int64 or uint64, floats as float64.
func (enc Encoding) decode(buf []byte, ptr any) error {
	switch enc {
	case MsgPack:
		d := msgpack.NewDecoder(bytes.NewReader(buf))
		d.UseLooseInterfaceDecoding(true)
		if err := d.Decode(ptr); err != nil {
			return dataErrf(buf, 0, err, "failed to decode msgpack into %T", ptr)
		}
		return nil
	case JSON:
		if err := json.Unmarshal(buf, ptr); err != nil {
			return dataErrf(buf, 0, err, "failed to decode JSON into %T", ptr)
		}
		return nil
	default:
		panic(invariantf("unsupported encoding %v", enc))
	}
}
