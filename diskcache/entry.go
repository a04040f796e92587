package diskcache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/gqlstore"
)

// Entry layout: kind byte, msgpack body (records only), then the xxhash of
// everything before it as a little-endian uint64.
const (
	kindRecord  byte = 1
	kindDeleted byte = 2

	checksumSize = 8
)

var (
	errTruncated        = errors.New("entry truncated")
	errChecksumMismatch = errors.New("checksum mismatch")
)

func encodeRecord(rec *gqlstore.Record) ([]byte, error) {
	var buf bytes.Buffer
	if rec == nil {
		buf.WriteByte(kindDeleted)
	} else {
		buf.WriteByte(kindRecord)
		enc := msgpack.GetEncoder()
		enc.ResetDict(&buf, nil)
		enc.SetSortMapKeys(true)
		err := enc.Encode(rec)
		msgpack.PutEncoder(enc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %s using MsgPack: %w", rec.ID, err)
		}
	}
	return binary.LittleEndian.AppendUint64(buf.Bytes(), xxhash.Sum64(buf.Bytes())), nil
}

// decodeRecord returns a nil record for a tombstone.
func decodeRecord(data []byte) (*gqlstore.Record, error) {
	n := len(data)
	if n < 1+checksumSize {
		return nil, &gqlstore.DataError{Data: data, Err: errTruncated, Msg: "invalid cache entry"}
	}
	payload := data[:n-checksumSize]
	if xxhash.Sum64(payload) != binary.LittleEndian.Uint64(data[n-checksumSize:]) {
		return nil, &gqlstore.DataError{Data: data, Off: n - checksumSize, Err: errChecksumMismatch, Msg: "invalid cache entry"}
	}
	switch payload[0] {
	case kindDeleted:
		return nil, nil
	case kindRecord:
		dec := msgpack.NewDecoder(bytes.NewReader(payload[1:]))
		dec.UseLooseInterfaceDecoding(true)
		var rec gqlstore.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, &gqlstore.DataError{Data: data, Off: 1, Err: err, Msg: "failed to decode cached record"}
		}
		return &rec, nil
	default:
		return nil, &gqlstore.DataError{Data: data, Msg: fmt.Sprintf("unknown cache entry kind 0x%02x", payload[0])}
	}
}

func rootCallKey(storageKey, identArg string) []byte {
	return []byte(storageKey + "\x00" + identArg)
}
