package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"VaultGate/internal/multisig"
	"VaultGate/internal/storage"
	"VaultGate/internal/types"
)

const (
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 1
)

var (
	// ErrChecksumMismatch is returned when a snapshot's records do not hash to its checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnsupportedVersion is returned for snapshots of an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrCorrupt is returned when the snapshot cannot be parsed.
	ErrCorrupt = errors.New("corrupt snapshot")
)

// record is one key/value pair of the ledger.
type record struct {
	key   []byte
	value []byte
}

// Create captures every ledger record of kv into a compressed snapshot.
func Create(kv storage.KV) ([]byte, error) {
	records, err := collect(kv)
	if err != nil {
		return nil, fmt.Errorf("collect records:\n%w", err)
	}

	data := build(records)

	compressed, err := compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot:\n%w", err)
	}

	return compressed, nil
}

// Restore replaces the ledger records of kv with the snapshot's.
// Every record must be one the engine can load, otherwise kv is left
// untouched. Returns the number of records written.
func Restore(kv storage.KV, data []byte) (int, error) {
	raw, err := decompress(data)
	if err != nil {
		return 0, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	records, err := parse(raw)
	if err != nil {
		return 0, err
	}

	for _, r := range records {
		if err := multisig.ValidateRecord(r.key, r.value); err != nil {
			return 0, fmt.Errorf("%w: record %x:\n%w", ErrCorrupt, r.key, err)
		}
	}

	existing, err := collect(kv)
	if err != nil {
		return 0, fmt.Errorf("collect records:\n%w", err)
	}

	ops := make([]storage.Op, 0, len(existing)+len(records))
	for _, r := range existing {
		ops = append(ops, storage.Op{Key: r.key, Delete: true})
	}
	for _, r := range records {
		ops = append(ops, storage.Op{Key: r.key, Value: r.value})
	}

	if err := kv.Apply(ops); err != nil {
		return 0, fmt.Errorf("apply snapshot:\n%w", err)
	}

	return len(records), nil
}

// collect reads every engine record, in key order per prefix.
func collect(kv storage.KV) ([]record, error) {
	var records []record

	for _, prefix := range multisig.RecordPrefixes() {
		err := kv.IteratePrefix(prefix, func(key, value []byte) error {
			records = append(records, record{
				key:   bytes.Clone(key),
				value: bytes.Clone(value),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("iterate %q:\n%w", prefix, err)
		}
	}

	return records, nil
}

// build encodes records as a FlatBuffers Snapshot with its checksum.
func build(records []record) []byte {
	checksum := computeChecksum(snapshotVersion, records)

	builder := flatbuffers.NewBuilder(1024)

	offsets := make([]flatbuffers.UOffsetT, len(records))
	for i, r := range records {
		keyOffset := builder.CreateByteVector(r.key)
		valueOffset := builder.CreateByteVector(r.value)

		types.SnapshotRecordStart(builder)
		types.SnapshotRecordAddKey(builder, keyOffset)
		types.SnapshotRecordAddValue(builder, valueOffset)
		offsets[i] = types.SnapshotRecordEnd(builder)
	}

	types.SnapshotStartRecordsVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	recordsVec := builder.EndVector(len(offsets))

	checksumVec := builder.CreateByteVector(checksum[:])

	types.SnapshotStart(builder)
	types.SnapshotAddVersion(builder, snapshotVersion)
	types.SnapshotAddRecords(builder, recordsVec)
	types.SnapshotAddChecksum(builder, checksumVec)
	builder.Finish(types.SnapshotEnd(builder))

	return builder.FinishedBytes()
}

// parse decodes a snapshot and verifies its version and checksum.
func parse(data []byte) (records []record, err error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}

	// malformed offsets make the generated accessors panic
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	snap := types.GetRootAsSnapshot(data, 0)

	if v := snap.Version(); v != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	records = make([]record, snap.RecordsLength())

	var rec types.SnapshotRecord
	for i := range records {
		if !snap.Records(&rec, i) {
			return nil, fmt.Errorf("%w: record %d", ErrCorrupt, i)
		}

		records[i] = record{
			key:   bytes.Clone(rec.KeyBytes()),
			value: bytes.Clone(rec.ValueBytes()),
		}
	}

	expected := computeChecksum(snap.Version(), records)
	if !bytes.Equal(snap.ChecksumBytes(), expected[:]) {
		return nil, ErrChecksumMismatch
	}

	return records, nil
}

// computeChecksum hashes the version and the length-prefixed records.
func computeChecksum(version uint32, records []record) [32]byte {
	hasher := blake3.New()

	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], version)
	hasher.Write(buf[:])

	for _, r := range records {
		binary.BigEndian.PutUint32(buf[:], uint32(len(r.key)))
		hasher.Write(buf[:])
		hasher.Write(r.key)

		binary.BigEndian.PutUint32(buf[:], uint32(len(r.value)))
		hasher.Write(buf[:])
		hasher.Write(r.value)
	}

	var checksum [32]byte
	hasher.Sum(checksum[:0])

	return checksum
}

// compress compresses data using zstd.
func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompress decompresses zstd data.
func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
