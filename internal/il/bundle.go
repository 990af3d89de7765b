package il

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// bundleMagic prefixes every serialized module: "MNCB"
var bundleMagic = [4]byte{'M', 'N', 'C', 'B'}

// bundleVersion is the current payload version
const bundleVersion byte = 0x01

// bundleHeaderSize is magic plus version
const bundleHeaderSize = 5

var (
	ErrBundleTooShort  = errors.New("bytecode data too short")
	ErrBundleMagic     = errors.New("invalid magic number, expected MNCB")
	ErrBundleVersion   = errors.New("unsupported bytecode version")
	errBundleNilModule = errors.New("cannot serialize nil module")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("il: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal converts a Module to binary format.
// Format:
// - Magic number (4 bytes): "MNCB"
// - Version (1 byte)
// - Canonical CBOR encoded Module
func (m *Module) Marshal() ([]byte, error) {
	if m == nil {
		return nil, errBundleNilModule
	}

	payload, err := cborEncMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("module cbor encoding failed: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, bundleHeaderSize+len(payload)))
	buf.Write(bundleMagic[:])
	buf.WriteByte(bundleVersion)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Unmarshal reads a serialized module and validates it.
func Unmarshal(data []byte) (*Module, error) {
	if len(data) < bundleHeaderSize {
		return nil, ErrBundleTooShort
	}
	if !bytes.Equal(data[:4], bundleMagic[:]) {
		return nil, ErrBundleMagic
	}
	if data[4] != bundleVersion {
		return nil, fmt.Errorf("%w: %d", ErrBundleVersion, data[4])
	}

	var m Module
	if err := cbor.Unmarshal(data[bundleHeaderSize:], &m); err != nil {
		return nil, fmt.Errorf("il: unmarshal module: %w", err)
	}
	if m.ExportedFunctions == nil {
		m.ExportedFunctions = make(map[string]int)
	}
	if m.ExportedEnumValues == nil {
		m.ExportedEnumValues = make(map[string]int32)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("il: invalid module: %w", err)
	}
	return &m, nil
}

// IsBundle reports whether data starts with the module magic number.
func IsBundle(data []byte) bool {
	return len(data) >= bundleHeaderSize && bytes.Equal(data[:4], bundleMagic[:])
}
