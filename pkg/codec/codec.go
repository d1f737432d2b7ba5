package codec

import (
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
)

// isccEncoding is the base32 variant ISCC uses for header+body strings:
// RFC 4648 base32, upper-case, no padding.
var isccEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// isccIDHeader is the fixed 16-bit header for an ISCC-ID: MainType=0110,
// SubType=0000, Version=0001, Length=0001.
const isccIDHeader uint16 = 0b0110_0000_0001_0001

const isccPrefix = "ISCC:"

// serverIDBits is the width of the server-id field packed into the low
// bits of an ISCC-ID body.
const serverIDBits = 12
const serverIDMask = 1<<serverIDBits - 1
const maxTsMicros = 1<<(64-serverIDBits) - 1 // 52-bit ceiling

// EncodeIsccID produces the `ISCC:` + base32(header‖body) wire form of an
// ISCC-ID: a 16-bit header followed by the 64-bit body
// (ts_µs:52 ‖ server_id:12), big-endian.
func EncodeIsccID(tsMicros uint64, serverID uint16) (string, error) {
	if tsMicros > maxTsMicros {
		return "", fmt.Errorf("%w: ts_micros %d exceeds 52 bits", ErrMalformed, tsMicros)
	}
	if serverID > serverIDMask {
		return "", fmt.Errorf("%w: server_id %d exceeds 12 bits", ErrMalformed, serverID)
	}

	body := tsMicros<<serverIDBits | uint64(serverID)

	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf[0:2], isccIDHeader)
	binary.BigEndian.PutUint64(buf[2:10], body)

	return isccPrefix + isccEncoding.EncodeToString(buf), nil
}

// DecodeIsccID reverses EncodeIsccID, validating the fixed header and the
// decoded length.
func DecodeIsccID(s string) (tsMicros uint64, serverID uint16, err error) {
	rest, ok := strings.CutPrefix(s, isccPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("%w: missing %q prefix", ErrMalformed, isccPrefix)
	}

	buf, err := isccEncoding.DecodeString(strings.ToUpper(rest))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid base32: %v", ErrMalformed, err)
	}
	if len(buf) != 10 {
		return 0, 0, fmt.Errorf("%w: decoded length %d, want 10", ErrMalformed, len(buf))
	}

	header := binary.BigEndian.Uint16(buf[0:2])
	if header != isccIDHeader {
		return 0, 0, fmt.Errorf("%w: header %#04x, want %#04x", ErrMalformed, header, isccIDHeader)
	}

	body := binary.BigEndian.Uint64(buf[2:10])
	ts := body >> serverIDBits
	sid := uint16(body & serverIDMask)

	return ts, sid, nil
}

// ParsedCode reports the shape of an ISCC-CODE: how many units it composes,
// used by callers to size replication fan-out. UnitTypes has UnitCount
// entries, all zero (MainTypeMeta): the MainType of each unit is not
// decoded. The HUB does not decode unit bodies.
type ParsedCode struct {
	UnitCount int
	UnitTypes []MainType
}

// MainType mirrors the ISCC header's 4-bit MainType field.
type MainType byte

// ISCC MainTypes relevant to composite codes and units. Values follow the
// ISCC specification's header nibble assignment.
const (
	MainTypeMeta     MainType = 0b0000
	MainTypeSemantic MainType = 0b0001
	MainTypeContent  MainType = 0b0010
	MainTypeData     MainType = 0b0011
	MainTypeInstance MainType = 0b0100
	MainTypeISCC     MainType = 0b0101
)

// UnitHeader is the decoded header of a single ISCC-UNIT.
type UnitHeader struct {
	MainType MainType
	SubType  byte
	Version  byte
	Length   byte
}

// headerNibbles extracts the 4-bit MainType/SubType/Version/Length fields
// packed into the leading 16 bits of any decoded ISCC header+body buffer.
func headerNibbles(header uint16) (mainType MainType, subType, version, length byte) {
	mainType = MainType(header >> 12 & 0xF)
	subType = byte(header >> 8 & 0xF)
	version = byte(header >> 4 & 0xF)
	length = byte(header & 0xF)
	return
}

// decodeHeader base32-decodes s (without requiring the `ISCC:` prefix,
// since units and codes may appear either bare or prefixed) and returns the
// raw buffer along with its 16-bit header.
func decodeHeader(s string) (buf []byte, header uint16, err error) {
	s = strings.TrimPrefix(s, isccPrefix)
	buf, err = isccEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid base32: %v", ErrMalformed, err)
	}
	if len(buf) < 2 {
		return nil, 0, fmt.Errorf("%w: too short for a header", ErrMalformed)
	}
	header = binary.BigEndian.Uint16(buf[0:2])
	return buf, header, nil
}

// DecodeUnit decodes a single ISCC-UNIT header, used by the note validator
// to check the shape of a note's `units[]` entries.
func DecodeUnit(s string) (UnitHeader, error) {
	_, header, err := decodeHeader(s)
	if err != nil {
		return UnitHeader{}, err
	}

	mainType, subType, version, length := headerNibbles(header)
	if mainType == MainTypeISCC {
		return UnitHeader{}, fmt.Errorf("%w: ISCC-UNIT header has composite MainType", ErrMalformed)
	}

	return UnitHeader{MainType: mainType, SubType: subType, Version: version, Length: length}, nil
}

// ParseIsccCode checks that s carries the composite ISCC MainType and
// reports how many component units it composes. The number of units is
// derived from the code's body length at 8 bytes per unit. The MainType of
// each unit is not decoded; the returned UnitTypes entries are all zero.
func ParseIsccCode(s string) (ParsedCode, error) {
	buf, header, err := decodeHeader(s)
	if err != nil {
		return ParsedCode{}, err
	}

	mainType, _, _, _ := headerNibbles(header)
	if mainType != MainTypeISCC {
		return ParsedCode{}, fmt.Errorf("%w: not an ISCC-CODE (MainType %#x)", ErrMalformed, mainType)
	}

	// Each component unit contributes an 8-byte body in a composite code;
	// the body following the 2-byte header is evenly divisible by 8.
	bodyLen := len(buf) - 2
	if bodyLen <= 0 || bodyLen%8 != 0 {
		return ParsedCode{}, fmt.Errorf("%w: body length %d not a multiple of unit width", ErrMalformed, bodyLen)
	}

	unitCount := bodyLen / 8
	return ParsedCode{UnitCount: unitCount, UnitTypes: make([]MainType, unitCount)}, nil
}
