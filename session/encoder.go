package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

// CurrentSchemaVersion is the schema version written by [Encode].
const CurrentSchemaVersion uint8 = sessionFormatVersionCurrent

// ErrInvalidEncoding is returned by [Decode] for blobs it cannot parse.
var ErrInvalidEncoding = errors.New("invalid session encoding")

// Encode serializes s into the current binary format.
//
// Layout (v2): version | len(sid) sid | len(uid) uid | u16 len(token) token | created | expires.
// v1 blobs carry no session ID.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 2 + len(s.SessionID) + len(s.UserID) + 2 + len(s.AccessToken) + 16)

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.SessionID) > 255 {
		return nil, errors.New("sessionID too long")
	}
	buf.WriteByte(byte(len(s.SessionID)))
	buf.WriteString(s.SessionID)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if len(s.AccessToken) > math.MaxUint16 {
		return nil, errors.New("access token too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.AccessToken))); err != nil {
		return nil, err
	}
	buf.WriteString(s.AccessToken)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode] (any supported version). The returned
// session records the version it was read from in SchemaVersion.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return nil, ErrInvalidEncoding
	}

	s := &Session{SchemaVersion: version}

	if version == sessionFormatVersionCurrent {
		if s.SessionID, err = readShortString(reader); err != nil {
			return nil, ErrInvalidEncoding
		}
	}

	if s.UserID, err = readShortString(reader); err != nil {
		return nil, ErrInvalidEncoding
	}

	var tokenLen uint16
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return nil, ErrInvalidEncoding
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, token); err != nil {
		return nil, ErrInvalidEncoding
	}
	s.AccessToken = string(token)

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrInvalidEncoding
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrInvalidEncoding
	}
	if reader.Len() != 0 {
		return nil, ErrInvalidEncoding
	}

	return s, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
