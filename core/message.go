package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const (
	DiscoveryPort        = 45678
	TransferPort  uint16 = 45679

	ChunkSize          = 64 * 1024
	MaxDatagramSize    = 4096
	MaxControlLineSize = 64 * 1024

	delim = '\n'

	tagQuery     = "Query"
	tagAnnounce  = "Announce"
	tagFileOffer = "FileOffer"
	tagAccept    = "Accept"
	tagReject    = "Reject"
	tagComplete  = "Complete"
)

// EncodedDiscoveryMessage is exactly one datagram body.
type EncodedDiscoveryMessage []byte

// EncodedTransferMessage is one control frame, terminated by '\n'.
type EncodedTransferMessage []byte

type DiscoveryMessage interface {
	Encoded() (EncodedDiscoveryMessage, error)
}

type TransferMessage interface {
	Encoded() (EncodedTransferMessage, error)
}

// Query is broadcast by a host looking for peers.
type Query struct{}

// Announce identifies a receiver and the TCP port it accepts files on.
type Announce struct {
	Name         string `json:"name"`
	TransferPort uint16 `json:"transfer_port"`
}

type FileOffer struct {
	Filename string `json:"filename"`
	Size     uint64 `json:"size"`
}

type Accept struct{}

type Reject struct{}

// Complete is part of the message family but is never sent, the sender
// finishes as soon as the last payload byte is written.
type Complete struct{}

func (Query) Encoded() (EncodedDiscoveryMessage, error) {
	return json.Marshal(tagQuery)
}

func (a Announce) Encoded() (EncodedDiscoveryMessage, error) {
	if strings.TrimSpace(a.Name) == "" || a.TransferPort == 0 {
		return nil, ErrMalformedDiscoveryMessage
	}

	return json.Marshal(map[string]Announce{tagAnnounce: a})
}

func (f FileOffer) Encoded() (EncodedTransferMessage, error) {
	b, err := json.Marshal(map[string]FileOffer{tagFileOffer: f})
	if err != nil {
		return nil, err
	}

	return append(b, delim), nil
}

func (Accept) Encoded() (EncodedTransferMessage, error) {
	return encodeUnit(tagAccept)
}

func (Reject) Encoded() (EncodedTransferMessage, error) {
	return encodeUnit(tagReject)
}

func (Complete) Encoded() (EncodedTransferMessage, error) {
	return encodeUnit(tagComplete)
}

func encodeUnit(tag string) (EncodedTransferMessage, error) {
	b, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	return append(b, delim), nil
}

func (e EncodedDiscoveryMessage) String() string {
	return string(e)
}

func (e EncodedTransferMessage) String() string {
	return string(e)
}

// Parse decodes a datagram. Any input that is not one of the known
// variants yields ErrMalformedDiscoveryMessage.
func (e EncodedDiscoveryMessage) Parse() (DiscoveryMessage, error) {
	tag, body, ok := splitTag(e)
	if !ok {
		return nil, ErrMalformedDiscoveryMessage
	}

	switch tag {
	case tagQuery:
		if !isUnitBody(body) {
			return nil, ErrMalformedDiscoveryMessage
		}
		return Query{}, nil
	case tagAnnounce:
		var fields struct {
			Name         *string `json:"name"`
			TransferPort *uint16 `json:"transfer_port"`
		}
		if body == nil || json.Unmarshal(body, &fields) != nil {
			return nil, ErrMalformedDiscoveryMessage
		}
		if fields.Name == nil || fields.TransferPort == nil {
			return nil, ErrMalformedDiscoveryMessage
		}
		if strings.TrimSpace(*fields.Name) == "" || *fields.TransferPort == 0 {
			return nil, ErrMalformedDiscoveryMessage
		}
		return Announce{Name: *fields.Name, TransferPort: *fields.TransferPort}, nil
	}

	return nil, ErrMalformedDiscoveryMessage
}

// Parse decodes one control frame; the trailing delimiter is optional.
func (e EncodedTransferMessage) Parse() (TransferMessage, error) {
	tag, body, ok := splitTag(bytes.TrimSpace(e))
	if !ok {
		return nil, ErrMalformedTransferMessage
	}

	switch tag {
	case tagFileOffer:
		var fields struct {
			Filename *string `json:"filename"`
			Size     *uint64 `json:"size"`
		}
		if body == nil || json.Unmarshal(body, &fields) != nil {
			return nil, ErrMalformedTransferMessage
		}
		if fields.Filename == nil || fields.Size == nil {
			return nil, ErrMalformedTransferMessage
		}
		return FileOffer{Filename: *fields.Filename, Size: *fields.Size}, nil
	case tagAccept:
		if isUnitBody(body) {
			return Accept{}, nil
		}
	case tagReject:
		if isUnitBody(body) {
			return Reject{}, nil
		}
	case tagComplete:
		if isUnitBody(body) {
			return Complete{}, nil
		}
	}

	return nil, ErrMalformedTransferMessage
}

// ReadTransferMessage reads and decodes exactly one control frame. Bytes
// after the delimiter stay buffered in rd.
func ReadTransferMessage(rd *bufio.Reader) (TransferMessage, error) {
	var line []byte

	for {
		chunk, err := rd.ReadSlice(delim)
		line = append(line, chunk...)

		if len(line) > MaxControlLineSize {
			return nil, ErrControlLineTooLong
		}

		if err == nil {
			break
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if errors.Is(err, io.EOF) && len(line) > 0 {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, err
	}

	return EncodedTransferMessage(line).Parse()
}

// splitTag accepts both externally tagged forms: a bare string for unit
// variants ("Accept") and a single-key object ({"FileOffer":{...}}).
func splitTag(data []byte) (string, json.RawMessage, bool) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		return tag, nil, true
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil || len(tagged) != 1 {
		return "", nil, false
	}

	for k, v := range tagged {
		return k, v, true
	}

	return "", nil, false
}

func isUnitBody(body json.RawMessage) bool {
	return body == nil || bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}
