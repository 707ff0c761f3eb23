package core

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryWireFormat(t *testing.T) {
	q, err := Query{}.Encoded()
	require.NoError(t, err)
	assert.Equal(t, `"Query"`, q.String())

	a, err := Announce{Name: "bravo", TransferPort: 45679}.Encoded()
	require.NoError(t, err)
	assert.Equal(t, `{"Announce":{"name":"bravo","transfer_port":45679}}`, a.String())

	parsed, err := a.Parse()
	require.NoError(t, err)
	assert.Equal(t, Announce{Name: "bravo", TransferPort: 45679}, parsed)

	parsed, err = q.Parse()
	require.NoError(t, err)
	assert.Equal(t, Query{}, parsed)
}

func TestAnnounceEncodeInvalid(t *testing.T) {
	_, err := Announce{Name: "  ", TransferPort: 1}.Encoded()
	assert.ErrorIs(t, err, ErrMalformedDiscoveryMessage)

	_, err = Announce{Name: "bravo"}.Encoded()
	assert.ErrorIs(t, err, ErrMalformedDiscoveryMessage)
}

func TestParseDiscoveryMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "garbage", data: "\x00\x01magic bytes"},
		{name: "truncated json", data: `{"Announce":{"name":"bravo"`},
		{name: "unknown tag", data: `"Hello"`},
		{name: "unknown object tag", data: `{"Hello":{}}`},
		{name: "two tags", data: `{"Query":null,"Announce":{"name":"a","transfer_port":1}}`},
		{name: "announce missing port", data: `{"Announce":{"name":"bravo"}}`},
		{name: "announce missing name", data: `{"Announce":{"transfer_port":45679}}`},
		{name: "announce empty name", data: `{"Announce":{"name":"","transfer_port":45679}}`},
		{name: "announce zero port", data: `{"Announce":{"name":"bravo","transfer_port":0}}`},
		{name: "announce port overflow", data: `{"Announce":{"name":"bravo","transfer_port":70000}}`},
		{name: "announce null body", data: `{"Announce":null}`},
		{name: "query with payload", data: `{"Query":{"name":"x"}}`},
		{name: "transfer message", data: `"Accept"`},
		{name: "old broadcast format", data: `{"type":"hello","data":":8080","name":"TEST"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := EncodedDiscoveryMessage(tt.data).Parse()
			assert.ErrorIs(t, err, ErrMalformedDiscoveryMessage)
			assert.Nil(t, msg)
		})
	}
}

func TestParseQueryObjectForm(t *testing.T) {
	msg, err := EncodedDiscoveryMessage(`{"Query":null}`).Parse()
	require.NoError(t, err)
	assert.Equal(t, Query{}, msg)
}

func TestTransferWireFormat(t *testing.T) {
	tests := []struct {
		name     string
		msg      TransferMessage
		expected string
	}{
		{
			name:     "file offer",
			msg:      FileOffer{Filename: "report.pdf", Size: 250000},
			expected: `{"FileOffer":{"filename":"report.pdf","size":250000}}` + "\n",
		},
		{name: "accept", msg: Accept{}, expected: `"Accept"` + "\n"},
		{name: "reject", msg: Reject{}, expected: `"Reject"` + "\n"},
		{name: "complete", msg: Complete{}, expected: `"Complete"` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := tt.msg.Encoded()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, encoded.String())
			assert.Equal(t, 1, strings.Count(encoded.String(), "\n"))

			parsed, err := encoded.Parse()
			require.NoError(t, err)
			assert.Equal(t, tt.msg, parsed)
		})
	}
}

func TestFileOfferKeepsFilenameVerbatim(t *testing.T) {
	offer := FileOffer{Filename: "../a\nb.txt", Size: 0}

	encoded, err := offer.Encoded()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(encoded.String(), "\n"))

	parsed, err := encoded.Parse()
	require.NoError(t, err)
	assert.Equal(t, offer, parsed)
}

func TestParseTransferMalformed(t *testing.T) {
	tests := []string{
		"",
		"\n",
		"ACCEPT\n",
		`"accept"`,
		`{"FileOffer":{"filename":"x"}}`,
		`{"FileOffer":{"size":100}}`,
		`{"FileOffer":{"filename":"x","size":-1}}`,
		`{"FileOffer":null}`,
		`{"Accept":{"x":1}}`,
		`"Query"`,
	}

	for _, data := range tests {
		msg, err := EncodedTransferMessage(data).Parse()
		assert.ErrorIs(t, err, ErrMalformedTransferMessage, "input %q", data)
		assert.Nil(t, msg)
	}
}

func TestReadTransferMessageLeavesPayloadBuffered(t *testing.T) {
	offer, err := FileOffer{Filename: "x", Size: 4}.Encoded()
	require.NoError(t, err)

	rd := bufio.NewReader(strings.NewReader(offer.String() + "data"))

	msg, err := ReadTransferMessage(rd)
	require.NoError(t, err)
	assert.Equal(t, FileOffer{Filename: "x", Size: 4}, msg)

	rest, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Equal(t, "data", string(rest))
}

func TestReadTransferMessageEOF(t *testing.T) {
	_, err := ReadTransferMessage(bufio.NewReader(strings.NewReader("")))
	assert.ErrorIs(t, err, io.EOF)

	_, err = ReadTransferMessage(bufio.NewReader(strings.NewReader(`"Acc`)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadTransferMessageTooLong(t *testing.T) {
	line := strings.Repeat("a", MaxControlLineSize+1) + "\n"

	_, err := ReadTransferMessage(bufio.NewReaderSize(strings.NewReader(line), 16))
	assert.True(t, errors.Is(err, ErrControlLineTooLong))
}
