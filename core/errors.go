package core

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrMalformedDiscoveryMessage = errors.New("malformed discovery message")
	ErrMalformedTransferMessage  = errors.New("malformed transfer message")
	ErrControlLineTooLong        = errors.New("control line exceeds maximum size")
	ErrProtocolViolation         = errors.New("protocol violation")
	ErrInvalidFilename           = errors.New("invalid filename")
	ErrShortFile                 = errors.New("file is shorter than offered size")
	ErrDial                      = errors.New("failed to connect")

	// ErrPrematureEOF is returned when the connection closes before the
	// offered number of payload bytes has been received.
	ErrPrematureEOF = fmt.Errorf("connection closed before transfer completed: %w", io.ErrUnexpectedEOF)
)
