package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Dyastin-0/lanbyte/logger"
)

// Outcome of a handshake that did not fail.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Sender struct {
	Dialer     *net.Dialer
	OnProgress ProgressFunc
	OnEvent    func(Event)
	Log        logger.Logger
}

func NewSender() *Sender {
	return &Sender{
		Dialer: &net.Dialer{},
		Log:    logger.Nop(),
	}
}

// SendFile offers the file at path to target and streams it if accepted.
// A Reject is not an error. ctx only bounds the dial, transfer I/O has no
// deadline.
func (s *Sender) SendFile(ctx context.Context, target, path string) (Outcome, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to get file info: %w", err)
	}

	if stat.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}

	dialer := s.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDial, err)
	}
	defer conn.Close()

	return s.Send(conn, file, filepath.Base(path), uint64(stat.Size()), target)
}

// Send runs the offer handshake over conn and, once accepted, writes
// exactly size bytes read from src. It does not wait for a Complete.
func (s *Sender) Send(conn io.ReadWriter, src io.Reader, name string, size uint64, peer string) (Outcome, error) {
	log := s.logger().WithStr("file", name).WithUint64("size", size).WithStr("peer", peer)
	event := Event{Action: ActionSend, File: name, Size: size, Peer: peer}

	offer, err := FileOffer{Filename: name, Size: size}.Encoded()
	if err != nil {
		return 0, err
	}

	if _, err := conn.Write(offer); err != nil {
		return 0, s.fail(event, fmt.Errorf("failed to send file offer: %w", err))
	}

	reply, err := ReadTransferMessage(bufio.NewReader(conn))
	if err != nil {
		return 0, s.fail(event, fmt.Errorf("%w: failed to read reply: %w", ErrProtocolViolation, err))
	}

	switch reply.(type) {
	case Accept:
		log.Debug("offer accepted")
	case Reject:
		log.Info("offer rejected")
		event.Result = ResultReject
		emit(s.OnEvent, event)
		return OutcomeRejected, nil
	default:
		return 0, s.fail(event, fmt.Errorf("%w: unexpected reply %T", ErrProtocolViolation, reply))
	}

	sent, err := s.stream(conn, src, size)
	event.Bytes = sent
	if err != nil {
		return 0, s.fail(event, err)
	}

	log.Info("file sent")
	event.Result = ResultOK
	emit(s.OnEvent, event)

	return OutcomeSent, nil
}

func (s *Sender) stream(w io.Writer, src io.Reader, size uint64) (uint64, error) {
	if size == 0 {
		s.OnProgress.report(0, 0)
		return 0, nil
	}

	buf := make([]byte, ChunkSize)

	var sent uint64
	for sent < size {
		toRead := min(uint64(ChunkSize), size-sent)

		n, err := io.ReadFull(src, buf[:toRead])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return sent, fmt.Errorf("failed to send data: %w", werr)
			}
			sent += uint64(n)
			s.OnProgress.report(sent, size)
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return sent, fmt.Errorf("%w: sent %d of %d bytes", ErrShortFile, sent, size)
			}
			return sent, fmt.Errorf("failed to read file: %w", err)
		}
	}

	return sent, nil
}

func (s *Sender) fail(event Event, err error) error {
	event.Result = ResultFail
	event.Err = err
	emit(s.OnEvent, event)

	s.logger().WithStr("file", event.File).WithStr("peer", event.Peer).WithErr(err).Error("send failed")
	return err
}

func (s *Sender) logger() logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

// Target appends the default transfer port when addr has none.
func Target(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return net.JoinHostPort(addr, strconv.Itoa(int(TransferPort)))
}
