package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dyastin-0/lanbyte/logger"
)

type Decision int

const (
	DecisionAccept Decision = iota
	DecisionReject
)

// Policy decides whether an offered file is accepted. filename is already
// sanitized.
type Policy func(filename string, size uint64) Decision

func AcceptAll(string, uint64) Decision {
	return DecisionAccept
}

// MaxSize rejects offers larger than limit and defers the rest to next.
func MaxSize(limit uint64, next Policy) Policy {
	if next == nil {
		next = AcceptAll
	}

	return func(filename string, size uint64) Decision {
		if size > limit {
			return DecisionReject
		}
		return next(filename, size)
	}
}

type Receiver struct {
	dir string

	Policy Policy

	// Track returns the progress callback of one accepted transfer, it
	// may return nil.
	Track func(remote string, offer FileOffer) ProgressFunc

	OnError func(remote string, err error)
	OnEvent func(Event)
	Log     logger.Logger
}

func NewReceiver(dir string) *Receiver {
	if dir == "" {
		dir = "./"
	}

	return &Receiver{
		dir:    dir,
		Policy: AcceptAll,
		Log:    logger.Nop(),
	}
}

func (r *Receiver) Dir() string {
	return r.dir
}

func (r *Receiver) Listen(addr string) (net.Listener, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	return ln, nil
}

// ListenAndServe accepts connections on addr until ctx is cancelled.
func (r *Receiver) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := r.Listen(addr)
	if err != nil {
		return err
	}

	return r.Serve(ctx, ln)
}

// Serve accepts connections on ln and handles each in its own goroutine.
// A failing connection never stops the loop. Transfers in flight when ctx
// is cancelled keep running.
func (r *Receiver) Serve(ctx context.Context, ln net.Listener) error {
	log := r.logger()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	defer ln.Close()

	log.WithStr("addr", ln.Addr().String()).WithStr("dir", r.dir).Info("receiver listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			log.WithErr(err).Warn("accept failed")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		go r.handle(conn)
	}
}

func (r *Receiver) handle(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("connection handler panicked: %v", p)
			}
		}()
		return r.HandleConn(conn)
	}()

	if err != nil {
		r.logger().WithStr("remote", remote).WithErr(err).Error("transfer failed")
		if r.OnError != nil {
			r.OnError(remote, err)
		}
	}
}

// HandleConn runs the receive side of one transfer on conn.
func (r *Receiver) HandleConn(conn net.Conn) error {
	return r.receive(conn, conn.RemoteAddr().String())
}

func (r *Receiver) receive(rw io.ReadWriter, remote string) error {
	log := r.logger().WithStr("remote", remote)

	// The reader may already hold payload bytes sent right after the
	// offer, so it is used for the rest of the stream.
	rd := bufio.NewReaderSize(rw, ChunkSize)

	msg, err := ReadTransferMessage(rd)
	if err != nil {
		return fmt.Errorf("%w: failed to read offer: %w", ErrProtocolViolation, err)
	}

	offer, ok := msg.(FileOffer)
	if !ok {
		return fmt.Errorf("%w: expected file offer, got %T", ErrProtocolViolation, msg)
	}

	event := Event{Action: ActionReceive, File: offer.Filename, Size: offer.Size, Peer: remote}

	name, err := SanitizeFilename(offer.Filename)
	if err != nil {
		event.Result = ResultReject
		event.Err = err
		emit(r.OnEvent, event)

		if rerr := r.reply(rw, Reject{}); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	event.File = name
	log = log.WithStr("file", name).WithUint64("size", offer.Size)

	policy := r.Policy
	if policy == nil {
		policy = AcceptAll
	}

	if policy(name, offer.Size) == DecisionReject {
		log.Info("offer rejected")
		event.Result = ResultReject
		emit(r.OnEvent, event)
		return r.reply(rw, Reject{})
	}

	if err := r.reply(rw, Accept{}); err != nil {
		return r.fail(event, err)
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return r.fail(event, fmt.Errorf("failed to create output directory: %w", err))
	}

	dst := filepath.Join(r.dir, name)
	file, err := os.Create(dst)
	if err != nil {
		return r.fail(event, fmt.Errorf("failed to create file: %w", err))
	}
	defer file.Close()

	var progress ProgressFunc
	if r.Track != nil {
		progress = r.Track(remote, FileOffer{Filename: name, Size: offer.Size})
	}

	received, err := copyPayload(file, rd, offer.Size, progress)
	event.Bytes = received
	if err != nil {
		return r.fail(event, err)
	}

	log.WithStr("path", dst).Info("file received")
	event.Result = ResultOK
	emit(r.OnEvent, event)

	return nil
}

func (r *Receiver) reply(w io.Writer, msg TransferMessage) error {
	b, err := msg.Encoded()
	if err != nil {
		return err
	}

	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}

	return nil
}

func (r *Receiver) fail(event Event, err error) error {
	event.Result = ResultFail
	event.Err = err
	emit(r.OnEvent, event)
	return err
}

func (r *Receiver) logger() logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

// copyPayload moves exactly size bytes from rd to w in chunks of at most
// ChunkSize. Bytes past size are never read.
func copyPayload(w io.Writer, rd io.Reader, size uint64, progress ProgressFunc) (uint64, error) {
	if size == 0 {
		progress.report(0, 0)
		return 0, nil
	}

	buf := make([]byte, ChunkSize)

	var received uint64
	for received < size {
		toRead := min(uint64(ChunkSize), size-received)

		n, err := rd.Read(buf[:toRead])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return received, fmt.Errorf("failed to write file: %w", werr)
			}
			received += uint64(n)
			progress.report(received, size)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				if received == size {
					break
				}
				return received, fmt.Errorf("%w: received %d of %d bytes", ErrPrematureEOF, received, size)
			}
			return received, fmt.Errorf("failed to read data: %w", err)
		}
	}

	return received, nil
}

// SanitizeFilename keeps only the final element of an offered name, with
// both '/' and '\' treated as separators.
func SanitizeFilename(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}

	cleaned := path.Base(path.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if cleaned == "/" || cleaned == "." || cleaned == ".." || strings.TrimSpace(cleaned) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}

	return cleaned, nil
}
