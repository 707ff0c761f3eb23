//go:build unix

package core

import "syscall"

func enableBroadcast(c syscall.Conn) error {
	raw, err := c.SyscallConn()
	if err != nil {
		return err
	}

	var serr error
	err = raw.Control(func(fd uintptr) {
		serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}

	return serr
}
