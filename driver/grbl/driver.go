// package grbl implements a driver for GRBL-compatible pen plotters
// reached over a serial link.
//
// The controller acknowledges every instruction with "ok" or
// "error:N", so the driver sends one line at a time and waits for the
// acknowledgement before the next. This keeps at most one command in
// flight; handwriting strokes are short and the simple protocol is
// fast enough.
package grbl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/tarm/serial"
)

const baudRate = 115200

// softReset is the GRBL real-time abort byte (ctrl-X).
const softReset = 0x18

var ErrCancelled = errors.New("grbl: cancelled")

// Open opens the serial device, falling back to the platform's usual
// candidates when dev is empty.
func Open(dev string) (io.ReadWriteCloser, error) {
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyUSB0", "/dev/ttyACM0")
		case "darwin":
			devices = append(devices, "/dev/tty.usbserial")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("grbl: no device specified")
	}
	var firstErr error
	for _, dev := range devices {
		c := &serial.Config{Name: dev, Baud: baudRate}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Send streams program to the controller line by line. Comments and
// blank lines are dropped before transmission. progress, if not nil,
// receives the completed fraction; closing quit aborts the stream with
// a soft reset.
func Send(dev io.ReadWriter, program string, progress chan float32, quit <-chan struct{}) error {
	lines := instructionLines(program)
	if len(lines) == 0 {
		return errors.New("grbl: empty program")
	}
	bufr := bufio.NewScanner(dev)
	for i, line := range lines {
		select {
		case <-quit:
			dev.Write([]byte{softReset})
			return ErrCancelled
		default:
		}
		if _, err := io.WriteString(dev, line+"\n"); err != nil {
			return err
		}
		if err := awaitOK(bufr, line); err != nil {
			return err
		}
		if progress == nil {
			continue
		}
		// Don't spam the progress channel.
		select {
		case <-progress:
		default:
		}
		progress <- float32(i+1) / float32(len(lines))
	}
	return nil
}

// awaitOK reads controller responses until the acknowledgement for the
// last sent line arrives. Unsolicited status chatter is skipped.
func awaitOK(bufr *bufio.Scanner, sent string) error {
	for bufr.Scan() {
		resp := strings.TrimSpace(bufr.Text())
		switch {
		case resp == "ok":
			return nil
		case strings.HasPrefix(resp, "error:"):
			return fmt.Errorf("grbl: %s rejected: %s", sent, resp)
		case strings.HasPrefix(resp, "ALARM:"):
			return fmt.Errorf("grbl: alarm: %s", resp)
		}
	}
	if err := bufr.Err(); err != nil {
		return err
	}
	return errors.New("grbl: connection closed")
}

func instructionLines(program string) []string {
	var lines []string
	for _, line := range strings.Split(program, "\n") {
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
