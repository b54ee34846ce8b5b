// package gcode serializes a compiled toolpath program into G-code
// text for a 3D-printer style motion controller.
//
// The emitter is a pure function of the program and the machine
// profile: one instruction per line, coordinates fixed to two decimals
// so the output is diffable and immune to motion-resolution drift, and
// the homing and pause words taken from the profile because they vary
// between firmwares.
package gcode

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"scrawl.ink/scribe"
)

// Machine is the target machine profile. Speeds are millimeters per
// second and are converted to mm/min F words at the emission boundary.
type Machine struct {
	DrawSpeed   float32
	TravelSpeed float32
	ZSpeed      float32

	// Pen actuator z positions in millimeters.
	PenUpZ   float32
	PenDownZ float32

	// Home and Pause are the firmware's homing and operator-pause
	// instructions, e.g. "G28" and "M400 U1".
	Home  string
	Pause string

	// Accelerations in mm/s². When set they are programmed with M201
	// and M204 and used by the motion-time estimate; zero means
	// unlimited.
	XYAccel     float32
	TravelAccel float32
	ZAccel      float32

	// Progress interleaves M73 percent/remaining lines at minute
	// boundaries of the estimated print.
	Progress bool
	// Header echoes the profile as leading comments.
	Header bool
}

// Validate rejects profiles that would emit an unusable program. Run
// at pipeline start, before compilation.
func (m *Machine) Validate() error {
	switch {
	case m.DrawSpeed <= 0 || m.TravelSpeed <= 0 || m.ZSpeed <= 0:
		return errors.New("gcode: speeds must be positive")
	case m.PenUpZ <= m.PenDownZ:
		return errors.New("gcode: pen-up z must be above pen-down z")
	case m.Home == "":
		return errors.New("gcode: no homing command")
	case m.Pause == "":
		return errors.New("gcode: no pause command")
	case m.XYAccel < 0 || m.TravelAccel < 0 || m.ZAccel < 0:
		return errors.New("gcode: accelerations must not be negative")
	}
	return nil
}

// minuteMark remembers where the estimate crossed a whole minute, for
// progress interleaving.
type minuteMark struct {
	line   int
	minute int
}

type emitter struct {
	m     *Machine
	lines []string
	marks []minuteMark

	x, y, z float32
	known   bool
	elapsed float64
}

// Emit serializes prog for m and returns the text and the estimated
// execution time. The same program and profile always produce
// byte-identical text.
func Emit(prog scribe.Program, m Machine) (string, time.Duration, error) {
	if err := m.Validate(); err != nil {
		return "", 0, err
	}
	e := &emitter{m: &m}
	if m.Header {
		e.header()
	}
	e.limits()
	for _, c := range prog {
		switch c.Op {
		case scribe.OpHome:
			e.raw(m.Home)
			// Homing parks at the firmware origin.
			e.x, e.y, e.z = 0, 0, 0
			e.known = true
		case scribe.OpTravel:
			e.moveXY("G0", c.Target[0], c.Target[1], m.TravelSpeed, m.TravelAccel)
		case scribe.OpDraw:
			e.moveXY("G1", c.Target[0], c.Target[1], m.DrawSpeed, m.XYAccel)
		case scribe.OpPenUp:
			e.moveZ(m.PenUpZ)
		case scribe.OpPenDown:
			e.moveZ(m.PenDownZ)
		case scribe.OpPause:
			e.raw(m.Pause)
		default:
			return "", 0, fmt.Errorf("gcode: unknown opcode %v", c.Op)
		}
	}
	total := time.Duration(e.elapsed * float64(time.Second))
	if m.Progress {
		e.progress()
	}
	return strings.Join(e.lines, "\n") + "\n", total, nil
}

func (e *emitter) raw(line string) {
	e.lines = append(e.lines, line)
}

func (e *emitter) header() {
	m := e.m
	e.raw("; MACHINE PROFILE:")
	e.raw(fmt.Sprintf("; draw_speed = %.2f", m.DrawSpeed))
	e.raw(fmt.Sprintf("; travel_speed = %.2f", m.TravelSpeed))
	e.raw(fmt.Sprintf("; z_speed = %.2f", m.ZSpeed))
	e.raw(fmt.Sprintf("; pen_up_z = %.2f", m.PenUpZ))
	e.raw(fmt.Sprintf("; pen_down_z = %.2f", m.PenDownZ))
	e.raw(fmt.Sprintf("; home = %s", m.Home))
	e.raw(fmt.Sprintf("; pause = %s", m.Pause))
	if m.XYAccel > 0 {
		e.raw(fmt.Sprintf("; xy_accel = %.0f", m.XYAccel))
		e.raw(fmt.Sprintf("; travel_accel = %.0f", m.TravelAccel))
		e.raw(fmt.Sprintf("; z_accel = %.0f", m.ZAccel))
	}
	e.raw("")
}

func (e *emitter) limits() {
	m := e.m
	if m.XYAccel <= 0 {
		return
	}
	e.raw(fmt.Sprintf("M201 X%.0f Y%.0f Z%.0f", m.XYAccel, m.XYAccel, m.ZAccel))
	e.raw(fmt.Sprintf("M204 P%.0f T%.0f", m.XYAccel, m.TravelAccel))
}

func (e *emitter) moveXY(word string, x, y, speed, accel float32) {
	e.raw(fmt.Sprintf("%s X%.2f Y%.2f F%.0f", word, x, y, speed*60))
	if e.known {
		d := math.Hypot(float64(x-e.x), float64(y-e.y))
		e.account(d, float64(speed), float64(accel))
	}
	e.x, e.y = x, y
	e.known = true
}

func (e *emitter) moveZ(z float32) {
	m := e.m
	e.raw(fmt.Sprintf("G0 Z%.2f F%.0f", z, m.ZSpeed*60))
	e.account(math.Abs(float64(z-e.z)), float64(m.ZSpeed), float64(m.ZAccel))
	e.z = z
}

// account adds the trapezoidal accelerate-cruise-decelerate time of a
// move of d millimeters to the running estimate.
func (e *emitter) account(d, speed, accel float64) {
	if d == 0 || speed <= 0 {
		return
	}
	var t float64
	if accel > 0 {
		accelTime := speed / accel
		accelDist := 0.5 * accel * accelTime * accelTime
		if 2*accelDist > d {
			// Never reaches cruise speed.
			t = 2 * math.Sqrt(d/accel)
		} else {
			t = 2*accelTime + (d-2*accelDist)/speed
		}
	} else {
		t = d / speed
	}
	before := int(e.elapsed / 60)
	e.elapsed += t
	if after := int(e.elapsed / 60); after != before {
		e.marks = append(e.marks, minuteMark{line: len(e.lines), minute: after})
	}
}

// progress inserts M73 lines after each minute crossing, back to
// front so recorded line indices stay valid.
func (e *emitter) progress() {
	totalMin := int(math.Ceil(e.elapsed / 60))
	if totalMin == 0 {
		return
	}
	for i := len(e.marks) - 1; i >= 0; i-- {
		mark := e.marks[i]
		remaining := totalMin - mark.minute
		percent := float64(mark.minute) / float64(totalMin) * 100
		line := fmt.Sprintf("M73 P%.1f R%d", percent, remaining)
		e.lines = append(e.lines[:mark.line], append([]string{line}, e.lines[mark.line:]...)...)
	}
}
