// package scribe compiles laid-out handwriting into an ordered toolpath
// program for a pen-carrying motion system.
//
// The compiler walks lines, characters and strokes in their recorded
// order and never reorders them: the temporal identity of the recorded
// handwriting is part of its correctness, not an optimization target.
// Pen position is an explicit three-state machine (homed, raised,
// lowered) so that the alternation of pen transitions in the output is
// enforced by construction.
package scribe

import (
	"errors"
	"fmt"

	"golang.org/x/image/math/f32"
	"scrawl.ink/layout"
)

// Op is a toolpath command opcode.
type Op uint8

const (
	// OpHome runs the machine's homing sequence.
	OpHome Op = iota
	// OpTravel is a non-marking move to Target with the pen raised.
	OpTravel
	// OpDraw is a marking move to Target with the pen lowered.
	OpDraw
	// OpPenUp raises the pen.
	OpPenUp
	// OpPenDown lowers the pen.
	OpPenDown
	// OpPause halts until the operator acknowledges.
	OpPause
)

func (o Op) String() string {
	switch o {
	case OpHome:
		return "home"
	case OpTravel:
		return "travel"
	case OpDraw:
		return "draw"
	case OpPenUp:
		return "penup"
	case OpPenDown:
		return "pendown"
	case OpPause:
		return "pause"
	}
	return fmt.Sprintf("op(%d)", o)
}

// Command is one toolpath instruction. Target is meaningful for
// OpTravel and OpDraw only.
type Command struct {
	Op     Op
	Target f32.Vec2
}

// Program is the compiled toolpath, immutable after compilation.
type Program []Command

// Bounds returns the axis-aligned bed-space box touched by the
// program's moves, and false for a program with no moves.
func (p Program) Bounds() (min, max f32.Vec2, ok bool) {
	for _, c := range p {
		if c.Op != OpTravel && c.Op != OpDraw {
			continue
		}
		t := c.Target
		if !ok {
			min, max = t, t
			ok = true
			continue
		}
		if t[0] < min[0] {
			min[0] = t[0]
		}
		if t[1] < min[1] {
			min[1] = t[1]
		}
		if t[0] > max[0] {
			max[0] = t[0]
		}
		if t[1] > max[1] {
			max[1] = t[1]
		}
	}
	return min, max, ok
}

// Params configures compilation.
type Params struct {
	// HomeOnStart emits the homing sequence before any motion.
	HomeOnStart bool
	// PauseBeforeStart emits an operator-acknowledged pause before the
	// first drawing motion, so the program never begins unsupervised.
	PauseBeforeStart bool
	// Park is where the pen travels when a page completes and when the
	// program ends.
	Park f32.Vec2
}

// penState tracks the machine's pen actuator.
type penState uint8

const (
	stateHomed penState = iota
	statePenUp
	statePenDown
)

type compiler struct {
	prog  Program
	state penState
	pos   f32.Vec2
	moved bool
}

func (c *compiler) emit(cmd Command) {
	c.prog = append(c.prog, cmd)
}

// home emits the homing sequence. The pen state is left untouched: a
// mid-program re-home happens with the pen already raised, and raising
// it again would break the alternation of pen transitions.
func (c *compiler) home() {
	if c.state == statePenDown {
		panic(errors.New("scribe: homing with pen down"))
	}
	c.emit(Command{Op: OpHome})
	// The machine moved on its own; forget the tracked position.
	c.moved = false
}

// penUp raises the pen. It is also the only transition out of the
// homed state, so the pen-transition projection of every program
// starts with a raise.
func (c *compiler) penUp() {
	if c.state == statePenUp {
		return
	}
	c.emit(Command{Op: OpPenUp})
	c.state = statePenUp
}

func (c *compiler) penDown() {
	if c.state != statePenUp {
		panic(fmt.Errorf("scribe: pen down from state %d", c.state))
	}
	c.emit(Command{Op: OpPenDown})
	c.state = statePenDown
}

func (c *compiler) travel(to f32.Vec2) {
	if c.state == statePenDown {
		panic(errors.New("scribe: travel with pen down"))
	}
	if c.moved && to == c.pos {
		return
	}
	c.emit(Command{Op: OpTravel, Target: to})
	c.pos = to
	c.moved = true
}

func (c *compiler) draw(to f32.Vec2) {
	if c.state != statePenDown {
		panic(errors.New("scribe: draw with pen up"))
	}
	c.emit(Command{Op: OpDraw, Target: to})
	c.pos = to
	c.moved = true
}

// Compile walks the laid-out lines and emits the toolpath. Every stroke
// is bracketed by a pen-down/pen-up pair; all positioning between
// strokes, characters, lines and pages happens with the pen raised. An
// empty placed stroke is unreachable after dataset validation and
// panics.
func Compile(res *layout.Result, p Params) Program {
	c := &compiler{}
	start := func() {
		if p.HomeOnStart {
			c.home()
		}
		// Initial transition out of the homed state: raise the pen
		// before any horizontal motion.
		c.penUp()
		if p.PauseBeforeStart {
			c.emit(Command{Op: OpPause})
		}
	}
	start()
	page := 0
	for _, line := range res.Lines {
		if line.Page != page {
			// Page complete: park, wait for a paper change, re-home.
			// The pen stays raised across the break.
			c.travel(p.Park)
			c.emit(Command{Op: OpPause})
			if p.HomeOnStart {
				c.home()
			}
			page = line.Page
		}
		for _, ch := range line.Chars {
			for _, stroke := range ch.Strokes {
				if len(stroke) == 0 {
					panic(fmt.Errorf("scribe: character %q at position %d has an empty stroke", ch.Rune, ch.Pos))
				}
				c.travel(stroke[0])
				c.penDown()
				for _, pt := range stroke[1:] {
					c.draw(pt)
				}
				c.penUp()
			}
		}
	}
	c.travel(p.Park)
	return c.prog
}
