package gcode

import (
	"fmt"
	"strings"
	"testing"

	"golang.org/x/image/math/f32"
	"scrawl.ink/scribe"
)

func testMachine() Machine {
	return Machine{
		DrawSpeed:   50,
		TravelSpeed: 500,
		ZSpeed:      20,
		PenUpZ:      70,
		PenDownZ:    67,
		Home:        "G28",
		Pause:       "M400 U1",
	}
}

func testProgram() scribe.Program {
	return scribe.Program{
		{Op: scribe.OpHome},
		{Op: scribe.OpPenUp},
		{Op: scribe.OpPause},
		{Op: scribe.OpTravel, Target: f32.Vec2{10.5, 20.25}},
		{Op: scribe.OpPenDown},
		{Op: scribe.OpDraw, Target: f32.Vec2{11, 21.333}},
		{Op: scribe.OpPenUp},
		{Op: scribe.OpTravel, Target: f32.Vec2{240, 240}},
	}
}

func TestVocabulary(t *testing.T) {
	text, _, err := Emit(testProgram(), testMachine())
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"G28",
		"G0 Z70.00 F1200",
		"M400 U1",
		"G0 X10.50 Y20.25 F30000",
		"G0 Z67.00 F1200",
		"G1 X11.00 Y21.33 F3000",
		"G0 Z70.00 F1200",
		"G0 X240.00 Y240.00 F30000",
	}, "\n") + "\n"
	if text != want {
		t.Fatalf("emitted program:\n%s\nwant:\n%s", text, want)
	}
}

func TestDeterminism(t *testing.T) {
	m := testMachine()
	m.Header = true
	m.Progress = true
	m.XYAccel, m.TravelAccel, m.ZAccel = 10000, 12000, 1000
	a, da, err := Emit(testProgram(), m)
	if err != nil {
		t.Fatal(err)
	}
	b, db, err := Emit(testProgram(), m)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("same program and profile must emit byte-identical text")
	}
	if da != db || da <= 0 {
		t.Fatalf("estimates %v and %v", da, db)
	}
}

func TestHeaderAndLimits(t *testing.T) {
	m := testMachine()
	m.Header = true
	m.XYAccel, m.TravelAccel, m.ZAccel = 10000, 12000, 1000
	text, _, err := Emit(testProgram(), m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "; MACHINE PROFILE:\n") {
		t.Error("missing header comment block")
	}
	for _, want := range []string{
		"M201 X10000 Y10000 Z1000",
		"M204 P10000 T12000",
	} {
		if !strings.Contains(text, want+"\n") {
			t.Errorf("missing %q", want)
		}
	}
}

// slowProgram draws long segments slowly enough for the estimate to
// cross several minutes.
func slowProgram() scribe.Program {
	prog := scribe.Program{
		{Op: scribe.OpPenUp},
		{Op: scribe.OpTravel, Target: f32.Vec2{0, 0}},
		{Op: scribe.OpPenDown},
	}
	for i := 1; i <= 40; i++ {
		x := float32(0)
		if i%2 == 0 {
			x = 200
		}
		prog = append(prog, scribe.Command{Op: scribe.OpDraw, Target: f32.Vec2{x, float32(i)}})
	}
	prog = append(prog, scribe.Command{Op: scribe.OpPenUp})
	return prog
}

func TestProgressInterleaving(t *testing.T) {
	m := testMachine()
	m.DrawSpeed = 1 // 1 mm/s over ~8 m of drawing
	m.Progress = true
	text, estimate, err := Emit(slowProgram(), m)
	if err != nil {
		t.Fatal(err)
	}
	minutes := int(estimate.Minutes())
	if minutes < 2 {
		t.Fatalf("estimate %v too short to exercise progress", estimate)
	}
	var marks int
	lastP := -1.0
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "M73 ") {
			continue
		}
		marks++
		var p float64
		var r int
		if _, err := fmt.Sscanf(line, "M73 P%f R%d", &p, &r); err != nil {
			t.Fatalf("bad progress line %q: %v", line, err)
		}
		if p <= lastP {
			t.Fatalf("progress percent not increasing at %q", line)
		}
		if r < 0 {
			t.Fatalf("negative remaining time at %q", line)
		}
		lastP = p
	}
	if marks < 2 {
		t.Fatalf("got %d progress marks for a %d minute estimate", marks, minutes)
	}
}

func TestEstimateAcceleration(t *testing.T) {
	m := testMachine()
	_, instant, err := Emit(testProgram(), m)
	if err != nil {
		t.Fatal(err)
	}
	m.XYAccel, m.TravelAccel, m.ZAccel = 1000, 1000, 100
	_, limited, err := Emit(testProgram(), m)
	if err != nil {
		t.Fatal(err)
	}
	if limited <= instant {
		t.Fatalf("acceleration-limited estimate %v not above instant estimate %v", limited, instant)
	}
}

func TestValidate(t *testing.T) {
	mods := []func(*Machine){
		func(m *Machine) { m.DrawSpeed = 0 },
		func(m *Machine) { m.TravelSpeed = -1 },
		func(m *Machine) { m.ZSpeed = 0 },
		func(m *Machine) { m.PenUpZ = m.PenDownZ },
		func(m *Machine) { m.Home = "" },
		func(m *Machine) { m.Pause = "" },
		func(m *Machine) { m.XYAccel = -1 },
	}
	for i, mod := range mods {
		m := testMachine()
		mod(&m)
		if _, _, err := Emit(testProgram(), m); err == nil {
			t.Errorf("case %d: invalid profile accepted", i)
		}
	}
}
