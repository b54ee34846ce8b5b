// command scrawl compiles a tablet-recorded handwriting sample and a
// text into a toolpath program, saves it as G-code and optionally
// delivers it to a pen plotter or a BambuLab printer.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/image/math/f32"
	"scrawl.ink/driver/bambu"
	"scrawl.ink/driver/grbl"
	"scrawl.ink/font"
	"scrawl.ink/gcode"
	"scrawl.ink/layout"
	"scrawl.ink/scribe"
)

var (
	fontFile = flag.String("font", "handwriting.json", "character set file (JSON or CBOR)")
	textFlag = flag.String("text", "", "text to write; stdin when empty and -in unset")
	inFile   = flag.String("in", "", "read the text from a file")
	outFile  = flag.String("o", "", "output G-code path; derived from the text when empty")
	preview  = flag.String("preview", "", "also write a PNG preview")

	scale       = flag.Float64("scale", 8, "bed millimeters per tablet unit")
	origin      = flag.String("origin", "77,242.25", "bed origin x,y in millimeters")
	lineHeight  = flag.Float64("line-height", 10, "line pitch in millimeters")
	maxWidth    = flag.Float64("max-width", 145, "maximum line width in millimeters")
	pageHeight  = flag.Float64("page-height", 237, "usable page height in millimeters, 0 for unlimited")
	minAdvance  = flag.Float64("min-advance", 1, "minimum character advance in millimeters")
	charSpacing = flag.Float64("char-spacing", 0.6, "extra spacing between characters in millimeters")
	spaceWidth  = flag.Float64("space-width", 2.5, "advance of a space in millimeters")

	wobble = flag.Bool("wobble", false, "apply seeded handwriting variance")
	seed   = flag.Int64("seed", 1, "variance seed")

	drawSpeed   = flag.Float64("draw-speed", 50, "drawing speed in mm/s")
	travelSpeed = flag.Float64("travel-speed", 500, "travel speed in mm/s")
	zSpeed      = flag.Float64("z-speed", 20, "pen actuator speed in mm/s")
	penUpZ      = flag.Float64("pen-up", 70, "pen-up z in millimeters")
	penDownZ    = flag.Float64("pen-down", 67, "pen-down z in millimeters")
	homeCmd     = flag.String("home-cmd", "G28", "firmware homing instruction")
	pauseCmd    = flag.String("pause-cmd", "M400 U1", "firmware operator-pause instruction")
	xyAccel     = flag.Float64("xy-accel", 10000, "drawing acceleration in mm/s²")
	travelAccel = flag.Float64("travel-accel", 12000, "travel acceleration in mm/s²")
	zAccel      = flag.Float64("z-accel", 1000, "z acceleration in mm/s²")

	home  = flag.Bool("home", true, "home before writing")
	pause = flag.Bool("pause", true, "pause for the operator before writing")
	park  = flag.String("park", "240,240", "park position x,y in millimeters")

	serialDev  = flag.String("device", "", "stream to a GRBL serial device")
	printer    = flag.String("printer", "", "BambuLab printer host")
	printerSN  = flag.String("serial", "", "BambuLab printer serial number")
	accessCode = flag.String("access-code", "", "BambuLab LAN access code")
	start      = flag.Bool("start", false, "start the print after uploading")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scrawl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	text, err := inputText()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*fontFile)
	if err != nil {
		return err
	}
	face, err := font.Parse(data)
	if err != nil {
		return err
	}

	params := layout.Params{
		Scale:        float32(*scale),
		Origin:       parseVec2(*origin, "-origin"),
		LineHeight:   float32(*lineHeight),
		MaxLineWidth: float32(*maxWidth),
		MinAdvance:   float32(*minAdvance),
		CharSpacing:  float32(*charSpacing),
		SpaceWidth:   float32(*spaceWidth),
		PageHeight:   float32(*pageHeight),
	}
	if *wobble {
		params.Variance = &layout.Variance{
			Seed:      *seed,
			MaxX:      0.3,
			MaxY:      0.3,
			MaxHeight: 0.05,
			MinSkew:   0,
			MaxSkew:   0.15,
		}
	}
	machine := gcode.Machine{
		DrawSpeed:   float32(*drawSpeed),
		TravelSpeed: float32(*travelSpeed),
		ZSpeed:      float32(*zSpeed),
		PenUpZ:      float32(*penUpZ),
		PenDownZ:    float32(*penDownZ),
		Home:        *homeCmd,
		Pause:       *pauseCmd,
		XYAccel:     float32(*xyAccel),
		TravelAccel: float32(*travelAccel),
		ZAccel:      float32(*zAccel),
		Progress:    true,
		Header:      true,
	}
	// Reject bad configuration before any compilation work.
	if err := params.Validate(); err != nil {
		return err
	}
	if err := machine.Validate(); err != nil {
		return err
	}

	res, err := layout.Layout(face, text, &params)
	if err != nil {
		return err
	}
	prog := scribe.Compile(res, scribe.Params{
		HomeOnStart:      *home,
		PauseBeforeStart: *pause,
		Park:             parseVec2(*park, "-park"),
	})
	program, estimate, err := gcode.Emit(prog, machine)
	if err != nil {
		return err
	}

	path, err := save(program, text)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s, estimated wall time %s\n", path, estimate.Round(time.Second))

	if *preview != "" {
		if err := dumpPreview(prog, *preview); err != nil {
			return err
		}
	}
	if *serialDev != "" {
		if err := stream(program); err != nil {
			return err
		}
	}
	if *printer != "" {
		if err := deliver(path, program); err != nil {
			return err
		}
	}
	return nil
}

func inputText() (string, error) {
	switch {
	case *textFlag != "":
		return *textFlag, nil
	case *inFile != "":
		data, err := os.ReadFile(*inFile)
		return string(data), err
	default:
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
}

func parseVec2(s, flagName string) f32.Vec2 {
	x, y, ok := strings.Cut(s, ",")
	if ok {
		xf, errx := strconv.ParseFloat(strings.TrimSpace(x), 32)
		yf, erry := strconv.ParseFloat(strings.TrimSpace(y), 32)
		if errx == nil && erry == nil {
			return f32.Vec2{float32(xf), float32(yf)}
		}
	}
	fmt.Fprintf(os.Stderr, "scrawl: %s must be \"x,y\", got %q\n", flagName, s)
	os.Exit(1)
	panic("unreachable")
}

// save writes the program next to the working directory, deriving a
// name from the text's first line and never clobbering an existing
// file.
func save(program, text string) (string, error) {
	path := *outFile
	if path == "" {
		title, _, _ := strings.Cut(text, "\n")
		title = strings.Join(strings.Fields(title), "_")
		if title == "" {
			title = "scrawl"
		}
		path = title + ".gcode"
		for n := 1; ; n++ {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				break
			}
			path = fmt.Sprintf("%s_%d.gcode", title, n)
		}
	}
	return path, os.WriteFile(path, []byte(program), 0o644)
}

func dumpPreview(prog scribe.Program, path string) error {
	const ppmm = 10
	const penWidth = 0.5 * ppmm
	pmin, pmax, ok := prog.Bounds()
	if !ok {
		return fmt.Errorf("nothing to preview")
	}
	const margin = 2
	bounds := image.Rect(
		int(pmin[0]-margin)*ppmm, int(pmin[1]-margin)*ppmm,
		int(pmax[0]+margin)*ppmm, int(pmax[1]+margin)*ppmm,
	)
	img := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	r := scribe.NewRasterizer(img, bounds, ppmm, penWidth)
	r.Render(prog)
	r.Rasterize()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	return f.Close()
}

func stream(program string) error {
	s, err := grbl.Open(*serialDev)
	if err != nil {
		return err
	}
	defer s.Close()

	quit := make(chan os.Signal, 1)
	cancel := make(chan struct{})
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Reset(os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		close(cancel)
	}()
	progress := make(chan float32, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			fmt.Printf("\r%3.0f%%", p*100)
		}
		fmt.Println()
	}()
	err = grbl.Send(s, program, progress, cancel)
	close(progress)
	<-done
	return err
}

func deliver(path, program string) error {
	if *printerSN == "" || *accessCode == "" {
		return fmt.Errorf("-printer requires -serial and -access-code")
	}
	c := &bambu.Client{
		Host:       *printer,
		Serial:     *printerSN,
		AccessCode: *accessCode,
	}
	name := strings.TrimSuffix(path, ".gcode")
	file, err := c.Upload(name, []byte(program))
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s to %s\n", file, *printer)
	if *start {
		if err := c.Print(file); err != nil {
			return err
		}
		fmt.Println("print started")
	}
	return nil
}
