// Command navsim runs the display session against an in-memory framebuffer
// and prints the screen to the terminal. A script drives it:
//
//	connect
//	bitmap icon
//	send "Hauptstrasse" "12:30" "200 m"
//	tick 1500
//	show
//
// Commands: connect, disconnect, chunk N, bitmap none|icon|file PATH,
// send TITLE ETA DISTANCE, raw BYTES, set KEY VALUE, tick MS, show, stats.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/text"
)

var (
	debug   = kingpin.Flag("debug", "Enable debug mode. More verbose than --verbose").Default("false").Bool()
	verbose = kingpin.Flag("verbose", "Enable info-only mode").Short('v').Default("false").Bool()
	variant = kingpin.Flag("variant", "Display variant (oled128, tft240)").Default("oled128").Enum("oled128", "tft240")
	codec   = kingpin.Flag("codec", "Bitmap codec (mono, scaled, rgb)").Default("mono").Enum("mono", "scaled", "rgb")
	packing = kingpin.Flag("packing", "1bpp row layout (rows, bitstream)").Default("rows").Enum("rows", "bitstream")
	scale   = kingpin.Flag("scale", "Box size for the scaled codec").Default("1").Uint8()
	noColor = kingpin.Flag("no-color", "Print the screen without ANSI colours").Bool()
	script  = kingpin.Arg("script", "Script file. Reads stdin when omitted or '-'.").Default("-").String()
)

func main() {
	kingpin.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	switch {
	case *debug:
		logger.SetLevel(logrus.DebugLevel)
	case *verbose:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}
	slogger := slog.New(newLogrusHandler(logger))

	cfg, err := buildConfig()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	var in io.Reader = os.Stdin
	if *script != "-" {
		f, err := os.Open(*script)
		if err != nil {
			logger.Fatalf("Cannot open script: %v", err)
		}
		defer f.Close()
		in = f
	}

	scr := detectScreen(os.Stdout)
	if *noColor {
		scr.color = false
	}

	s := newSim(cfg, text.DefaultFonts(), os.Stdout, scr, slogger)
	if err := s.run(in); err != nil {
		logger.Errorf("Script failed: %v", err)
		os.Exit(1)
	}
}

func buildConfig() (config.DeviceConfig, error) {
	cfg := config.Default()

	v, err := parseVariant(*variant)
	if err != nil {
		return cfg, err
	}
	c, err := parseCodec(*codec)
	if err != nil {
		return cfg, err
	}
	p, err := parsePacking(*packing)
	if err != nil {
		return cfg, err
	}
	cfg.Variant = v
	cfg.Codec = c
	cfg.Packing = p
	cfg.Scale = *scale

	return cfg, cfg.Validate()
}
