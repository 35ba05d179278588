// Package job turns raw command-line tokens into fully resolved capture jobs.
//
// Tokens are first split into segments by [Tokenize]: one run of top-level
// tokens carrying global defaults, and one segment per bracket group. [Build]
// then layers each group's flags over the global flags over the configured
// [Defaults], producing one immutable [Job] per group (or a single job when no
// groups are present).
package job

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Format is the encoded image format of a capture.
type Format string

// Supported output formats.
const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
)

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ParseFormat normalizes a user-supplied format name. "jpeg" is accepted as
// an alias for jpg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	default:
		return "", fmt.Errorf("format must be png or jpg, got %q", s)
	}
}

// Size is a viewport size in CSS pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses a WIDTHxHEIGHT token. Both dimensions must be positive
// integers.
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Size{}, fmt.Errorf("size must be WIDTHxHEIGHT, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Size{}, fmt.Errorf("size width must be a positive integer, got %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Size{}, fmt.Errorf("size height must be a positive integer, got %q", s)
	}
	return Size{Width: width, Height: height}, nil
}

// Job is one fully resolved capture request. Jobs are built once per
// invocation and must not be modified afterwards.
type Job struct {
	// Index is the job's 0-based position in the resolved job list.
	Index int
	// GroupIndex is 0 for a top-level job and the 1-based bracket group
	// position otherwise.
	GroupIndex int

	Target    string
	Size      Size
	OutputDir string
	Format    Format
	// Quality is the jpg quality in [1,100]. Zero leaves the choice to the
	// encoder.
	Quality int
	// Delay is waited after the document reports load completion.
	Delay    time.Duration
	Selector string

	ZoomFactor        float64
	DeviceScaleFactor float64

	// ExtraFlags are passed through to the rendering backend untouched.
	ExtraFlags map[string]string
}

// Label identifies the job in logs and error summaries.
func (j Job) Label() string {
	if j.GroupIndex == 0 {
		return fmt.Sprintf("%s %s", j.Target, j.Size)
	}
	return fmt.Sprintf("[%d] %s %s", j.GroupIndex, j.Target, j.Size)
}

// Defaults is the lowest layer of job configuration, applied when neither a
// group nor the top level sets a flag.
type Defaults struct {
	OutputDir         string
	Format            Format
	Quality           int
	Delay             time.Duration
	ZoomFactor        float64
	DeviceScaleFactor float64
	ExtraFlags        map[string]string
}

// BuiltinDefaults returns the documented defaults: current directory, png,
// encoder-chosen quality, no delay and unit scale factors.
func BuiltinDefaults() Defaults {
	return Defaults{
		OutputDir:         ".",
		Format:            FormatPNG,
		ZoomFactor:        1.0,
		DeviceScaleFactor: 1.0,
	}
}

func (d Defaults) extraFlags() map[string]string {
	out := make(map[string]string, len(d.ExtraFlags))
	maps.Copy(out, d.ExtraFlags)
	return out
}
