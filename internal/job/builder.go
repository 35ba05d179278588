package job

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"
)

// Job flag names understood by the builder. Any other flag is passed through
// to the backend in Job.ExtraFlags.
const (
	FlagOut               = "out"
	FlagDelay             = "delay"
	FlagSelector          = "selector"
	FlagZoomFactor        = "zoom-factor"
	FlagDeviceScaleFactor = "force-device-scale-factor"
	FlagFormat            = "format"
	FlagQuality           = "quality"
)

var jobFlags = map[string]bool{
	FlagOut:               true,
	FlagDelay:             true,
	FlagSelector:          true,
	FlagZoomFactor:        true,
	FlagDeviceScaleFactor: true,
	FlagFormat:            true,
	FlagQuality:           true,
}

// Options controls how arguments are turned into jobs.
type Options struct {
	// Defaults fill any job field that neither a group nor the top level sets.
	Defaults Defaults
	// ToolFlags names flags that configure the tool itself rather than a job.
	// The value reports whether the flag is boolean (takes no value). Tool
	// flags are only accepted outside groups.
	ToolFlags map[string]bool
}

// Plan is the result of parsing one invocation.
type Plan struct {
	Jobs []Job
	// ToolFlags holds the tool flags that were set, by name. Boolean flags
	// map to "true" unless given an explicit =value.
	ToolFlags map[string]string
}

// Parse tokenizes args and builds the job list. It returns a *SyntaxError for
// malformed input and ValidationErrors when any job is incomplete or invalid.
// No job is returned unless every job is valid.
func Parse(args []string, opts Options) (*Plan, error) {
	segments, err := Tokenize(args)
	if err != nil {
		return nil, err
	}
	return Build(segments, opts)
}

// ScanToolFlags returns the tool flags set in the top-level segment without
// resolving any job. Callers use it to configure the tool before Build.
func ScanToolFlags(segments []Segment, toolFlags map[string]bool) (map[string]string, error) {
	for _, seg := range segments {
		if seg.Group != 0 {
			continue
		}
		spec, err := scanSegment(seg, toolFlags)
		if err != nil {
			return nil, err
		}
		return spec.tool, nil
	}
	return map[string]string{}, nil
}

// segmentSpec is a segment with its flags separated from its positionals.
type segmentSpec struct {
	group       int
	positionals []string
	firstPos    []int
	flags       map[string]string
	extra       map[string]string
	tool        map[string]string
}

// Build resolves segments, as produced by Tokenize, into jobs.
func Build(segments []Segment, opts Options) (*Plan, error) {
	if opts.ToolFlags == nil {
		opts.ToolFlags = map[string]bool{}
	}

	specs := make([]segmentSpec, 0, len(segments))
	for _, seg := range segments {
		spec, err := scanSegment(seg, opts.ToolFlags)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	global := segmentSpec{flags: map[string]string{}, extra: map[string]string{}, tool: map[string]string{}}
	var groups []segmentSpec
	for _, s := range specs {
		if s.group == 0 {
			global = s
		} else {
			groups = append(groups, s)
		}
	}

	// With groups present every job names its own target and size.
	if len(groups) > 0 && len(global.positionals) > 0 {
		return nil, &SyntaxError{
			Pos:     global.firstPos[0],
			Token:   global.positionals[0],
			Message: "target and size must be inside a group when groups are used",
		}
	}

	plan := &Plan{ToolFlags: global.tool}

	if len(groups) == 0 {
		groups = []segmentSpec{global}
		global = segmentSpec{flags: map[string]string{}, extra: map[string]string{}}
	}

	var verrs ValidationErrors
	for i, g := range groups {
		j, verr := resolve(g, global, opts.Defaults)
		if verr != nil {
			verrs = append(verrs, *verr)
			continue
		}
		j.Index = i
		plan.Jobs = append(plan.Jobs, j)
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	return plan, nil
}

// scanSegment classifies the tokens of one segment. Flags may be written as
// --name value or --name=value.
func scanSegment(seg Segment, toolFlags map[string]bool) (segmentSpec, error) {
	spec := segmentSpec{
		group: seg.Group,
		flags: map[string]string{},
		extra: map[string]string{},
		tool:  map[string]string{},
	}

	// adjacent reports whether token i+1 directly followed token i in the raw
	// arguments; the global segment may span groups.
	adjacent := func(i int) bool {
		return i+1 < len(seg.Tokens) && seg.Pos[i+1] == seg.Pos[i]+1
	}

	for i := 0; i < len(seg.Tokens); i++ {
		tok := seg.Tokens[i]
		if !isFlag(tok) {
			if len(spec.positionals) == 2 {
				return spec, &SyntaxError{Pos: seg.Pos[i], Token: tok, Message: "unexpected argument; expected <target> <WIDTHxHEIGHT>"}
			}
			spec.positionals = append(spec.positionals, tok)
			spec.firstPos = append(spec.firstPos, seg.Pos[i])
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(tok, "-"), "=")
		if name == "" {
			return spec, &SyntaxError{Pos: seg.Pos[i], Token: tok, Message: "missing flag name"}
		}
		if name == "h" {
			name = "help"
		}

		if isBool, ok := toolFlags[name]; ok {
			if seg.Group != 0 {
				return spec, &SyntaxError{Pos: seg.Pos[i], Token: tok, Message: fmt.Sprintf("--%s can only be used outside groups", name)}
			}
			switch {
			case hasValue:
			case isBool:
				value = "true"
			case adjacent(i):
				i++
				value = seg.Tokens[i]
			default:
				return spec, &SyntaxError{Pos: seg.Pos[i], Token: tok, Message: fmt.Sprintf("--%s requires a value", name)}
			}
			spec.tool[name] = value
			continue
		}

		if jobFlags[name] {
			if !hasValue {
				if !adjacent(i) {
					return spec, &SyntaxError{Pos: seg.Pos[i], Token: tok, Message: fmt.Sprintf("--%s requires a value", name)}
				}
				i++
				value = seg.Tokens[i]
			}
			spec.flags[name] = value
			continue
		}

		// Pass-through flag: take the next token as its value unless it looks
		// like another flag.
		if !hasValue {
			if adjacent(i) && !isFlag(seg.Tokens[i+1]) {
				i++
				value = seg.Tokens[i]
			} else {
				value = "true"
			}
		}
		spec.extra[name] = value
	}

	return spec, nil
}

// positiveFinite rejects NaN and the infinities, which ParseFloat accepts.
func positiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isFlag(tok string) bool {
	return len(tok) > 1 && tok[0] == '-'
}

// resolve layers group over global over defaults and validates the result in
// a fixed order, returning the first failing rule.
func resolve(group, global segmentSpec, d Defaults) (Job, *ValidationError) {
	fail := func(field, format string, args ...any) (Job, *ValidationError) {
		return Job{}, &ValidationError{GroupIndex: group.group, Field: field, Message: fmt.Sprintf(format, args...)}
	}
	lookup := func(name string) (string, bool) {
		if v, ok := group.flags[name]; ok {
			return v, true
		}
		v, ok := global.flags[name]
		return v, ok
	}

	j := Job{
		GroupIndex:        group.group,
		OutputDir:         d.OutputDir,
		Format:            d.Format,
		Quality:           d.Quality,
		Delay:             d.Delay,
		ZoomFactor:        d.ZoomFactor,
		DeviceScaleFactor: d.DeviceScaleFactor,
		ExtraFlags:        d.extraFlags(),
	}
	if j.Format == "" {
		j.Format = FormatPNG
	}
	if j.OutputDir == "" {
		j.OutputDir = "."
	}

	if len(group.positionals) < 1 || strings.TrimSpace(group.positionals[0]) == "" {
		return fail("target", "a target file or URL is required")
	}
	j.Target = group.positionals[0]

	if len(group.positionals) < 2 {
		return fail("size", "a WIDTHxHEIGHT size is required")
	}
	size, err := ParseSize(group.positionals[1])
	if err != nil {
		return fail("size", "%v", err)
	}
	j.Size = size

	if v, ok := lookup(FlagFormat); ok {
		f, err := ParseFormat(v)
		if err != nil {
			return fail(FlagFormat, "%v", err)
		}
		j.Format = f
	}

	// Quality is only checked for jpg; png ignores it.
	if v, ok := lookup(FlagQuality); ok && j.Format == FormatJPG {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fail(FlagQuality, "quality must be an integer, got %q", v)
		}
		if q < 1 || q > 100 {
			return fail(FlagQuality, "quality must be between 1 and 100, got %d", q)
		}
		j.Quality = q
	}
	if j.Format != FormatJPG {
		j.Quality = 0
	}

	for _, sf := range []struct {
		name string
		dst  *float64
	}{
		{FlagZoomFactor, &j.ZoomFactor},
		{FlagDeviceScaleFactor, &j.DeviceScaleFactor},
	} {
		if v, ok := lookup(sf.name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fail(sf.name, "must be a number, got %q", v)
			}
			*sf.dst = f
		}
		if !positiveFinite(*sf.dst) {
			return fail(sf.name, "must be a finite number greater than 0, got %v", *sf.dst)
		}
	}

	if v, ok := lookup(FlagSelector); ok {
		if strings.TrimSpace(v) == "" {
			return fail(FlagSelector, "selector must not be empty")
		}
		j.Selector = v
	}

	if v, ok := lookup(FlagDelay); ok {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return fail(FlagDelay, "delay must be a non-negative number of milliseconds, got %q", v)
		}
		j.Delay = time.Duration(ms) * time.Millisecond
	}

	if v, ok := lookup(FlagOut); ok && v != "" {
		j.OutputDir = v
	}

	maps.Copy(j.ExtraFlags, global.extra)
	maps.Copy(j.ExtraFlags, group.extra)

	return j, nil
}
