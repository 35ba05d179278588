// Package namer computes output file paths for capture jobs.
//
// Names have the form {base}-{width}x{height}[-{n}].{ext}. The -{n} suffix is
// only added when several jobs of the same run share a base name and size, and
// n is the job's 1-based position among them in job order. Names are computed
// once from the whole job list, so they never depend on which capture
// finishes first.
package namer

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"multishot/internal/job"
)

// fallbackBase is used when a target yields no usable characters.
const fallbackBase = "screenshot"

// Output pairs a job with its resolved destination.
type Output struct {
	Job  job.Job
	Path string
}

// Resolve returns one Output per job, in job order. It never consults the
// filesystem.
func Resolve(jobs []job.Job) []Output {
	type key struct {
		base string
		size job.Size
	}

	keys := make([]key, len(jobs))
	counts := make(map[key]int)
	for i, j := range jobs {
		keys[i] = key{base: BaseName(j.Target), size: j.Size}
		counts[keys[i]]++
	}

	seen := make(map[key]int)
	outputs := make([]Output, len(jobs))
	for i, j := range jobs {
		k := keys[i]
		name := fmt.Sprintf("%s-%s", k.base, k.size)
		if counts[k] > 1 {
			seen[k]++
			name = fmt.Sprintf("%s-%d", name, seen[k])
		}
		outputs[i] = Output{
			Job:  j,
			Path: filepath.Join(j.OutputDir, name+"."+j.Format.Ext()),
		}
	}
	return outputs
}

// BaseName derives the sanitized base name of a target. For URLs it is the
// last path element without extension, or the host when the path is empty.
// For filesystem paths it is the file name without extension.
func BaseName(target string) string {
	var base string
	if u, err := url.Parse(target); err == nil && isURLScheme(u.Scheme) {
		p := strings.TrimRight(u.Path, "/")
		switch {
		case p != "":
			base = trimExt(path.Base(p))
		case u.Host != "":
			base = u.Host
		}
	} else {
		base = trimExt(filepath.Base(strings.TrimRight(target, `/\`)))
	}

	if s := sanitize(base); s != "" {
		return s
	}
	return fallbackBase
}

// isURLScheme rejects one-letter schemes so Windows drive letters are not
// mistaken for URLs.
func isURLScheme(scheme string) bool {
	return len(scheme) > 1
}

func trimExt(name string) string {
	if ext := path.Ext(name); ext != "" && ext != name {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// sanitize keeps [A-Za-z0-9._-], maps everything else to '-', collapses
// repeated dashes and trims dashes and dots from both ends.
func sanitize(s string) string {
	var sb strings.Builder
	lastDash := false
	for _, r := range s {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-'
		if !ok || r == '-' {
			if !lastDash {
				sb.WriteByte('-')
			}
			lastDash = true
			continue
		}
		sb.WriteRune(r)
		lastDash = false
	}
	return strings.Trim(sb.String(), "-.")
}
