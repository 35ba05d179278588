package browser

import (
	"os"
	"strings"
)

// chromeCandidates are the usual install locations, probed in order.
var chromeCandidates = []string{
	"/opt/google/chrome/chrome",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// ResolveChromePath picks the Chrome binary for a run. A configured path
// (--chrome-path or chrome_path) is used as given, even if missing, so a bad
// setting fails the run instead of silently picking another browser. Next
// comes CHROME_BIN when it names an existing file, then chromeCandidates. An
// empty result leaves the lookup to chromedp.
func ResolveChromePath(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if env := strings.TrimSpace(os.Getenv("CHROME_BIN")); env != "" && isRegularFile(env) {
		return env
	}
	for _, path := range chromeCandidates {
		if isRegularFile(path) {
			return path
		}
	}
	return ""
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
