// Package browser launches the system browser for the interactive login.
package browser

import (
	"errors"
	"os/exec"
	"runtime"
	"strings"
)

// Launcher opens a URL in the user-facing window. The login orchestrator
// depends on this interface so tests and embedding applications can swap
// in their own window facility.
type Launcher interface {
	Open(url string) error
}

// System opens URLs in the platform's default browser.
type System struct{}

// Open launches the default browser without waiting for it to exit.
func (System) Open(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
