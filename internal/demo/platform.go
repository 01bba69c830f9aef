package demo

import "github.com/stevehiehn/deskagent/internal/runner"

// linuxTerminals are probed in order of preference.
var linuxTerminals = []string{
	"gnome-terminal",
	"konsole",
	"xfce4-terminal",
	"mate-terminal",
	"tilix",
	"terminator",
	"xterm",
}

// lookPath is swapped in tests.
var lookPath = runner.Available

// DetectTerminal returns the command that opens a terminal on goos.
func DetectTerminal(goos string) (string, bool) {
	switch goos {
	case "linux":
		for _, term := range linuxTerminals {
			if lookPath(term) {
				return term, true
			}
		}
		return "", false
	case "darwin":
		return "open -a Terminal", true
	case "windows":
		return "cmd", true
	default:
		return "", false
	}
}

// LaunchTerminal starts the terminal command without waiting for it. Linux
// commands are bare program names; elsewhere the command goes through the
// shell.
func LaunchTerminal(goos, command string) error {
	if goos == "linux" {
		return runner.StartDetached(command)
	}
	return runner.StartDetachedShell(command)
}

// CloseKeys is the hotkey that closes the focused terminal window.
func CloseKeys(goos string) []string {
	if goos == "darwin" {
		return []string{"cmd", "q"}
	}
	return []string{"alt", "f4"}
}
