// Package locator answers "where does the host application live" for plugin
// discovery: the per-user data directory, the application directory, the
// bundled resources directory and the process working directory.
package locator

import (
	"os"
	"path/filepath"
)

// Locator produces the paths discovery roots are derived from. The platform
// makes no assumption about how these are computed.
type Locator interface {
	UserDataPath() string
	AppPath() string
	ResourcesPath() string
	Cwd() string
}

// Default resolves paths from the running process: user data under
// ~/.arion, app and resources relative to the executable.
type Default struct{}

// NewDefault creates the process-derived locator.
func NewDefault() Default {
	return Default{}
}

func (Default) UserDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".arion")
}

func (Default) AppPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

func (d Default) ResourcesPath() string {
	app := d.AppPath()
	if app == "" {
		return ""
	}
	return filepath.Join(app, "resources")
}

func (Default) Cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// Static is a fixed-path locator, used by tests and embedders that already
// know the host layout.
type Static struct {
	UserData  string
	App       string
	Resources string
	WorkDir   string
}

func (s Static) UserDataPath() string  { return s.UserData }
func (s Static) AppPath() string       { return s.App }
func (s Static) ResourcesPath() string { return s.Resources }
func (s Static) Cwd() string           { return s.WorkDir }
