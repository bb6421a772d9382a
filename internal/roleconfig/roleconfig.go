// Package roleconfig serves the per-role starting configuration documents.
// Files in an optional directory override the fixed-game defaults built
// into the binary; game.json in that directory is the device-authored
// configuration written by the setup portal.
package roleconfig

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

//go:embed defaults/*.json
var defaults embed.FS

const DeviceFile = "game.json"

var ErrNoConfig = errors.New("no configuration for role")

type Source struct {
	dir string
}

// New returns a source reading overrides from dir. An empty dir uses the
// built-in files only.
func New(dir string) *Source {
	return &Source{dir: dir}
}

func fileName(r role.Role) string { return r.String() + ".json" }

// Load returns the configuration for r.
func (s *Source) Load(r role.Role) ([]byte, error) {
	if !r.Valid() || r == role.None {
		return nil, fmt.Errorf("%w: %s", ErrNoConfig, r)
	}
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, fileName(r)))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	data, err := defaults.ReadFile("defaults/" + fileName(r))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoConfig, r)
	}
	return data, nil
}

// LoadDevice returns the device-authored configuration, if one was saved.
func (s *Source) LoadDevice() ([]byte, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%w: no config directory", ErrNoConfig)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, DeviceFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s missing", ErrNoConfig, DeviceFile)
	}
	return data, err
}
