package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Profile describes the shell launched for every new session. It can be
// kept in a YAML or TOML file named by TERM_PROFILE_FILE; fields left empty
// fall back to the environment configuration.
type Profile struct {
	Shell   string            `yaml:"shell" toml:"shell"`
	Args    []string          `yaml:"args" toml:"args"`
	WorkDir string            `yaml:"workdir" toml:"workdir"`
	Env     map[string]string `yaml:"env" toml:"env"`
}

// LoadProfile reads a profile file, picking the decoder from the extension.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	case ".toml":
		err = toml.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("unsupported profile format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return &p, nil
}

// BaseProfile builds the profile implied by the environment configuration.
func (t TerminalConfig) BaseProfile() Profile {
	return Profile{
		Shell:   t.ResolveShell(),
		Args:    append([]string(nil), t.ShellArgs...),
		WorkDir: t.ResolveWorkDir(),
	}
}

// Merge overlays the non-empty fields of o onto p.
func (p Profile) Merge(o *Profile) Profile {
	if o == nil {
		return p
	}
	if o.Shell != "" {
		p.Shell = o.Shell
	}
	if len(o.Args) > 0 {
		p.Args = append([]string(nil), o.Args...)
	}
	if o.WorkDir != "" {
		p.WorkDir = o.WorkDir
	}
	if len(o.Env) > 0 {
		env := make(map[string]string, len(p.Env)+len(o.Env))
		for k, v := range p.Env {
			env[k] = v
		}
		for k, v := range o.Env {
			env[k] = v
		}
		p.Env = env
	}
	return p
}
