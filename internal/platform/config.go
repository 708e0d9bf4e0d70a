package platform

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/marginalia/pkg/readability"
	"github.com/aretw0/marginalia/pkg/session"
)

// ConfigFiles are the file names looked up in a document root, in order.
var ConfigFiles = []string{"marginalia.yaml", "marginalia.yml", "marginalia.toml"}

// ErrNoConfig is returned by FindConfig when no file exists.
var ErrNoConfig = errors.New("no configuration file found")

// Duration is a time.Duration read from strings such as "30s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(bytes.TrimSpace(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the file configuration of a document root.
type Config struct {
	Adapter    string `yaml:"adapter" toml:"adapter"`
	Path       string `yaml:"path" toml:"path"`
	SystemDir  string `yaml:"system_dir" toml:"system_dir"`
	Versioning *bool  `yaml:"versioning" toml:"versioning"`
	ReadOnly   bool   `yaml:"read_only" toml:"read_only"`
	LeaseStore string `yaml:"lease_store" toml:"lease_store"`

	LeaseTTL         Duration `yaml:"lease_ttl" toml:"lease_ttl"`
	AutosaveInterval Duration `yaml:"autosave_interval" toml:"autosave_interval"`
	SnapshotInterval Duration `yaml:"snapshot_interval" toml:"snapshot_interval"`
	SnapshotCap      int      `yaml:"snapshot_cap" toml:"snapshot_cap"`

	Models    Models           `yaml:"models" toml:"models"`
	RulesFile string           `yaml:"rules_file" toml:"rules_file"`
	Features  session.Features `yaml:"features" toml:"features"`

	// dir is where the file was found; relative paths resolve against it.
	dir string
}

// Models overrides the generation models picked from the environment.
type Models struct {
	Text  string `yaml:"text" toml:"text"`
	Image string `yaml:"image" toml:"image"`
}

// LoadConfig reads a YAML or TOML file, by extension.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// FindConfig loads the first of ConfigFiles present in dir.
func FindConfig(dir string) (Config, string, error) {
	for _, name := range ConfigFiles {
		path := filepath.Join(dir, name)
		if !exists(path) {
			continue
		}
		c, err := LoadConfig(path)
		return c, path, err
	}
	return Config{}, "", ErrNoConfig
}

// Root returns the document root: Path relative to the file, or the file's
// directory when Path is empty.
func (c Config) Root() string {
	switch {
	case c.Path == "":
		return c.dir
	case filepath.IsAbs(c.Path) || c.dir == "":
		return c.Path
	}
	return filepath.Join(c.dir, c.Path)
}

// Options translates the storage settings.
func (c Config) Options() []Option {
	opts := []Option{WithAdapter(c.Adapter), WithReadOnly(c.ReadOnly)}
	if c.SystemDir != "" {
		opts = append(opts, WithSystemDir(c.SystemDir))
	}
	if c.Versioning != nil {
		opts = append(opts, WithVersioning(*c.Versioning))
	}
	if c.LeaseStore != "" {
		opts = append(opts, WithLeaseStore(c.LeaseStore))
	}
	return opts
}

// SessionOptions translates the editing settings. The rules file is read
// here.
func (c Config) SessionOptions() ([]session.Option, error) {
	opts := []session.Option{session.WithFeatures(c.Features)}
	if c.LeaseTTL > 0 {
		opts = append(opts, session.WithLeaseTTL(time.Duration(c.LeaseTTL)))
	}
	if c.AutosaveInterval != 0 {
		opts = append(opts, session.WithAutosaveDelay(time.Duration(c.AutosaveInterval)))
	}
	if c.SnapshotInterval != 0 {
		opts = append(opts, session.WithAutoSnapshots(time.Duration(c.SnapshotInterval)))
	}
	if c.SnapshotCap > 0 {
		opts = append(opts, session.WithSnapshotLimit(c.SnapshotCap))
	}
	if c.RulesFile != "" {
		rules, err := c.Rules()
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithRules(rules))
	}
	return opts, nil
}

// Rules loads the readability rules file, or returns the built-in rules when
// none is configured.
func (c Config) Rules() (readability.Rules, error) {
	if c.RulesFile == "" {
		return readability.DefaultRules(), nil
	}
	path := c.RulesFile
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	return readability.LoadRules(path)
}
