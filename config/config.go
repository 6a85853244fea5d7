// Package config loads the list of servers and client settings
// from a TOML or YAML file.
//
// Example (TOML):
//
//	log_file = "~/.ircterm/ircterm.log"
//
//	[[server]]
//	name = "libera"
//	address = "irc.libera.chat"
//	nick = "bob"
//	autojoin = ["#go-nuts"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/session"
	"gopkg.in/yaml.v3"
)

const DefaultPort = session.DefaultPort

var ErrUnknownFormat = errors.New("unknown config file format")

// Config is the whole configuration file.
type Config struct {
	Servers []Server `toml:"server" yaml:"servers"`

	// LogFile receives the structured application log. The terminal belongs to the UI.
	LogFile string `toml:"log_file" yaml:"log_file"`

	// Database is the scrollback database. Empty disables persistence.
	Database string `toml:"database" yaml:"database"`

	Debug bool `toml:"debug" yaml:"debug"`

	// WireLog, when set, receives a copy of all IRC traffic.
	WireLog string `toml:"wire_log" yaml:"wire_log"`

	// ConnectTimeout bounds address resolution, e.g. "10s".
	ConnectTimeout string `toml:"connect_timeout" yaml:"connect_timeout"`
}

// Server is one IRC server definition.
type Server struct {
	Name     string   `toml:"name" yaml:"name"`
	Address  string   `toml:"address" yaml:"address"`
	Port     int      `toml:"port" yaml:"port"`
	Password string   `toml:"password" yaml:"password"`
	Nick     string   `toml:"nick" yaml:"nick"`
	Username string   `toml:"username" yaml:"username"`
	Realname string   `toml:"realname" yaml:"realname"`
	Autojoin []string `toml:"autojoin" yaml:"autojoin"`
}

// Load reads the file at path. The format is chosen by extension:
// .toml, or .yaml/.yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".toml", ".yaml", or ".yml"),
// applies defaults, and validates the result.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := new(Config)
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Port == 0 {
			s.Port = DefaultPort
		}
		if s.Name == "" {
			s.Name = s.Address
		}
		if s.Username == "" {
			s.Username = s.Nick
		}
		if s.Realname == "" {
			s.Realname = s.Nick
		}
	}
	c.LogFile = expandHome(c.LogFile)
	c.Database = expandHome(c.Database)
	c.WireLog = expandHome(c.WireLog)
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if _, err := c.Timeout(); err != nil {
		return err
	}
	names := make(map[string]bool)
	for i, s := range c.Servers {
		switch {
		case s.Address == "":
			return fmt.Errorf("server %d: address is required", i+1)
		case s.Nick == "":
			return fmt.Errorf("server %q: nick is required", s.Name)
		case strings.ContainsAny(s.Nick, " ,*?!@"):
			return fmt.Errorf("server %q: invalid nick %q", s.Name, s.Nick)
		case s.Port < 1 || s.Port > 65535:
			return fmt.Errorf("server %q: invalid port %d", s.Name, s.Port)
		case names[strings.ToLower(s.Name)]:
			return fmt.Errorf("server %q: duplicate name", s.Name)
		}
		names[strings.ToLower(s.Name)] = true
		for _, ch := range s.Autojoin {
			if !irc.IsChannel(ch) {
				return fmt.Errorf("server %q: autojoin %q is not a channel", s.Name, ch)
			}
		}
	}
	return nil
}

// Timeout parses ConnectTimeout, returning zero when unset.
func (c *Config) Timeout() (time.Duration, error) {
	if c.ConnectTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("connect_timeout: %w", err)
	}
	return d, nil
}

// Session converts the server definition into a session configuration.
func (s Server) Session(timeout time.Duration) session.Config {
	return session.Config{
		Name:           s.Name,
		Host:           s.Address,
		Port:           s.Port,
		Password:       s.Password,
		Nick:           s.Nick,
		Username:       s.Username,
		Realname:       s.Realname,
		Autojoin:       s.Autojoin,
		ConnectTimeout: timeout,
	}
}

// Server returns the server definition named name (case-insensitive).
func (c *Config) Server(name string) (Server, bool) {
	for _, s := range c.Servers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Server{}, false
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DefaultPath is where the CLI looks for a configuration file when none is given.
func DefaultPath() string {
	return expandHome("~/.ircterm/config.toml")
}
