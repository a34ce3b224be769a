package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"
)

// Config holds the settings for the debug HTTP harness: how the fMP4
// byte stream is sourced, how the parser is configured, and how the
// harness itself is exposed over HTTP.
type Config struct {
	LogFormat string `json:"logformat"`
	LogLevel  string `json:"loglevel"`
	Port      int    `json:"port"`

	// Input is a path to a file to read the fMP4 stream from. Empty
	// means read from stdin.
	Input string `json:"input"`
	// ChunkSize bounds how many bytes are read per Write call when
	// streaming Input; it exists to exercise arbitrary chunking.
	ChunkSize int `json:"chunksize"`

	HLSBase        string `json:"hlsbase"`
	HLSListSize    int    `json:"hlslistsize"`
	BufferListSize int    `json:"bufferlistsize"`
}

var DefaultConfig = Config{
	LogFormat:      LogText,
	LogLevel:       "INFO",
	Port:           8080,
	ChunkSize:      4096,
	HLSBase:        "stream",
	HLSListSize:    4,
	BufferListSize: 0,
}

// LoadConfig loads defaults, an optional JSON config file, environment
// variables (MP4FRAG_ prefix), and finally command line flags, each
// layer overriding the one before it.
func LoadConfig(args []string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig, "json"), nil); err != nil {
		return nil, err
	}

	f := pflag.NewFlagSet("mp4fragd", pflag.ContinueOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, "Run as mp4fragd [options]:\n")
		f.PrintDefaults()
	}
	cfgFile := f.String("config", "", "path to a JSON config file")
	lf := strings.Join(LogFormats, ", ")
	f.String("logformat", k.String("logformat"), fmt.Sprintf("log format [%s]", lf))
	ll := strings.Join(LogLevels, ", ")
	f.String("loglevel", k.String("loglevel"), fmt.Sprintf("log level [%s]", ll))
	f.Int("port", k.Int("port"), "HTTP port")
	f.String("input", k.String("input"), "path to fMP4 input file; empty reads stdin")
	f.Int("chunksize", k.Int("chunksize"), "bytes read per chunk from the input source")
	f.String("hlsbase", k.String("hlsbase"), "filename stem for HLS playlist URIs; empty disables HLS")
	f.Int("hlslistsize", k.Int("hlslistsize"), "HLS ring bound, clamped to [2, 10]")
	f.Int("bufferlistsize", k.Int("bufferlistsize"), "replay buffer ring bound; 0 disables buffering")
	if err := f.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("command line parse: %w", err)
	}

	if *cfgFile != "" {
		if err := k.Load(file.Provider(*cfgFile), json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("MP4FRAG_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "MP4FRAG_")), "_", ".")
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("parsing cli: %w", err)
	}

	cfg := DefaultConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
