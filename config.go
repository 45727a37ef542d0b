package fetchcache

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/fetchcache/fetcher"
)

// Config is the file form of Options, e.g.
//
//	sweep_delay: 30s
//	fetch_timeout: 10s
//	response_ttl: 10m
//	max_body_bytes: 1048576
//	headers:
//	  Accept: application/json
type Config struct {
	SweepDelay   time.Duration     `yaml:"sweep_delay"`
	FetchTimeout time.Duration     `yaml:"fetch_timeout"`
	GenRetention time.Duration     `yaml:"gen_retention"`
	ResponseTTL  time.Duration     `yaml:"response_ttl"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
	Headers      map[string]string `yaml:"headers"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes YAML config from r. Unknown keys are rejected.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("fetchcache: parse config: %w", err)
	}
	return cfg, nil
}

// Apply copies the non-zero settings into opts. Transport settings need the
// HTTP fetcher: one is created when opts.Fetcher is nil, and a custom
// fetcher makes them an error.
func (cfg Config) Apply(opts *Options) error {
	if cfg.SweepDelay != 0 {
		opts.SweepDelay = cfg.SweepDelay
	}
	if cfg.FetchTimeout != 0 {
		opts.FetchTimeout = cfg.FetchTimeout
	}
	if cfg.GenRetention != 0 {
		opts.GenRetention = cfg.GenRetention
	}
	if cfg.ResponseTTL != 0 {
		opts.ResponseTTL = cfg.ResponseTTL
	}
	if cfg.MaxBodyBytes == 0 && len(cfg.Headers) == 0 {
		return nil
	}

	if opts.Fetcher == nil {
		opts.Fetcher = fetcher.NewHTTP()
	}
	h, ok := opts.Fetcher.(*fetcher.HTTP)
	if !ok {
		return fmt.Errorf("fetchcache: max_body_bytes/headers need the HTTP fetcher, have %T", opts.Fetcher)
	}
	if cfg.MaxBodyBytes != 0 {
		h.MaxBody = cfg.MaxBodyBytes
	}
	if len(cfg.Headers) > 0 && h.Header == nil {
		h.Header = make(http.Header, len(cfg.Headers))
	}
	for k, v := range cfg.Headers {
		h.Header.Set(k, v)
	}
	return nil
}
