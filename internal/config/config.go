// Package config loads the runtime settings the columnar engine and
// CLI need to start: where the data directory lives, how many
// partitions may be evaluated concurrently, and the default query
// deadline. Configuration layering (CLI flags, environment overrides)
// is an external collaborator's job; this package only resolves one
// project directory's on-disk settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
	"github.com/pelletier/go-toml/v2"
)

// RuntimeConfig is the subset of settings the filter core and
// table/ingest layer actually consume.
type RuntimeConfig struct {
	DataDirectory   string
	ParallelThreads int
	QueryTimeout    time.Duration
}

func defaults() RuntimeConfig {
	return RuntimeConfig{
		DataDirectory:   "./data",
		ParallelThreads: runtime.NumCPU(),
		QueryTimeout:    30 * time.Second,
	}
}

// Load resolves settings for the project rooted at dir: struct
// defaults, overlaid by silo.toml if present, overlaid by silo.kdl if
// present. Later layers win field-by-field; a layer that is absent is
// skipped rather than treated as an error.
func Load(dir string) (*RuntimeConfig, error) {
	cfg := defaults()

	if tomlCfg, err := loadTOML(dir); err != nil {
		return nil, err
	} else if tomlCfg != nil {
		mergeInto(&cfg, tomlCfg)
	}

	if kdlCfg, err := loadKDL(dir); err != nil {
		return nil, err
	} else if kdlCfg != nil {
		mergeInto(&cfg, kdlCfg)
	}

	if cfg.DataDirectory == "" {
		cfg.DataDirectory = "./data"
	}
	if !filepath.IsAbs(cfg.DataDirectory) {
		cfg.DataDirectory = filepath.Join(dir, cfg.DataDirectory)
	}
	if cfg.ParallelThreads < 1 {
		cfg.ParallelThreads = 1
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaults().QueryTimeout
	}
	return &cfg, nil
}

// tomlConfig mirrors silo.toml's on-disk shape; zero fields mean "not
// set", matched by tomlLayer.
type tomlConfig struct {
	DataDirectory   string `toml:"data_directory"`
	ParallelThreads int    `toml:"parallel_threads"`
	QueryTimeoutMs  int64  `toml:"query_timeout_ms"`
}

func loadTOML(dir string) (*RuntimeConfig, error) {
	path := filepath.Join(dir, "silo.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading silo.toml: %w", err)
	}
	var raw tomlConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing silo.toml: %w", err)
	}
	cfg := &RuntimeConfig{DataDirectory: raw.DataDirectory, ParallelThreads: raw.ParallelThreads}
	if raw.QueryTimeoutMs > 0 {
		cfg.QueryTimeout = time.Duration(raw.QueryTimeoutMs) * time.Millisecond
	}
	return cfg, nil
}

// loadKDL reads silo.kdl, the project-local layer that wins over
// silo.toml, mirroring the way a project-specific file is allowed to
// override a broader fallback.
func loadKDL(dir string) (*RuntimeConfig, error) {
	path := filepath.Join(dir, "silo.kdl")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading silo.kdl: %w", err)
	}
	doc, err := kdl.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing silo.kdl: %w", err)
	}
	cfg := &RuntimeConfig{}
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "data_directory":
			if s, ok := firstStringArg(n); ok {
				cfg.DataDirectory = s
			}
		case "parallel_threads":
			if v, ok := firstIntArg(n); ok {
				cfg.ParallelThreads = v
			}
		case "query_timeout_ms":
			if v, ok := firstIntArg(n); ok {
				cfg.QueryTimeout = time.Duration(v) * time.Millisecond
			}
		}
	}
	return cfg, nil
}

// mergeInto overlays the non-zero fields of layer onto base.
func mergeInto(base *RuntimeConfig, layer *RuntimeConfig) {
	if layer.DataDirectory != "" {
		base.DataDirectory = layer.DataDirectory
	}
	if layer.ParallelThreads != 0 {
		base.ParallelThreads = layer.ParallelThreads
	}
	if layer.QueryTimeout != 0 {
		base.QueryTimeout = layer.QueryTimeout
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
