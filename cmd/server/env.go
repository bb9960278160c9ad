package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// serverEnv overrides flags from the environment. Empty values keep the flag.
type serverEnv struct {
	Addr       string `env:"ADV_ADDR"`
	ConfigDir  string `env:"ADV_CONFIGS"`
	DataDir    string `env:"ADV_DATA"`
	TuningPath string `env:"ADV_TUNING"`

	IndexBackend string `env:"ADV_INDEX_BACKEND" envDefault:"sqlite"`
	// Operators are added to the ones listed in tuning.yaml.
	Operators []string `env:"ADV_OPERATORS" envSeparator:","`

	EnableAdminHTTP *bool  `env:"ADV_ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool   `env:"ADV_ENABLE_PPROF_HTTP"`
	DeployEnv       string `env:"DEPLOY_ENV"`
}

func parseEnv() (serverEnv, error) {
	var e serverEnv
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	e.IndexBackend = strings.ToLower(strings.TrimSpace(e.IndexBackend))
	return e, nil
}

// adminHTTP defaults to on outside staging and production.
func (e serverEnv) adminHTTP() bool {
	if e.EnableAdminHTTP != nil {
		return *e.EnableAdminHTTP
	}
	switch strings.ToLower(strings.TrimSpace(e.DeployEnv)) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func override(flagVal *string, envVal string) {
	if v := strings.TrimSpace(envVal); v != "" {
		*flagVal = v
	}
}
