package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func loadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays the non-zero fields of override onto base.
func merge(base, override Config) Config {
	if override.Port != "" {
		base.Port = override.Port
	}
	if override.Env != "" {
		base.Env = normalizeEnv(override.Env)
	}
	if len(override.CORSAllowOrigin) > 0 {
		base.CORSAllowOrigin = override.CORSAllowOrigin
	}
	if override.DatabaseURL != "" {
		base.DatabaseURL = override.DatabaseURL
	}
	if override.ObjectStoreType != "" {
		base.ObjectStoreType = normalizeStoreType(override.ObjectStoreType)
	}
	if override.LocalStoreDir != "" {
		base.LocalStoreDir = override.LocalStoreDir
	}
	if override.AWSRegion != "" {
		base.AWSRegion = override.AWSRegion
	}
	if override.S3Bucket != "" {
		base.S3Bucket = override.S3Bucket
	}
	if override.S3Prefix != "" {
		base.S3Prefix = override.S3Prefix
	}
	if override.LLMProvider != "" {
		base.LLMProvider = override.LLMProvider
	}
	if override.LLMModel != "" {
		base.LLMModel = override.LLMModel
	}
	if override.OpenAIBaseURL != "" {
		base.OpenAIBaseURL = override.OpenAIBaseURL
	}
	if override.BatchMaxWorkers > 0 {
		base.BatchMaxWorkers = override.BatchMaxWorkers
	}
	if override.BatchRetention > 0 {
		base.BatchRetention = override.BatchRetention
	}
	if override.SessionStore != "" {
		base.SessionStore = normalizeSessionStore(override.SessionStore)
	}
	if override.RedisURL != "" {
		base.RedisURL = override.RedisURL
	}
	if override.SessionTTL > 0 {
		base.SessionTTL = override.SessionTTL
	}
	return base
}
