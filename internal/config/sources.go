package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/user/ingest-pipeline/internal/domain"
)

// Source describes one external web source: where discovery starts and which
// links count as content.
type Source struct {
	Name        string               `mapstructure:"name" yaml:"name"`
	SeedURLs    []string             `mapstructure:"seed_urls" yaml:"seed_urls"`
	MaxArticles int                  `mapstructure:"max_articles" yaml:"max_articles"`
	Ruleset     domain.SourceRuleset `mapstructure:"ruleset" yaml:"ruleset"`
}

// Validate checks the source definition is usable.
func (s *Source) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.SeedURLs) == 0 {
		return errors.New("at least one seed_url is required")
	}
	if s.Ruleset.Domain == "" {
		return errors.New("ruleset.domain is required")
	}
	if s.Ruleset.MinPathSegments < 0 {
		return errors.New("ruleset.min_path_segments must be non-negative")
	}
	if err := s.Ruleset.CompilePattern(); err != nil {
		return fmt.Errorf("ruleset.pattern: %w", err)
	}
	return nil
}

type sourcesFile struct {
	Sources []Source `mapstructure:"sources"`
}

// LoadSources reads and validates the YAML sources file.
func LoadSources(path string) ([]Source, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	var file sourcesFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}

	for i := range file.Sources {
		if err := file.Sources[i].Validate(); err != nil {
			return nil, fmt.Errorf("source %q: %w", file.Sources[i].Name, err)
		}
	}
	return file.Sources, nil
}
