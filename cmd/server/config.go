package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// config holds the service endpoints and defaults for the UI. All fields
// are optional; missing values fall back to a local chatbot service.
type config struct {
	Port string `yaml:"port"`

	// ServiceWSURL is the websocket endpoint the conversation runs over.
	ServiceWSURL string `yaml:"serviceWSURL"`
	// ServiceAPIURL is the base URL of the service's auxiliary HTTP API
	// (question proposals, api key check).
	ServiceAPIURL string `yaml:"serviceAPIURL"`

	// Model is the model identifier sent with every question.
	Model string `yaml:"model"`
}

const (
	defaultPort          = "8080"
	defaultServiceWSURL  = "ws://localhost:7860/text2text"
	defaultServiceAPIURL = "http://localhost:7860"
	defaultModel         = "gpt-3.5-turbo-0613"
)

// loadConfig reads the yaml config at path. A missing file is not an error;
// defaults are applied either way.
func loadConfig(path string) (config, error) {
	cfg := config{}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Fall through to defaults.
	case err != nil:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.ServiceWSURL == "" {
		cfg.ServiceWSURL = defaultServiceWSURL
	}
	if cfg.ServiceAPIURL == "" {
		cfg.ServiceAPIURL = defaultServiceAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	return cfg, nil
}
