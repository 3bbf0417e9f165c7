// Copyright (c) 2026 Medica Movil
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v2"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/attachments"
)

// Config is the daemon's yaml configuration
type Config struct {
	Server struct {
		// Addr is the HTTP listen address for /metrics and /healthz
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Storage attachments.S3Config `yaml:"storage"`

	Chat chat.Config `yaml:"chat"`
}

// LoadConfig reads the yaml config file. Values not set in the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Config{Chat: chat.DefaultConfig()}
	cfg.Server.Addr = ":8080"
	cfg.NATS.URL = nats.DefaultURL

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config : %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config : %w", err)
	}

	if cfg.Database.DSN == "" {
		return cfg, fmt.Errorf("config : database.dsn is required")
	}
	if cfg.Storage.Bucket == "" {
		return cfg, fmt.Errorf("config : storage.bucket is required")
	}
	return cfg, nil
}
