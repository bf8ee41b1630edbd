// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP ingress.
type ServerConfig struct {
	// Host to bind to.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// RequestDeadline bounds one agent run end to end. Expiry yields a
	// final result with timeout status.
	RequestDeadline time.Duration `yaml:"request_deadline,omitempty" json:"request_deadline,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.RequestDeadline == 0 {
		c.RequestDeadline = time.Hour
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.RequestDeadline < time.Second {
		return fmt.Errorf("request_deadline must be at least 1s")
	}
	return nil
}

// StreamConfig configures the per-request SSE channel.
type StreamConfig struct {
	// HeartbeatInterval between keep-alive frames on an idle stream.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval,omitempty" json:"heartbeat_interval,omitempty"`

	// QueueSize is the event buffer between producers and the wire.
	QueueSize int `yaml:"queue_size,omitempty" json:"queue_size,omitempty"`

	// EnqueueTimeout is how long a producer may wait on a full queue
	// before the stream is declared broken.
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout,omitempty" json:"enqueue_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *StreamConfig) SetDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.EnqueueTimeout == 0 {
		c.EnqueueTimeout = 5 * time.Second
	}
}

// Validate checks the stream configuration.
func (c *StreamConfig) Validate() error {
	if c.HeartbeatInterval < time.Second {
		return fmt.Errorf("heartbeat_interval must be at least 1s")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive")
	}
	return nil
}
