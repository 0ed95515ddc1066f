// Package config handles configuration loading for parley-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PARLEY_CONFIG environment variable
//  2. ~/.config/parley/gateway.yaml (respecting XDG_CONFIG_HOME)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	inference:
//	  api_key: "${OPENAI_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	inference:
//	  request_timeout: "60s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  allowed_origins:
//	    - "https://app.example.com"
//
// Inference settings:
//
//	inference:
//	  api_key: "${OPENAI_API_KEY}"
//	  base_url: ""            # OpenAI-compatible endpoint override
//	  model: "gpt-4o-mini"
//	  transcribe_model: "whisper-1"
//	  system_prompt: "You are a helpful assistant."
//	  request_timeout: "60s"
//
// Logging settings:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text (colorized) or json
package config
