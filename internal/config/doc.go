// Package config provides centralized configuration management for the
// tremor service. It merges environment variables, an optional YAML file and
// built-in defaults, in that order of precedence.
//
// All environment variables follow the pattern TREMOR_* for namespacing:
//
//	TREMOR_SERVER_PORT=8080
//	TREMOR_LOGGING_LEVEL=info
//	TREMOR_PATHS_NETWORK_FILE=data/causal_network.graphml
//	TREMOR_CAUSAL_SHOCK_THRESHOLD_SD=2.0
//
// The optional file defaults to tremor.yaml next to the binary and can be
// pointed elsewhere with TREMOR_CONFIG_FILE. All configuration is validated
// at load time.
package config
