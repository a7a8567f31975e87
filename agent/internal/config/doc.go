// Package config loads and watches the agent configuration file (agent.yaml).
//
// Top-level types:
//   - Config{Agent} is the full config tree parsed from YAML
//   - AgentConfig holds server_endpoint, interval, buffer_size, source,
//     synthetic, cabinets [] and thresholds
//   - SyntheticConfig shapes the demo fleet (cabinet and unit counts, leak
//     probability, severity weights, seed)
//   - Cabinet is one exporter endpoint with its auth and tls settings
//   - AuthConfig selects mtls|apikey|bearer|basic|none; Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s interval, buffer 16,
// synthetic source with 6 cabinets of 4..8 servers), merges threshold
// overrides onto compute.DefaultTable, then validates.
//
// Watch(ctx, path, onChange) watches the file's directory with fsnotify, so
// atomic-save editors (vim, VS Code) are seen, debounces each burst of events
// and calls onChange with the newly parsed Config.
//
// RestartRequired(old, updated) names the settings that changed but only take
// effect after a restart.
package config
