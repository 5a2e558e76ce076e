// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: engine configuration in a TOML or YAML file, chosen by extension
package file
