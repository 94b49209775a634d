// Package config defines the application configuration structure and
// loading. Configuration comes from environment variables (GLOSSARY_
// prefix) layered over an optional YAML file, is validated once at
// startup, and is passed to components as an immutable struct.
package config
