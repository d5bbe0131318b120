// Package obconfig loads the application configuration.
//
// Configuration is a flat string key/value set layered over fixed defaults.
// It is read from a Java style properties file or from YAML. Typed Settings
// are derived once at startup; malformed values are logged and replaced by
// their defaults, never fatal.
package obconfig
