// Package config loads, normalizes, and validates subtitler configuration.
//
// Values are layered in order: repository defaults, an optional TOML file, an
// optional .env file, then process environment variables such as
// MAX_CONCURRENCY and FFMPEG_CRF. Misconfigured values never abort startup;
// each falls back to its default and leaves a human-readable entry in
// Config.Warnings for the server to log.
//
// Always obtain settings through this package so downstream code receives
// expanded paths and in-range parameters.
package config
