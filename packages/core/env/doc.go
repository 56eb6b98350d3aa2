// Package env collects scenario parameters from the places a user can set
// them: .env files, the process environment and KEY=value flags.
package env
