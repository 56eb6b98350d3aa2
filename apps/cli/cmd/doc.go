// Package cmd implements the mirrorperf CLI commands using Cobra.
//
// Available commands:
//   - run: Load-test scenarios for a duration at a rate or with virtual users
//   - check: Run every selected scenario once and report its checks
//   - list: Display the registered scenarios
//   - history: Show stored load runs
//   - mock: Serve a local mirror node for smoke runs
//   - version: Show mirrorperf version information
//
// Scenario parameters are merged from the config file, a .env file, the
// process environment and --param flags, later sources winning.
package cmd
