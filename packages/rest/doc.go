// Package rest declares the mirror REST API load-test scenarios.
package rest
