// Package testinfra starts throwaway backing services for integration
// tests.  Everything except this file builds only with the integration
// tag:
//
//	go test -tags integration ./...
package testinfra
