// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package secrets keeps provider API keys out of config files by
// storing them in the OS keyring and resolving keyring:// URIs at
// startup.
package secrets

// Service is the keyring service name all Parley secrets live under.
const Service = "parley"

// Store provides secure secret storage operations.
type Store interface {
	// Set saves a secret value under the given service and key.
	Set(service, key, value string) error

	// Get fetches the secret value for the given service and key.
	// A missing key reports secret.get.not_found via parleyerr.HasCode.
	Get(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// A missing key reports secret.get.not_found via parleyerr.HasCode.
	Delete(service, key string) error

	// Keys returns all key names stored under the given service.
	Keys(service string) ([]string, error)
}
