// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// indexEntry is the keyring entry holding the JSON list of stored key
// names per service. go-keyring cannot enumerate keys, so Keys() reads
// this index instead.
const indexEntry = "__keys__"

// KeyringStore implements Store on the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkArgs(service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.indexAdd(service, key)
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkArgs(service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", parleyerr.Errorf(parleyerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkArgs(service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return parleyerr.Errorf(parleyerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return parleyerr.Wrapf(err, parleyerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.indexRemove(service, key)
}

func (s *KeyringStore) Keys(service string) ([]string, error) {
	return s.loadIndex(service)
}

func checkArgs(service, key string) error {
	if service == "" {
		return parleyerr.New(parleyerr.CodeSecretInvalidInput, "secret store: service must not be empty")
	}
	if key == "" {
		return parleyerr.New(parleyerr.CodeSecretInvalidInput, "secret store: key must not be empty")
	}
	return nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexEntry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, parleyerr.Wrapf(err, parleyerr.CodeSecretListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeSecretListFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexEntry); delErr != nil && !errors.Is(delErr, keyring.ErrNotFound) {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretListFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexEntry, string(data)); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretListFailure, "saving key index for service %s", service)
	}
	return nil
}

func (s *KeyringStore) indexAdd(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.saveIndex(service, append(keys, key))
}

func (s *KeyringStore) indexRemove(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	filtered := keys[:0]
	for _, k := range keys {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	return s.saveIndex(service, filtered)
}
