package domain

import "errors"

var (
	// ErrAuthFailed marks credential rejections. The connection manager
	// never auto-retries after one of these.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrTransportClosed marks a connection-reset class failure: the
	// transport is gone and the drain/receive loops must stop.
	ErrTransportClosed = errors.New("transport closed")

	// ErrNotConfigured means required connection settings are missing.
	ErrNotConfigured = errors.New("not configured")

	// ErrNotFound is returned by KVStore.Load when the key is absent.
	ErrNotFound = errors.New("not found")
)
