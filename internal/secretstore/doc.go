// Package secretstore provides key-value storage for secrets such as OAuth
// access tokens.
//
// Supports three backends with different security and deployment tradeoffs:
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, Secret Service)
//   - File: one file per key with atomic writes and 0600 permissions
//   - Env: read-only environment variable access (requires external secret management)
//
// Logging in requires a writable backend (keyring or file). A pre-provisioned
// token can be supplied through the read-only env backend.
package secretstore
