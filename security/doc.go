// Package security builds TLS settings for outbound connections to the
// Moodle site and the identity provider, which are often served with a
// campus CA that is not in the system pool.
package security
