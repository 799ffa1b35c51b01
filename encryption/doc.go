// Package encryption seals small secrets, such as cached third-party
// tokens, before they are written to shared storage.
//
// Keys are derived from the service secret with HKDF-SHA256 and a purpose
// label, so one secret can protect several caches without key reuse.
// Associated data binds a ciphertext to the record it was written for.
//
//	enc, err := encryption.New(secret, "moodle-token-cache")
//	sealed, err := enc.Encrypt(token, cacheKey)
//	token, err := enc.Decrypt(sealed, cacheKey)
package encryption
