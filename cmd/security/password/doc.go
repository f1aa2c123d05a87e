// Package password hashes and verifies user secrets.
//
// New hashes are Argon2id in the PHC string format. Verify also accepts bcrypt
// hashes ($2a$, $2b$, $2y$), which is what accounts created through pgcrypto's
// crypt(..., gen_salt('bf')) carry. NeedsRehash reports hashes that should be
// upgraded after the next successful login.
package password
