// Package auth implements the credential core: the user model, the salted
// password hasher and the signed bearer token issuer/verifier.
//
// Passwords are never stored; each user carries a random salt and the
// HMAC-SHA1 digest of the password under that salt. Changing the password
// always regenerates the salt and the digest together. Tokens are stateless
// JWTs signed with a server-held secret; expiry is the only invalidation
// mechanism.
package auth
