// Package hash provides one-way hashing for secrets.
//
// Two families live here: password hashers (bcrypt, argon2id) that salt every
// call, and a keyed digest (HMAC-SHA256) that is deterministic so a stored value
// can be matched in a query. Both satisfy the Hash interface.
package hash
