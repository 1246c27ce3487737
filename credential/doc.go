// Package credential turns plain text passwords into values that are safe
// to persist, and checks a password against such a value later on.
//
// A stored value looks like <salt>.<key>, both halves hex encoded. The key
// is derived with scrypt, using the hex representation of the salt (and not
// the raw bytes) as the scrypt salt, so values produced by older deployments
// keep verifying.
//
// Nothing here knows about users or storage, callers decide where the
// stored value lives.
package credential
