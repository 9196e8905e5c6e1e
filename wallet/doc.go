// Package wallet holds the RSA primitives of BlockVote: key generation,
// PKCS#1 v1.5 signatures over SHA-256 and textbook RSA blind signatures.
//
// Keys travel as PKCS#1 PEM blocks ("RSA PUBLIC KEY" / "RSA PRIVATE KEY").
// Every function is stateless and safe for concurrent use.
package wallet
