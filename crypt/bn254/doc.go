// Package bn254 implements BLS signatures over the BN254 pairing curve: keys, signing,
// verification and aggregation of signatures and public keys.
//
// Signatures live in G1 (the message is hashed to G1), public keys live in G2. Aggregation is
// plain group addition, so an aggregate signature over a subset verifies against the sum of
// exactly that subset's public keys.
package bn254
