// Package crypto provides the cryptographic primitives of the openRoots gateway.
//
// Two concerns live here:
//
//   - Service signing keys: secp256k1 ECDSA with Ethereum personal-message
//     hashing, used for dataset attestations and capacity delegation
//     signatures. Signatures are 65 bytes (r || s || v) with v in {27, 28},
//     interoperable with ethers.js signMessage/recoverAddress.
//
//   - Identity-based encryption over the EVM-friendly BN254 pairing curve,
//     used in two places: time-lock encryption of content identifiers toward
//     a future block height, and condition-bound envelope encryption under
//     the decryption network's master public key.
//
// The IBE construction is Boneh-Franklin with the ciphertext point on G2 so
// that identity keys (network signatures) live on G1, matching the on-chain
// ciphertext layout (u.x[2], u.y[2] as uint256 limbs).
//
// Note: group and field operations are not constant-time; none of the inputs
// here are long-lived secrets beyond the service key itself.
package crypto
