package keymaterial

// PairedDevice is one entry of the paired-device set: an identity and the
// X25519 public key confirmed for it during pairing.
type PairedDevice struct {
	DeviceID  string
	PublicKey [32]byte
}

// GroupSecret derives the symmetric key used to seal and open event-log
// files. peers is this device's paired-device set, excluding itself.
//
// With no peers (a solo device), the secret falls back to this device's
// self Diffie-Hellman value (DH(secret, own public)), so a device can seal
// its own log before ever pairing. Otherwise it XORs the pairwise X25519
// DH value with every peer together.
//
// XOR is commutative, and DH(A,B) == DH(B,A), so two paired devices always
// land on the same secret. Past exactly two devices this no longer holds in
// general — device A's term set is {DH(A,p) : p in peers(A)} and device C's
// is {DH(C,p) : p in peers(C)}, and those sets only cancel out to the same
// XOR for a two-member fleet. This matches the original implementation this
// was ported from and is called out as an open question in DESIGN.md
// (Group-secret construction): a hash-based aggregation over the sorted DH
// outputs would generalize correctly to larger fleets, at the cost of
// simplicity, under a threat model that already trusts paired devices.
func (kp KeyPair) GroupSecret(peers []PairedDevice) ([32]byte, error) {
	if len(peers) == 0 {
		return kp.SharedSecret(kp.PublicRaw())
	}

	var group [32]byte
	for _, peer := range peers {
		shared, err := kp.SharedSecret(peer.PublicKey)
		if err != nil {
			return group, err
		}
		xorInto(&group, shared)
	}
	return group, nil
}

func xorInto(dst *[32]byte, src [32]byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
