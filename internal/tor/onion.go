package tor

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion address without the ".onion" suffix.
	OnionV3Length = 56

	// OnionV3Version is the version byte for v3 onion addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"
)

// onionV3Pattern matches v3 onion addresses (56 base32 characters + .onion).
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// checksumPrefix is the prefix used in v3 onion address checksum calculation.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host is in the .onion top-level domain.
// Subdomains such as "www.<address>.onion" count as onion hosts.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), OnionSuffix)
}

// IsValidV3Address checks if host is a valid v3 onion address, verifying
// the version byte and the SHA3-256 checksum. A single subdomain label in
// front of the address is allowed.
func IsValidV3Address(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if labels := strings.Split(host, "."); len(labels) == 3 {
		host = labels[1] + "." + labels[2]
	}

	if !onionV3Pattern.MatchString(host) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(host, OnionSuffix)))
	if err != nil {
		return false
	}

	// 32 bytes ed25519 public key, 2 bytes checksum, 1 byte version.
	if len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]

	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// ComputeV3AddressFromPublicKey derives the v3 onion address of an ed25519
// public key, which must be 32 bytes.
func ComputeV3AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}

	addressData := make([]byte, 35)
	copy(addressData[:32], pubkey)
	copy(addressData[32:34], computeV3Checksum(pubkey, OnionV3Version))
	addressData[34] = OnionV3Version

	return strings.ToLower(base32.StdEncoding.EncodeToString(addressData)) + OnionSuffix, nil
}
