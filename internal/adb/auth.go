package adb

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
)

// AUTH packet types.
const (
	authToken        uint32 = 1
	authSignature    uint32 = 2
	authRSAPublicKey uint32 = 3
)

const (
	rsaKeyBits  = 2048
	rsaKeyWords = rsaKeyBits / 32
)

// LoadKey reads an adb private key (~/.android/adbkey). Both PKCS#8 and
// PKCS#1 PEM encodings are accepted.
func LoadKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("adb: %s is not a PEM file", path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("adb: %s is not an RSA key", path)
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("adb: parse %s: %w", path, err)
	}
	return key, nil
}

// GenerateKey creates an in-memory key for hosts that have never run adb.
// The device will ask the user to accept it on every connection.
func GenerateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, rsaKeyBits)
}

// signToken signs the device's 20-byte challenge. adbd treats the token as
// an already computed SHA-1 digest.
func signToken(key *rsa.PrivateKey, token []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(nil, key, crypto.SHA1, token)
}

// encodePublicKey renders key in the Android mincrypt layout, base64
// encoded and followed by a " name" comment and a NUL terminator.
func encodePublicKey(key *rsa.PublicKey, name string) ([]byte, error) {
	if key.N.BitLen() != rsaKeyBits {
		return nil, fmt.Errorf("adb: public key must be %d bits, got %d", rsaKeyBits, key.N.BitLen())
	}

	// struct { u32 len; u32 n0inv; u32 n[64]; u32 rr[64]; u32 exponent }
	buf := make([]byte, 4*(3+2*rsaKeyWords))
	binary.LittleEndian.PutUint32(buf[0:], rsaKeyWords)

	word := new(big.Int).Lsh(big.NewInt(1), 32)
	n0 := new(big.Int).Mod(key.N, word)
	n0inv := new(big.Int).ModInverse(n0, word)
	n0inv.Sub(word, n0inv)
	binary.LittleEndian.PutUint32(buf[4:], uint32(n0inv.Uint64()))

	putWords(buf[8:], key.N)

	rr := new(big.Int).Lsh(big.NewInt(1), 2*rsaKeyBits)
	rr.Mod(rr, key.N)
	putWords(buf[8+4*rsaKeyWords:], rr)

	binary.LittleEndian.PutUint32(buf[8+8*rsaKeyWords:], uint32(key.E))

	out := make([]byte, base64.StdEncoding.EncodedLen(len(buf)))
	base64.StdEncoding.Encode(out, buf)
	out = append(out, ' ')
	out = append(out, name...)
	return append(out, 0), nil
}

// putWords writes v as rsaKeyWords little-endian 32-bit words, least
// significant word first.
func putWords(dst []byte, v *big.Int) {
	b := v.FillBytes(make([]byte, rsaKeyBits/8))
	for i := 0; i < rsaKeyWords; i++ {
		end := len(b) - 4*i
		binary.LittleEndian.PutUint32(dst[4*i:], binary.BigEndian.Uint32(b[end-4:end]))
	}
}

// keyName is the comment adb attaches to host keys.
func keyName() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return user + "@" + host
}
