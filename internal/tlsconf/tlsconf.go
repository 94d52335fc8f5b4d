// Package tlsconf turns the daemon's shared token into TLS credentials for
// the optional TCP listener.
//
// Both ends derive the same ECDSA P-256 key from the token:
//
//	HKDF-SHA256(ikm=token, salt="bepaste-tls-v1", info="listener-key")
//
// The daemon presents a throwaway self-signed certificate for that key and
// clients accept a server only if its public key equals the one they derived.
// A wrong token therefore fails the handshake before any RPC is sent.
package tlsconf

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/hkdf"
	"google.golang.org/grpc/credentials"
)

// DefaultPassphrase keys the listener when no token is configured. It
// encrypts traffic but authenticates nothing.
const DefaultPassphrase = "bepaste"

const serverName = "bepaste"

// ErrKeyMismatch is returned by the client verifier when the server's key
// was derived from a different passphrase.
var ErrKeyMismatch = errors.New("tlsconf: server public key does not match token")

// ServerConfig returns the listener's TLS config. ALPN offers h2 and
// http/1.1 so gRPC and the HTTP routes can share the port.
func ServerConfig(passphrase string) (*tls.Config, error) {
	key, err := deriveKey(passphrase)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	der, err := selfSignedCert(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: cert: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientConfig returns a TLS config that trusts exactly the server keyed
// by passphrase.
func ClientConfig(passphrase string) (*tls.Config, error) {
	key, err := deriveKey(passphrase)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	want, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: marshal pubkey: %w", err)
	}
	return &tls.Config{
		// Chain verification is replaced by the public-key check below.
		InsecureSkipVerify: true, //nolint:gosec
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS13,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return errors.New("tlsconf: server presented no certificate")
			}
			cert, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("tlsconf: parse server cert: %w", err)
			}
			got, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
			if err != nil {
				return fmt.Errorf("tlsconf: marshal server pubkey: %w", err)
			}
			if !bytes.Equal(got, want) {
				return ErrKeyMismatch
			}
			return nil
		},
	}, nil
}

// ClientCredentials wraps ClientConfig for grpc.WithTransportCredentials.
func ClientCredentials(passphrase string) (credentials.TransportCredentials, error) {
	cfg, err := ClientConfig(passphrase)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(cfg), nil
}

func deriveKey(passphrase string) (*ecdsa.PrivateKey, error) {
	r := hkdf.New(sha256.New, []byte(passphrase), []byte("bepaste-tls-v1"), []byte("listener-key"))
	buf := make([]byte, 64)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("hkdf read: %w", err)
	}

	curve := elliptic.P256()
	n := curve.Params().N
	k := new(big.Int).SetBytes(buf)
	k.Mod(k, new(big.Int).Sub(n, big.NewInt(1)))
	k.Add(k, big.NewInt(1)) // k ∈ [1, N-1]

	key := new(ecdsa.PrivateKey)
	key.PublicKey.Curve = curve
	key.D = k
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(k.Bytes())
	return key, nil
}

// selfSignedCert returns a DER certificate for key. Only the key inside it
// is ever checked.
func selfSignedCert(key *ecdsa.PrivateKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: serverName},
		DNSNames:              []string{serverName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	return x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
}
