// Package trust loads the root certificates used as trust anchors for
// signature certificate-chain validation. The set is built once at
// startup and immutable afterwards.
package trust

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

type AnchorSet struct {
	pool  *x509.CertPool
	count int
}

// NewAnchorSet parses a list of PEM-encoded certificates. Every entry
// must contain at least one CERTIFICATE block; anything else is a
// configuration error, not something to skip silently.
func NewAnchorSet(pems []string) (*AnchorSet, error) {
	if len(pems) == 0 {
		return nil, errors.New("no trust anchors configured")
	}

	pool := x509.NewCertPool()
	count := 0

	for i, entry := range pems {
		rest := []byte(entry)
		found := false

		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				return nil, fmt.Errorf("trust anchor %d: unexpected PEM block %q", i, block.Type)
			}

			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("trust anchor %d: parsing certificate: %w", i, err)
			}

			pool.AddCert(cert)
			count++
			found = true
		}

		if !found {
			return nil, fmt.Errorf("trust anchor %d: no CERTIFICATE block found", i)
		}
	}

	return &AnchorSet{pool: pool, count: count}, nil
}

// Pool returns the anchor set as an x509.CertPool for path validation.
func (s *AnchorSet) Pool() *x509.CertPool {
	return s.pool
}

func (s *AnchorSet) Len() int {
	return s.count
}
