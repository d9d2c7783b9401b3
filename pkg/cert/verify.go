package cert

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// Verification errors.
var (
	ErrInvalidCert     = errors.New("invalid certificate")
	ErrNoPeerCert      = errors.New("peer presented no certificate")
	ErrCertExpired     = errors.New("certificate has expired")
	ErrCertNotYetValid = errors.New("certificate is not yet valid")
)

// VerifyCode classifies a verification outcome. Zero means the chain and
// the host name were both accepted.
type VerifyCode int

const (
	VerifyOK VerifyCode = iota
	VerifyNoCertificate
	VerifyUnknownAuthority
	VerifyHostnameMismatch
	VerifyExpired
	VerifyNotYetValid
	VerifyInvalid
	VerifyPending
)

// String returns the verify code name.
func (c VerifyCode) String() string {
	switch c {
	case VerifyOK:
		return "OK"
	case VerifyNoCertificate:
		return "NO_CERTIFICATE"
	case VerifyUnknownAuthority:
		return "UNKNOWN_AUTHORITY"
	case VerifyHostnameMismatch:
		return "HOSTNAME_MISMATCH"
	case VerifyExpired:
		return "EXPIRED"
	case VerifyNotYetValid:
		return "NOT_YET_VALID"
	case VerifyInvalid:
		return "INVALID"
	case VerifyPending:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// VerifyPeer checks that chain[0] chains to roots through the remaining
// certificates and, when hostname is not empty, that it is valid for
// hostname. A nil roots pool fails every chain.
func VerifyPeer(chain []*x509.Certificate, roots *x509.CertPool, hostname string, now time.Time) error {
	if len(chain) == 0 {
		return ErrNoPeerCert
	}
	leaf := chain[0]
	if leaf == nil {
		return ErrInvalidCert
	}

	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("%w: valid from %s", ErrCertNotYetValid, leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("%w: valid until %s", ErrCertExpired, leaf.NotAfter.Format(time.RFC3339))
	}

	if roots == nil {
		roots = x509.NewCertPool()
	}
	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if _, err := leaf.Verify(opts); err != nil {
		return err
	}

	if hostname != "" {
		if err := leaf.VerifyHostname(hostname); err != nil {
			return err
		}
	}
	return nil
}

// Classify maps a VerifyPeer error to a VerifyCode.
func Classify(err error) VerifyCode {
	if err == nil {
		return VerifyOK
	}

	var unknown x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError

	switch {
	case errors.Is(err, ErrNoPeerCert):
		return VerifyNoCertificate
	case errors.Is(err, ErrCertExpired):
		return VerifyExpired
	case errors.Is(err, ErrCertNotYetValid):
		return VerifyNotYetValid
	case errors.As(err, &unknown):
		return VerifyUnknownAuthority
	case errors.As(err, &hostname):
		return VerifyHostnameMismatch
	case errors.As(err, &invalid):
		if invalid.Reason == x509.Expired {
			return VerifyExpired
		}
		return VerifyInvalid
	default:
		return VerifyInvalid
	}
}

// CertificateInfo holds human-readable information about a certificate.
type CertificateInfo struct {
	CommonName string
	Issuer     string
	DNSNames   []string
	NotBefore  time.Time
	NotAfter   time.Time
	IsCA       bool
}

// GetCertificateInfo extracts information from a certificate.
func GetCertificateInfo(c *x509.Certificate) *CertificateInfo {
	if c == nil {
		return nil
	}
	return &CertificateInfo{
		CommonName: c.Subject.CommonName,
		Issuer:     c.Issuer.CommonName,
		DNSNames:   c.DNSNames,
		NotBefore:  c.NotBefore,
		NotAfter:   c.NotAfter,
		IsCA:       c.IsCA,
	}
}
