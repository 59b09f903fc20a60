// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
)

// ErrorKind groups transport failures by how the prober reacts to them
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTLS
	KindTimeout
	KindTransport
	KindChallenge
	KindCanceled
	KindUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindTLS:
		return "SSLError"
	case KindTimeout:
		return "Timeout"
	case KindTransport:
		return "ConnectionError"
	case KindChallenge:
		return "ChallengeError"
	case KindCanceled:
		return "Canceled"
	}
	return "UnexpectedError"
}

// ClassifyError maps a request error to its kind
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if isTLSError(err) {
		return KindTLS
	}

	return KindTransport
}

func isTLSError(err error) bool {
	// plain HTTP answering on the https port
	if errors.Is(err, http.ErrSchemeMismatch) {
		return true
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr):
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "tls: ") || strings.Contains(msg, "x509: ")
}
