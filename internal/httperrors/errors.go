// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors classifies transport failures and prints user-friendly
// troubleshooting blocks for them.
package httperrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Class is a transport failure category.
type Class int

const (
	Other Class = iota
	Timeout
	DNS
	Refused
	TLS
	Server
)

func (c Class) String() string {
	switch c {
	case Timeout:
		return "timeout"
	case DNS:
		return "dns"
	case Refused:
		return "refused"
	case TLS:
		return "tls"
	case Server:
		return "server"
	default:
		return "other"
	}
}

// Out receives troubleshooting blocks. stdout stays reserved for data.
var Out io.Writer = os.Stderr

// Classify returns the category of a transport error.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Other
	case isTimeoutError(err):
		return Timeout
	case isDNSError(err):
		return DNS
	case isConnectionRefusedError(err):
		return Refused
	case isSSLError(err):
		return TLS
	case isServerError(err.Error()):
		return Server
	default:
		return Other
	}
}

// IsTimeout reports whether err is a timeout or deadline expiry.
func IsTimeout(err error) bool {
	return err != nil && isTimeoutError(err)
}

// FormatNetworkError prints a troubleshooting block for err and returns it
// wrapped. context describes the action, e.g. "downloading syn123".
func FormatNetworkError(err error, context, host string) error {
	if err == nil {
		return nil
	}
	displayErrorMessage(err, context, host)
	return fmt.Errorf("network error: %w", err)
}

func displayErrorMessage(err error, context, host string) {
	switch Classify(err) {
	case Timeout:
		showTimeoutError(context)
	case DNS:
		showDNSError(context, host)
	case Refused:
		showConnectionRefusedError(context)
	case TLS:
		showSSLError(context)
	case Server:
		showServerError(context, host)
	default:
		showGenericError(context, host, err.Error())
	}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, s := range []string{
		"http 500", "http 502", "http 503", "http 504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
	} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func linef(format string, a ...any) { pterm.Fprint(Out, pterm.Sprintf(format, a...)) }
func line(a ...any)                 { pterm.Fprintln(Out, a...) }

func showTimeoutError(context string) {
	linef("⏱️  Connection timeout while %s\n", context)
	line()
	line("The server took too long to respond. This could mean:")
	line("  • Slow internet connection")
	line("  • Server is under heavy load")
	line("  • Network firewall is blocking the connection")
	line()
	line("Please try again in a few moments.")
	line()
}

func showDNSError(context, host string) {
	linef("🌐 Cannot resolve server address while %s\n", context)
	line()
	linef("Unable to look up %s. Please check:\n", host)
	line("  • Your internet connection is working")
	line("  • DNS settings are correct")
	line("  • No DNS-level blocking (corporate firewall, VPN split tunnelling)")
	line()
}

func showConnectionRefusedError(context string) {
	linef("🚫 Connection refused while %s\n", context)
	line()
	line("The server is not accepting connections. This could mean:")
	line("  • The service is temporarily down")
	line("  • Firewall is blocking the connection")
	line("  • Wrong server address or port")
	line()
}

func showSSLError(context string) {
	linef("🔒 Secure connection failed while %s\n", context)
	line()
	line("Cannot establish a secure HTTPS connection. This could mean:")
	line("  • SSL/TLS certificate issue")
	line("  • Network proxy interfering with HTTPS")
	line("  • System clock is incorrect")
	line()
}

func showServerError(context, host string) {
	linef("⚠️  Server error while %s\n", context)
	line()
	linef("%s returned an internal error. This is not a problem with your setup.\n", host)
	line("Please try again in a few minutes.")
	line()
}

func showGenericError(context, host, errDetails string) {
	linef("❌ Cannot reach %s while %s\n", host, context)
	line()
	line("Please check:")
	line("  • Your internet connection")
	linef("  • Whether %s is accessible from your network\n", host)
	line("  • Firewall settings that might block HTTPS requests")
	line()

	if errDetails != "" {
		shortErr := errDetails
		if len(shortErr) > 100 {
			shortErr = shortErr[:100] + "..."
		}
		pterm.Debug.Printf("Technical details: %s\n", shortErr)
		line()
	}
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
