package gateway

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrHostKeyRejected indicates the remote host key was not accepted.
var ErrHostKeyRejected = errors.New("host key rejected")

// HostKeyPrompt decides whether to trust an unknown host key.
type HostKeyPrompt func(hostname string, remote net.Addr, key ssh.PublicKey) (bool, error)

// buildKnownHostsCallback returns a host key callback backed by the
// given known_hosts files. Unknown hosts go through prompt and, when
// accepted, are appended to writePath. A key mismatch for a known host
// is always rejected. A nil prompt rejects every unknown host.
func buildKnownHostsCallback(paths []string, writePath string, prompt HostKeyPrompt, logger zerolog.Logger) (ssh.HostKeyCallback, error) {
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}

	var known ssh.HostKeyCallback
	if len(existing) > 0 {
		callback, err := knownhosts.New(existing...)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		known = callback
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if known != nil {
			err := known(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if errors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				logger.Error().Str("host", hostname).Msg("host key mismatch")
				return fmt.Errorf("host key mismatch for %s: %w", hostname, ErrHostKeyRejected)
			}
		}

		if prompt == nil {
			return fmt.Errorf("unknown host %s: %w", hostname, ErrHostKeyRejected)
		}

		accepted, err := prompt(hostname, remote, key)
		if err != nil {
			return err
		}
		if !accepted {
			return fmt.Errorf("unknown host %s: %w", hostname, ErrHostKeyRejected)
		}

		if writePath != "" {
			if err := appendKnownHost(writePath, hostname, key); err != nil {
				logger.Warn().Err(err).Str("path", writePath).Msg("failed to record host key")
			} else {
				logger.Info().Str("host", hostname).Str("path", writePath).Msg("host key recorded")
			}
		}
		return nil
	}, nil
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
