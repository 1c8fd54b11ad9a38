package syncengine

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/wolfpack-dev/wolfpack/stateindex"
)

const packageExt = ".xpi"

// InstallPendingExtensions writes every package that has a row in both
// extensions and extension_packages but no file yet in the profile's
// extension directory (§4.8, "install-pending-extensions"). Packages travel
// zstd-compressed and base64-encoded inside the event log (§9); this
// reverses both steps before writing.
func (e *Engine) InstallPendingExtensions() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pkgs, err := e.idx.InstallableExtensions()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.cfg.ExtensionsDir, 0o755); err != nil {
		return nil, err
	}

	var installed []string
	for _, pkg := range pkgs {
		path := filepath.Join(e.cfg.ExtensionsDir, pkg.ExtensionID+packageExt)
		if _, err := os.Stat(path); err == nil {
			continue // already installed
		} else if !os.IsNotExist(err) {
			return installed, err
		}

		data, err := decodePackage(pkg.PackageBlob)
		if err != nil {
			return installed, fmt.Errorf("syncengine: decoding package %s: %w", pkg.ExtensionID, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return installed, err
		}
		installed = append(installed, pkg.ExtensionID)
	}
	return installed, nil
}

// RemoveUninstalledExtensions deletes every package file under the
// profile's extension directory whose id still has an extension_packages
// row but no matching extensions row, and removes that orphaned row
// (§4.8, "remove-uninstalled-extensions").
func (e *Engine) RemoveUninstalledExtensions() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	orphaned, err := e.idx.OrphanedPackageIDs()
	if err != nil {
		return nil, err
	}
	if len(orphaned) == 0 {
		return nil, nil
	}

	entries, err := os.ReadDir(e.cfg.ExtensionsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), packageExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), packageExt)
		if _, ok := orphaned[id]; !ok {
			continue
		}
		if err := os.Remove(filepath.Join(e.cfg.ExtensionsDir, entry.Name())); err != nil {
			return removed, err
		}
		if err := e.idx.WithTx(func(tx *stateindex.Tx) error { return tx.DeleteExtensionPackage(id) }); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}

// EncodePackage compresses raw XPI bytes with zstd and base64-encodes the
// result, the inverse of decodePackage — used by the (external) extension
// installer when it emits an ExtensionInstalled event.
func EncodePackage(raw []byte) (string, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return "", err
	}
	compressed := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(compressed), nil
}

func decodePackage(blobB64 string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(blobB64)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
