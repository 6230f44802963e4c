package main

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pklrun/pkl/internal/cache"
	"github.com/pklrun/pkl/internal/config"
	"github.com/pklrun/pkl/internal/loader"
	"github.com/pklrun/pkl/internal/project"
	"github.com/pklrun/pkl/internal/resolve"
	"github.com/pklrun/pkl/internal/resolve/scheme"
)

// buildLoader wires every built-in module-key factory into a fresh
// resolve.Registry/SecurityManager pair and returns the Loader that
// drives a single evaluation run, per spec §4.1/§6.1. Every `pkl`
// subcommand that evaluates a module shares this construction.
//
// Two sqlite-backed ledgers live alongside the in-memory ModuleCache for
// the lifetime of the run: a gorm-backed cache.Store recording every
// package archive's verified checksum (consulted by PackageFactory
// ahead of a re-fetch, and updated on every freshly-verified download),
// and a raw database/sql cache.AuditLog recording each module's
// resolution-state transitions. Both outlive a single process, unlike
// ModuleCache itself.
func buildLoader(cfg *config.Settings, proj *project.Resolver) (*loader.Loader, error) {
	if err := os.MkdirAll(cfg.ModuleCacheDir, 0o755); err != nil {
		return nil, err
	}

	store, err := cache.OpenStore(filepath.Join(cfg.ModuleCacheDir, "packages.db"), false)
	if err != nil {
		return nil, err
	}
	audit, err := cache.OpenAuditLog(filepath.Join(cfg.ModuleCacheDir, "resolution.db"))
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := resolve.NewRegistry()
	pkgFactory := scheme.NewPackageFactory(cfg.ModuleCacheDir, http.DefaultClient)
	pkgFactory.Store = store
	if proj != nil {
		pkgFactory.ChecksumOf = proj.ChecksumOf
	}

	factories := []resolve.Factory{
		scheme.NewFileFactory(),
		scheme.NewModulepathFactory(nil),
		scheme.NewReplFactory(),
		scheme.NewPklStdlibFactory(),
		scheme.NewHTTPFactory("https", nil),
		scheme.NewHTTPFactory("http", nil),
		pkgFactory,
	}
	if proj != nil {
		factories = append(factories, scheme.NewProjectPackageFactory(pkgFactory, proj.RewriteURI))
	}
	for _, f := range factories {
		if err := registry.RegisterFactory(f); err != nil {
			return nil, err
		}
	}

	trustOf := func(s string) resolve.Trust {
		if s == "pkl" {
			return resolve.TrustStdlib
		}
		return resolve.TrustProject
	}
	security, err := resolve.NewSecurityManager(cfg.AllowedModules, trustOf, cfg.RootDir)
	if err != nil {
		return nil, err
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	ld := loader.New(registry, security, deadline)
	ld.RegisterResourceReader(loader.EnvResourceReader{})
	ld.RegisterResourceReader(loader.PropResourceReader{Properties: cfg.ExternalProperties})
	ld.TrustOf = trustOf
	ld.Store = store
	ld.Audit = audit
	return ld, nil
}

// moduleURIFromArg turns a bare file path argument into an absolute
// file: URI, leaving anything that already names a scheme untouched.
func moduleURIFromArg(path string) (string, error) {
	if _, err := resolve.SchemeOf(path); err == nil {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}
