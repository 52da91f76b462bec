package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/config"
	"pluginrunner/pkg/logging"
)

// Options tunes manifest discovery.
type Options struct {
	// MinVersion rejects manifests with a lower version. Empty disables the
	// check.
	MinVersion string
}

type parsed struct {
	path       string
	descriptor catalog.ComponentDescriptor
	err        *config.ConfigurationError
}

// LoadDir reads every *.yaml and *.yml manifest in dir into a catalog.
// Files are parsed concurrently; the catalog keeps the lexical order of the
// file names so discovery order is stable.
//
// Invalid manifests are skipped and reported in a
// config.ConfigurationErrorCollection. The returned catalog is always usable
// and holds every valid manifest, even when an error is returned. A missing
// directory yields an empty catalog.
func LoadDir(ctx context.Context, dir string, opts Options) (*catalog.Memory, error) {
	cat, _ := catalog.NewMemory()

	var minVersion *version.Version
	if opts.MinVersion != "" {
		v, err := version.NewVersion(opts.MinVersion)
		if err != nil {
			return cat, fmt.Errorf("invalid minimum component version %q: %w", opts.MinVersion, err)
		}
		minVersion = v
	}

	files, err := manifestFiles(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Discovery", "Manifest directory %s does not exist, no components discovered", dir)
			return cat, nil
		}
		return cat, fmt.Errorf("failed to list manifests in %s: %w", dir, err)
	}

	results := make([]parsed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = parseManifest(path, minVersion)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cat, fmt.Errorf("manifest discovery interrupted: %w", err)
	}

	errs := config.NewConfigurationErrorCollection()
	for _, r := range results {
		if r.err != nil {
			errs.Add(*r.err)
			continue
		}
		if err := cat.Add(r.descriptor); err != nil {
			errs.Add(config.NewConfigurationError(r.path, filepath.Base(r.path), "validation", err.Error()))
			continue
		}
		logging.Debug("Discovery", "Discovered %s from %s", r.descriptor.DisplayName(), r.path)
	}

	logging.Info("Discovery", "Discovered %d components in %s (%d invalid manifests)", cat.Len(), dir, errs.Count())
	if errs.HasErrors() {
		return cat, errs
	}
	return cat, nil
}

func manifestFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(e.Name())); ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func parseManifest(path string, minVersion *version.Version) parsed {
	name := filepath.Base(path)
	fail := func(errorType, message string, suggestions ...string) parsed {
		e := config.NewConfigurationError(path, name, errorType, message)
		e.Suggestions = suggestions
		return parsed{path: path, err: &e}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail("io", err.Error())
	}

	var d catalog.ComponentDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return fail("parse", err.Error(), "Check the YAML syntax", "Requirement levels are Optional, OptionalTryStart, MustExist, MustExistTryStart or MustExistAndRun")
	}

	if d.ID.IsNil() {
		err := config.FormatValidationError("manifest", d.Name, config.ValidationError{Field: "id", Message: "is required"})
		return fail("validation", err.Error(), "Add an id: field holding a UUID")
	}

	if d.Version != "" {
		v, err := version.NewVersion(d.Version)
		if err != nil {
			return fail("validation", fmt.Sprintf("component %s has invalid version %q: %v", d.DisplayName(), d.Version, err))
		}
		if minVersion != nil && v.LessThan(minVersion) {
			return fail("version", fmt.Sprintf("component %s version %s is below minimum required version %s",
				d.DisplayName(), d.Version, minVersion.String()))
		}
	} else if minVersion != nil {
		return fail("version", fmt.Sprintf("component %s has no version, minimum required version is %s",
			d.DisplayName(), minVersion.String()))
	}

	return parsed{path: path, descriptor: d}
}
