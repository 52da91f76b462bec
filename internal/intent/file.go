package intent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pluginrunner/internal/catalog"
	"pluginrunner/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Lookup resolves a file key (component id or name) to a component id.
type Lookup func(key string) (catalog.ComponentID, bool)

// NameFunc gives the key under which a component is written back.
type NameFunc func(id catalog.ComponentID) string

// LoadUserFile makes store match the intents file at path. Keys are component
// ids or names, values are start|stop|unset. Components missing from the
// file lose their intent. A missing file means no intents at all.
func LoadUserFile(path string, store *Store, lookup Lookup) error {
	entries, err := readEntries(path)
	if err != nil {
		return err
	}

	desired := make(map[catalog.ComponentID]Intent, len(entries))
	var errs []error
	for key, value := range entries {
		i, err := ParseIntent(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", path, key, err))
			continue
		}
		id, ok := lookup(key)
		if !ok {
			logging.Warn("Intent", "Ignoring intent for unknown component %q in %s", key, path)
			continue
		}
		desired[id] = i
	}

	for id := range store.All() {
		if _, keep := desired[id]; !keep {
			if err := store.Set(id, Unset); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for id, i := range desired {
		if err := store.Set(id, i); err != nil {
			errs = append(errs, err)
		}
	}

	logging.Debug("Intent", "Loaded %d intents from %s", len(desired), path)
	return errors.Join(errs...)
}

// SaveUserFile writes the intents held by store to path.
func SaveUserFile(path string, store *Store, name NameFunc) error {
	entries := make(map[string]string)
	for id, i := range store.All() {
		entries[keyFor(id, name)] = i.String()
	}
	return writeEntries(path, entries)
}

// LoadSystemFile makes cfg match the system status file at path. Values are
// manual|automaticStart|disabled.
func LoadSystemFile(path string, cfg *SystemConfig, lookup Lookup) error {
	entries, err := readEntries(path)
	if err != nil {
		return err
	}

	desired := make(map[catalog.ComponentID]Status, len(entries))
	var errs []error
	for key, value := range entries {
		s, err := ParseStatus(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", path, key, err))
			continue
		}
		id, ok := lookup(key)
		if !ok {
			logging.Warn("Intent", "Ignoring status for unknown component %q in %s", key, path)
			continue
		}
		desired[id] = s
	}

	for id := range cfg.All() {
		if _, keep := desired[id]; !keep {
			cfg.SetStatus(id, StatusManual)
		}
	}
	for id, s := range desired {
		cfg.SetStatus(id, s)
	}
	return errors.Join(errs...)
}

// SaveSystemFile writes the non-manual statuses of cfg to path.
func SaveSystemFile(path string, cfg *SystemConfig, name NameFunc) error {
	entries := make(map[string]string)
	for id, s := range cfg.All() {
		entries[keyFor(id, name)] = s.String()
	}
	return writeEntries(path, entries)
}

func keyFor(id catalog.ComponentID, name NameFunc) string {
	if name != nil {
		if n := name(id); n != "" {
			return n
		}
	}
	return id.String()
}

func readEntries(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Intent", "No file at %s, using no entries", path)
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	entries := make(map[string]string)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entries, nil
}

func writeEntries(path string, entries map[string]string) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
