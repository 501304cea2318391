package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DirSource reads the users, farms and requests collections from files named
// after them in Dir. Each collection may be stored as .json (comments and
// trailing commas allowed), .yaml or .yml; the first one found wins.
type DirSource struct {
	Dir string
}

var extensions = []string{".json", ".yaml", ".yml"}

func (s DirSource) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := readCollection(ctx, s.Dir, CollectionUsers, &snap.Users); err != nil {
		return nil, err
	}
	if err := readCollection(ctx, s.Dir, CollectionFarms, &snap.Farms); err != nil {
		return nil, err
	}
	if err := readCollection(ctx, s.Dir, CollectionRequests, &snap.Requests); err != nil {
		return nil, err
	}

	if err := validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func readCollection[T any](ctx context.Context, dir, name string, out *[]T) error {
	if err := ctx.Err(); err != nil {
		return loadErr(name, err)
	}

	data, ext, err := readResource(dir, name)
	if err != nil {
		return loadErr(name, err)
	}

	if ext != ".json" {
		data, err = yamlToJSON(data)
		if err != nil {
			return loadErr(name, fmt.Errorf("parse yaml: %w", err))
		}
	} else {
		data = jsonc.ToJSON(data)
	}

	records, err := decodeRecords[T](data)
	if err != nil {
		return loadErr(name, err)
	}
	*out = records
	return nil
}

func readResource(dir, name string) ([]byte, string, error) {
	for _, ext := range extensions {
		path := filepath.Join(dir, name+ext)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", path, err)
		}
		data, err := io.ReadAll(f)
		closeErr := f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", path, err)
		}
		if closeErr != nil {
			return nil, "", fmt.Errorf("close %s: %w", path, closeErr)
		}
		return data, ext, nil
	}
	return nil, "", fmt.Errorf("no %s resource in %s", name, dir)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func decodeRecords[T any](data []byte) ([]T, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var records []T
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode: trailing data after records")
	}
	return records, nil
}

// WriteJSON stores a snapshot as three JSON resources in dir, the layout DirSource reads.
func WriteJSON(dir string, snap *Snapshot) error {
	collections := []struct {
		name    string
		records any
	}{
		{CollectionUsers, nonNil(snap.Users)},
		{CollectionFarms, nonNil(snap.Farms)},
		{CollectionRequests, nonNil(snap.Requests)},
	}
	for _, c := range collections {
		data, err := json.MarshalIndent(c.records, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, c.name+".json"), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", c.name, err)
		}
	}
	return nil
}

func nonNil[T any](records []T) []T {
	if records == nil {
		return []T{}
	}
	return records
}

var _ Source = DirSource{}