// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package configutil loads YAML configuration files with an "extends"
// chain (a file may declare a base file whose keys it overlays) and
// validates the result with struct tags.
package configutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ErrCycleRef is returned when an "extends" chain refers back to a file
// already in the chain.
var ErrCycleRef = errors.New("cyclic reference in configuration extends detected")

// ValidationError wraps the field-level errors produced by
// gopkg.in/validator.v2.
type ValidationError struct {
	errs validator.ErrorMap
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", map[string]validator.ErrorArray(v.errs))
}

// ErrForField returns the validation errors for a struct field name, or
// nil if that field was valid.
func (v ValidationError) ErrForField(field string) validator.ErrorArray {
	return v.errs[field]
}

// Load reads filename, follows its "extends" chain (base file first),
// merges every file's keys, unmarshals the result into cfg, and
// validates it.
func Load(filename string, cfg interface{}) error {
	filenames, err := resolveExtends(filename, readExtends)
	if err != nil {
		return err
	}
	return loadFiles(cfg, filenames)
}

func readExtends(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	var e struct {
		Extends string `yaml:"extends"`
	}
	if err := yaml.Unmarshal(data, &e); err != nil {
		return "", err
	}
	return e.Extends, nil
}

// resolveExtends walks the extends chain starting at fpath, returning
// filenames ordered from the most distant base to fpath itself. lookup
// returns the raw (possibly relative) extends target declared by a
// file, or "" if it declares none.
func resolveExtends(fpath string, lookup func(string) (string, error)) ([]string, error) {
	var chain []string
	visited := make(map[string]bool)
	cur := fpath
	for {
		if visited[cur] {
			return nil, ErrCycleRef
		}
		visited[cur] = true
		chain = append(chain, cur)

		target, err := lookup(cur)
		if err != nil {
			return nil, err
		}
		if target == "" {
			break
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(cur), target)
		}
		cur = target
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// loadFiles merges filenames in order (later files override earlier
// ones key-by-key, recursively for nested maps), unmarshals the result
// into cfg, and validates it once against the merged result.
func loadFiles(cfg interface{}, filenames []string) error {
	merged := map[interface{}]interface{}{}
	for _, fn := range filenames {
		data, err := os.ReadFile(fn)
		if err != nil {
			return err
		}
		var m map[interface{}]interface{}
		if err := yaml.Unmarshal(data, &m); err != nil {
			return err
		}
		mergeMaps(merged, m)
	}
	delete(merged, "extends")

	out, err := yaml.Marshal(merged)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(out, cfg); err != nil {
		return err
	}

	if err := validator.Validate(cfg); err != nil {
		if errs, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errs: errs}
		}
		return err
	}
	return nil
}

func mergeMaps(dst, src map[interface{}]interface{}) {
	for k, v := range src {
		if vm, ok := v.(map[interface{}]interface{}); ok {
			dm, ok := dst[k].(map[interface{}]interface{})
			if !ok {
				dm = map[interface{}]interface{}{}
			}
			mergeMaps(dm, vm)
			dst[k] = dm
			continue
		}
		dst[k] = v
	}
}
