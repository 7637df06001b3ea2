/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package appcache maps app identifiers to display names.  App names only
// change when the user renames or reinstalls an app, so entries are kept in
// a CBOR file across runs; a populated cache avoids one Get App Attributes
// round trip per app per session.
package appcache

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}

	return filepath.Join(home, ".ancslink", "appnames.cbor"), nil
}

type Cache struct {
	path  string
	mtx   sync.Mutex
	vals  map[string]string
	dirty bool
}

func New(path string) *Cache {
	return &Cache{
		path: path,
		vals: map[string]string{},
	}
}

// Reads the cache file.  A missing file is a normal first run, not an
// error; a corrupt file is discarded with a warning.
func (c *Cache) Load() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read app name cache \"%s\"",
			c.path)
	}

	vals := map[string]string{}
	dec := codec.NewDecoderBytes(data, new(codec.CborHandle))
	if err := dec.Decode(&vals); err != nil {
		log.Warnf("discarding corrupt app name cache \"%s\": %s",
			c.path, err.Error())
		return nil
	}

	c.vals = vals
	return nil
}

func (c *Cache) Lookup(appId string) (string, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	name, ok := c.vals[appId]
	return name, ok
}

func (c *Cache) Insert(appId string, name string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.vals[appId] == name {
		return
	}

	c.vals[appId] = name
	c.dirty = true
}

func (c *Cache) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return len(c.vals)
}

// Writes the cache file if anything changed since the last persist.  The
// write goes through a temp file and a rename so a crash never leaves a
// half-written cache.
func (c *Cache) Persist() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if !c.dirty {
		return nil
	}

	var data []byte
	enc := codec.NewEncoderBytes(&data, new(codec.CborHandle))
	if err := enc.Encode(c.vals); err != nil {
		return errors.Wrap(err, "failed to encode app name cache")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create cache directory \"%s\"",
			filepath.Dir(c.path))
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write app name cache \"%s\"", tmp)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.Wrapf(err, "failed to rename app name cache into place")
	}

	c.dirty = false
	return nil
}
