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

// Package config reads and writes the ancslink TOML config file.  Values
// are read loosely: durations accept either a string ("5s") or a bare
// number of seconds, so hand-edited files keep working.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

type Device struct {
	Id   string `toml:"id"`
	Name string `toml:"name"`
}

type Config struct {
	LogLevel   string `toml:"loglevel"`
	ListenAddr string `toml:"listen_addr"`
	DbPath     string `toml:"db_path"`
	CachePath  string `toml:"cache_path"`
	HistoryCap int    `toml:"history_cap"`

	Device Device `toml:"device"`

	ConnectTimeout    time.Duration `toml:"-"`
	FetchTimeout      time.Duration `toml:"-"`
	BackoffBase       time.Duration `toml:"-"`
	BackoffCap        time.Duration `toml:"-"`
	ReconnectMaxTries int           `toml:"reconnect_max_tries"`

	// Wire forms of the duration fields.
	ConnectTimeoutRaw interface{} `toml:"connect_timeout,omitempty"`
	FetchTimeoutRaw   interface{} `toml:"fetch_timeout,omitempty"`
	BackoffBaseRaw    interface{} `toml:"backoff_base,omitempty"`
	BackoffCapRaw     interface{} `toml:"backoff_cap,omitempty"`
}

func Default() Config {
	return Config{
		LogLevel:          "info",
		ListenAddr:        "127.0.0.1:8591",
		HistoryCap:        1000,
		ConnectTimeout:    10 * time.Second,
		FetchTimeout:      5 * time.Second,
		BackoffBase:       time.Second,
		BackoffCap:        30 * time.Second,
		ReconnectMaxTries: 8,
	}
}

func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}

	return filepath.Join(home, ".ancslink", "ancslink.toml"), nil
}

// Parses a duration that may be a TOML string ("1.5s"), an integer, or a
// float; bare numbers are seconds.
func castDuration(v interface{}, dflt time.Duration) time.Duration {
	if v == nil {
		return dflt
	}

	if s, err := cast.ToStringE(v); err == nil {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}

	if secs, err := cast.ToFloat64E(v); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}

	return dflt
}

// Reads the config file at path.  A missing file yields the defaults.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrapf(err, "failed to read config file \"%s\"", path)
	}

	if err := toml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "failed to parse config file \"%s\"", path)
	}

	c.ConnectTimeout = castDuration(c.ConnectTimeoutRaw, c.ConnectTimeout)
	c.FetchTimeout = castDuration(c.FetchTimeoutRaw, c.FetchTimeout)
	c.BackoffBase = castDuration(c.BackoffBaseRaw, c.BackoffBase)
	c.BackoffCap = castDuration(c.BackoffCapRaw, c.BackoffCap)

	return c, nil
}

// Writes the config file, creating the directory if needed.  Used to
// remember the last connected device for the next run.
func Save(path string, c Config) error {
	c.ConnectTimeoutRaw = c.ConnectTimeout.String()
	c.FetchTimeoutRaw = c.FetchTimeout.String()
	c.BackoffBaseRaw = c.BackoffBase.String()
	c.BackoffCapRaw = c.BackoffCap.String()

	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create config directory \"%s\"",
			filepath.Dir(path))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config file \"%s\"", path)
	}

	return nil
}
