// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package credentials

import (
	"encoding/json"
	"fmt"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// AutoDatabase asks the gateway to discover the newest htan_* database.
const AutoDatabase = "auto"

var requiredKeys = []string{"host", "port", "user", "password"}

// Record holds portal ClickHouse connection details.
// A Record is never mutated after it is parsed.
type Record struct {
	Host            string `json:"host"`
	Port            string `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	DefaultDatabase string `json:"default_database,omitempty"`
}

// Parse decodes a JSON credential object. The port may be a JSON string or
// number. Missing required keys are an error.
func Parse(data []byte) (Record, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Record{}, fmt.Errorf("empty credential record")
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), kjson.Parser()); err != nil {
		return Record{}, fmt.Errorf("parse credential record: %w", err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if !k.Exists(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Record{}, fmt.Errorf("credential record missing keys: %s", strings.Join(missing, ", "))
	}

	return Record{
		Host:            k.String("host"),
		Port:            k.String("port"),
		User:            k.String("user"),
		Password:        k.String("password"),
		DefaultDatabase: k.String("default_database"),
	}, nil
}

// URL returns the ClickHouse HTTP endpoint.
func (r Record) URL() string {
	return fmt.Sprintf("https://%s:%s/", r.Host, r.Port)
}

// Database returns the configured default database, or "" when it is
// unset or "auto".
func (r Record) Database() string {
	if r.DefaultDatabase == "" || r.DefaultDatabase == AutoDatabase {
		return ""
	}
	return r.DefaultDatabase
}

// JSON serializes the record for storage.
func (r Record) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// String hides the password.
func (r Record) String() string {
	return fmt.Sprintf("%s@%s:%s", r.User, r.Host, r.Port)
}
