// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package cache

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/goccy/go-json"
)

// KeySeparator splits the resource name from the encoded filters.
const KeySeparator = "|"

// Key builds the canonical cache key for a query on resource with filters.
//
// Filters are encoded as a JSON array of [name, value] pairs sorted by name,
// so insertion order never matters. Slice values (inclusion lists) are
// sorted by their JSON encoding, so ["b","a"] and ["a","b"] produce the
// same key. Distinct filter sets always produce distinct keys because the
// JSON rendering is injective.
//
//	Key("projects", map[string]any{"end_client_id": []string{"c2", "c1"}})
//	// projects|[["end_client_id",["c1","c2"]]]
func Key(resource string, filters map[string]any) string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString(resource)
	buf.WriteString(KeySeparator)
	buf.WriteByte('[')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		buf.Write(mustJSON(name))
		buf.WriteByte(',')
		buf.Write(canonicalValue(filters[name]))
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return buf.String()
}

// ResourcePrefix returns the prefix shared by every key of resource.
func ResourcePrefix(resource string) string {
	return resource + KeySeparator
}

func canonicalValue(v any) []byte {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return []byte("null")
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return mustJSON(v)
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return mustJSON(v) // []byte is a scalar, not an inclusion list
	}

	elems := make([][]byte, rv.Len())
	for i := range elems {
		elems[i] = canonicalValue(rv.Index(i).Interface())
	}
	sort.Slice(elems, func(i, j int) bool { return bytes.Compare(elems[i], elems[j]) < 0 })
	return append(append([]byte{'['}, bytes.Join(elems, []byte{','})...), ']')
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Unencodable values still need a stable, type-qualified key.
		return mustJSON(fmt.Sprintf("%T:%v", v, v))
	}
	return data
}
