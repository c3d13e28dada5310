// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package remote talks to the hosted relational store. Source is the
// narrow interface the caching layers depend on; RESTClient implements it
// over the store's PostgREST API and MemorySource implements it in memory
// for tests and local development.
package remote

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// Row is one record as returned by the store, keyed by column name.
type Row map[string]any

// Source reads and writes rows in the hosted store.
type Source interface {
	Query(ctx context.Context, table string, filter Filter) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, filter Filter, patch Row) ([]Row, error)
	Delete(ctx context.Context, table string, filter Filter) (int, error)
}

// Decode converts rows into typed records through their JSON form, so
// struct json tags name the columns.
func Decode[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode row %d into %T: %w", i, v, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// QueryAs runs a query and decodes the result.
func QueryAs[T any](ctx context.Context, src Source, table string, filter Filter) ([]T, error) {
	rows, err := src.Query(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	return Decode[T](rows)
}

// Encode converts a typed record into a Row.
func Encode(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return row, nil
}
