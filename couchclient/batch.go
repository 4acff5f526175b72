// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// BatchResult collects the results of running one operation over many
// databases or documents.
type BatchResult struct {
	// Listing is the result of the call that produced the list of
	// items.  If it failed, Rows is empty.
	Listing Result

	// Processed counts the items the operation was run on.
	Processed int

	// Rows holds one result per item, keyed by name.
	Rows map[string]Result
}

func newBatchResult() BatchResult {
	return BatchResult{Rows: make(map[string]Result)}
}

func (b *BatchResult) add(name string, r Result) {
	b.Processed++
	b.Rows[name] = r
}

// Names returns the item names in sorted order.
func (b BatchResult) Names() []string {
	names := make([]string, 0, len(b.Rows))
	for name := range b.Rows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns nil if the listing and every row succeeded without a
// CouchDB error body, or else a multierror naming each failed item.
func (b BatchResult) Err() error {
	var errs *multierror.Error
	if err := resultError(b.Listing); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("listing: %w", err))
	}
	for _, name := range b.Names() {
		if err := resultError(b.Rows[name]); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs.ErrorOrNil()
}

// Value renders the batch as {"processed": n, "rows": {...}}, or as
// the listing's own value if listing failed.
func (b BatchResult) Value() interface{} {
	if resultError(b.Listing) != nil {
		return b.Listing.Value()
	}
	rows := make(map[string]interface{}, len(b.Rows))
	for name, r := range b.Rows {
		rows[name] = r.Value()
	}
	return map[string]interface{}{
		"processed": b.Processed,
		"rows":      rows,
	}
}

// resultError converts both local failures and CouchDB error bodies
// into errors.
func resultError(r Result) error {
	if err := r.Err(); err != nil {
		return err
	}
	if remote := r.RemoteError(); remote != nil {
		return fmt.Errorf("couchdb: %s", remote.String())
	}
	return nil
}

// forEachDB runs op on every database the server lists.
func (s *Server) forEachDB(verb string, op func(*Database) Result) BatchResult {
	batch := newBatchResult()
	batch.Listing = s.AllDBs()
	if resultError(batch.Listing) != nil {
		s.logger.WithField("err", resultError(batch.Listing)).Error("Could not list databases")
		return batch
	}
	if batch.Listing.List() == nil {
		batch.Listing = Failure(&Error{
			Kind:       KindDecode,
			StatusCode: batch.Listing.StatusCode,
			Message:    "database list is not an array",
		})
		return batch
	}
	for _, name := range batch.Listing.GetStrings("") {
		s.logger.WithField("db", name).Info(verb)
		batch.add(name, op(s.Database(name)))
	}
	return batch
}

// SyncAllShards forces shard synchronization on every database.
func (s *Server) SyncAllShards() BatchResult {
	return s.forEachDB("Syncing shards", (*Database).SyncShards)
}

// CompactAll starts compaction on every database.
func (s *Server) CompactAll() BatchResult {
	return s.forEachDB("Compacting", (*Database).Compact)
}
