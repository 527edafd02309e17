// Package migrate moves device-only data from before accounts existed into
// a user's account.
//
// Older builds stored each collection under a bare local key ("meals",
// "weights", ...) with no user and no schema version. Migrate copies every
// such collection into the user's account. The remote store stays
// authoritative: only legacy records whose id it does not hold yet are sent,
// one batch per collection. The user's versioned local key receives the
// union, where existing local records win over legacy ones and remote
// documents win over both.
// An installation-wide flag makes the transfer one-shot: once it is set,
// Migrate does nothing. ForceMigration is the only way to run it again.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/mealsync/internal/codec"
	"github.com/steveyegge/mealsync/internal/merge"
	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

// legacyNamespace scopes the deterministic ids given to legacy records that
// were saved without one.
var legacyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/steveyegge/mealsync/legacy"))

// CollectionResult counts what happened to one legacy collection.
type CollectionResult struct {
	Found    int `json:"found"`
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	// AssignedIDs counts records that had no id and got a derived one.
	AssignedIDs int `json:"assigned_ids"`
	// Pushed counts legacy records sent to the remote store.
	Pushed int `json:"pushed"`
	// Superseded counts legacy records whose id the remote already held.
	// The remote document is kept.
	Superseded int `json:"superseded"`
	// Merged is the size of the user's local collection afterwards.
	Merged int `json:"merged"`
}

// Result is returned by Migrate.
type Result struct {
	AlreadyCompleted bool                                  `json:"already_completed"`
	UserID           string                                `json:"user_id"`
	Collections      map[types.Collection]CollectionResult `json:"collections,omitempty"`
	CompletedAt      time.Time                             `json:"completed_at,omitzero"`
}

// Total returns the number of records migrated across collections.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Migrated
	}
	return n
}

// Runner performs the migration.
type Runner struct {
	local  storage.LocalStore
	remote storage.RemoteStore
	log    *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New returns a Runner. A nil logger discards output.
func New(local storage.LocalStore, remote storage.RemoteStore, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{local: local, remote: remote, log: log, now: time.Now}
}

// Completed reports whether the installation has already migrated.
func (r *Runner) Completed(ctx context.Context) (bool, error) {
	v, err := r.local.GetMetadata(ctx, storage.MetaMigrationCompleted)
	if storage.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read migration flag: %w", err)
	}
	return v != "", nil
}

// Migrate transfers legacy state to userID unless that already happened.
// On error the flag stays unset and the call can be repeated; batches and
// local writes are whole-value replacements, so a repeat does not duplicate
// records.
func (r *Runner) Migrate(ctx context.Context, userID string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.migrate(ctx, userID)
}

// ForceMigration clears the completed flag and migrates again.
func (r *Runner) ForceMigration(ctx context.Context, userID string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := storage.ValidateUserID(userID); err != nil {
		return Result{}, err
	}
	if err := r.local.DeleteMetadata(ctx, storage.MetaMigrationCompleted); err != nil {
		return Result{}, fmt.Errorf("clear migration flag: %w", err)
	}
	r.log.Warn("migration flag cleared, migrating again", "user", userID)
	return r.migrate(ctx, userID)
}

func (r *Runner) migrate(ctx context.Context, userID string) (Result, error) {
	res := Result{UserID: userID}
	if err := storage.ValidateUserID(userID); err != nil {
		return res, err
	}
	done, err := r.Completed(ctx)
	if err != nil {
		return res, err
	}
	if done {
		res.AlreadyCompleted = true
		return res, nil
	}

	res.Collections = make(map[types.Collection]CollectionResult)
	for _, c := range types.SyncedCollections {
		cr, err := r.migrateCollection(ctx, userID, c)
		if err != nil {
			return res, fmt.Errorf("migrate %s: %w", c, err)
		}
		if cr.Found > 0 {
			res.Collections[c] = cr
		}
	}

	res.CompletedAt = r.now().UTC()
	if err := r.local.SetMetadata(ctx, storage.MetaMigrationCompleted, res.CompletedAt.Format(time.RFC3339)); err != nil {
		return res, fmt.Errorf("set migration flag: %w", err)
	}
	r.log.Info("migration completed", "user", userID, "records", res.Total(), "collections", len(res.Collections))
	return res, nil
}

func (r *Runner) migrateCollection(ctx context.Context, userID string, c types.Collection) (CollectionResult, error) {
	var cr CollectionResult
	recs, err := storage.ReadSnapshot(ctx, r.local, storage.LegacyKey(c))
	if err != nil {
		return cr, err
	}
	cr.Found = len(recs)
	if cr.Found == 0 {
		return cr, nil
	}

	legacy := make(map[string]types.Entity, len(recs))
	for _, rec := range recs {
		if assignID(c, rec) {
			cr.AssignedIDs++
		}
		e, err := codec.Decode(c, rec)
		if err != nil {
			cr.Skipped++
			r.log.Debug("skipping legacy record", "collection", c, "error", err)
			continue
		}
		legacy[e.Key()] = e
	}
	cr.Migrated = len(legacy)
	if cr.Migrated == 0 {
		return cr, nil
	}

	remoteDocs, err := r.remote.ListCollection(ctx, userID, c)
	if err != nil {
		return cr, fmt.Errorf("list remote: %w", err)
	}
	held := make(map[string]bool, len(remoteDocs))
	remoteRecs := make([]storage.Record, 0, len(remoteDocs))
	for _, doc := range remoteDocs {
		held[doc.ID] = true
		rec, err := storage.RecordFromDocument(doc)
		if err != nil {
			r.log.Debug("unreadable remote document", "collection", c, "id", doc.ID, "error", err)
			continue
		}
		remoteRecs = append(remoteRecs, rec)
	}

	var docs []storage.Document
	for _, e := range merge.Values(legacy) {
		if held[e.Key()] {
			cr.Superseded++
			continue
		}
		rec, err := codec.Encode(e)
		if err != nil {
			return cr, err
		}
		doc, err := storage.DocumentFromRecord(e.Key(), rec)
		if err != nil {
			return cr, err
		}
		docs = append(docs, doc)
	}
	if len(docs) > 0 {
		if err := r.remote.PutBatch(ctx, userID, c, docs); err != nil {
			return cr, err
		}
	}
	cr.Pushed = len(docs)

	existingRecs, err := storage.ReadSnapshot(ctx, r.local, storage.LocalKey(c, userID))
	if err != nil {
		return cr, err
	}
	existing := merge.Index(codec.DecodeAll(c, existingRecs).Entities)
	remote := merge.Index(codec.DecodeAll(c, remoteRecs).Entities)
	merged := merge.Merge(merge.Merge(legacy, existing), remote)
	out, err := codec.EncodeAll(merge.Ordered(c, merged))
	if err != nil {
		return cr, err
	}
	value, err := storage.EncodeSnapshot(out)
	if err != nil {
		return cr, err
	}
	if err := r.local.Write(ctx, storage.LocalKey(c, userID), value); err != nil {
		return cr, err
	}
	cr.Merged = len(merged)
	return cr, nil
}

// assignID gives an id-keyed legacy record without one a deterministic id
// derived from its content, so repeated migrations produce the same key.
func assignID(c types.Collection, rec storage.Record) bool {
	if c != types.CollectionMeals && c != types.CollectionCustomFoods {
		return false
	}
	if id, ok := rec["id"]; ok && id != nil && id != "" {
		return false
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return false
	}
	rec["id"] = uuid.NewSHA1(legacyNamespace, append([]byte(string(c)+":"), body...)).String()
	return true
}
