package storage

import (
	"fmt"
	"strings"

	"github.com/steveyegge/mealsync/internal/types"
)

// SchemaVersion is the current on-device record format. It is part of every
// local key so a format change never reads stale blobs as current ones.
const SchemaVersion = 2

// Metadata keys.
const (
	// MetaMigrationCompleted is the per-installation one-shot migration flag.
	MetaMigrationCompleted = "migration.completed"

	metaLastSyncPrefix = "last_sync."
)

// LocalKey returns the local store key {collection}_{userId}_v{schemaVersion}.
func LocalKey(collection types.Collection, userID string) string {
	return fmt.Sprintf("%s_%s_v%d", collection, userID, SchemaVersion)
}

// LegacyKey returns the pre-account, device-only key of a collection.
func LegacyKey(collection types.Collection) string {
	return string(collection)
}

// LastSyncKey returns the metadata key holding a user's last-sync timestamp.
func LastSyncKey(userID string) string {
	return metaLastSyncPrefix + userID
}

// RemotePath returns users/{userId}/{collection}/{entityId}. With an empty
// id it returns the collection prefix including the trailing slash.
func RemotePath(userID string, collection types.Collection, id string) string {
	return "users/" + userID + "/" + string(collection) + "/" + id
}

// ParseRemotePath splits a document path into its parts.
func ParseRemotePath(path string) (userID string, collection types.Collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[0] != "users" || parts[1] == "" || parts[3] == "" {
		return "", "", "", fmt.Errorf("invalid document path %q (expected users/{user}/{collection}/{id})", path)
	}
	c := types.Collection(parts[2])
	if !c.IsValid() {
		return "", "", "", fmt.Errorf("invalid document path %q: unknown collection %q", path, parts[2])
	}
	return parts[1], c, parts[3], nil
}

// ValidateUserID rejects ids that would break key or path construction.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.ContainsAny(userID, "/_ \t\n") {
		return fmt.Errorf("invalid user id %q: must not contain '/', '_' or whitespace", userID)
	}
	return nil
}
