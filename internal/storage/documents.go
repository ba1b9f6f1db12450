package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"
)

// LastModifiedKey holds the industry -> last write time index.
const LastModifiedKey = "last-modified-dates.json"

// DocumentKey returns the key of an industry section, e.g.
// DocumentKey("semiconductors", "tariff-updates", "json").
func DocumentKey(industry, section, ext string) string {
	return path.Join(industry, section+"."+strings.TrimPrefix(ext, "."))
}

// GetJSON decodes the document at key into out. found is false when the
// document does not exist.
func GetJSON(ctx context.Context, s Store, key string, out any) (found bool, err error) {
	doc, err := s.GetDocument(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if doc == nil {
		return false, nil
	}
	if err := json.Unmarshal(doc.Body, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and overwrites the document at key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return put(ctx, s, key, ContentTypeJSON, body)
}

func PutMarkdown(ctx context.Context, s Store, key, markdown string) error {
	return put(ctx, s, key, ContentTypeMarkdown, []byte(markdown))
}

func put(ctx context.Context, s Store, key, contentType string, body []byte) error {
	err := s.PutDocument(ctx, Document{
		Key:         key,
		ContentType: contentType,
		Body:        body,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// indexMu serializes read-modify-write of the last-modified index within
// this process. Other processes can still race it.
var indexMu sync.Mutex

// TouchLastModified records t as the last write time of industry.
func TouchLastModified(ctx context.Context, s Store, industry string, t time.Time) error {
	indexMu.Lock()
	defer indexMu.Unlock()

	idx, err := LastModified(ctx, s)
	if err != nil {
		return err
	}
	idx[industry] = t.UTC()
	return PutJSON(ctx, s, LastModifiedKey, idx)
}

// LastModified returns the whole index; empty when it does not exist yet.
func LastModified(ctx context.Context, s Store) (map[string]time.Time, error) {
	idx := map[string]time.Time{}
	if _, err := GetJSON(ctx, s, LastModifiedKey, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}
