package locator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/trunov/imagecache/internal/entities"
)

type Lister interface {
	List(ctx context.Context, prefix string) ([]entities.StoredObject, error)
}

// Locator resolves an identifier to the stored object key. Stored keys carry
// the upload's file extension, so the identifier is only usable as a prefix.
type Locator struct {
	store Lister
}

func New(store Lister) *Locator {
	return &Locator{store: store}
}

// Locate returns the first key listed under id. Listing errors are returned
// as they are; no retries happen here.
func (l *Locator) Locate(ctx context.Context, id entities.ImageIdentifier) (string, error) {
	objects, err := l.store.List(ctx, id)
	if err != nil {
		return "", err
	}

	if len(objects) == 0 {
		return "", fmt.Errorf("%w: no object with prefix %q", entities.ErrNotFound, id)
	}
	if len(objects) > 1 {
		log.Warn().Str("identifier", id).Int("matches", len(objects)).Str("key", objects[0].Key).
			Msg("several objects share the identifier prefix, using the first listed")
	}

	log.Debug().Str("identifier", id).Str("key", objects[0].Key).Msg("located original")

	return objects[0].Key, nil
}
