package repository

import "context"

// WatchDocumentAs maps a document stream onto typed snapshots.
func WatchDocumentAs[T any](ctx context.Context, store DocumentStore, path string, mapFn func(Document) T) (<-chan Snapshot[T], error) {
	events, err := store.WatchDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot[T])
	go func() {
		defer close(out)
		for ev := range events {
			snap := Snapshot[T]{Err: ev.Err}
			if ev.Err == nil {
				snap.Value = mapFn(ev.Doc)
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// WatchCollectionAs maps every document of each collection snapshot.
func WatchCollectionAs[T any](ctx context.Context, store DocumentStore, path string, mapFn func(Document) T) (<-chan Snapshot[[]T], error) {
	events, err := store.WatchCollection(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot[[]T])
	go func() {
		defer close(out)
		for ev := range events {
			snap := Snapshot[[]T]{Err: ev.Err}
			if ev.Err == nil {
				snap.Value = make([]T, 0, len(ev.Docs))
				for _, doc := range ev.Docs {
					snap.Value = append(snap.Value, mapFn(doc))
				}
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
