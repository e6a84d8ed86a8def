package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/kgraph/pkg/errors"
	"github.com/theapemachine/kgraph/pkg/graph"
)

const snapshotBucket = "kgraph-snapshots"

/*
Snapshots stores full-graph export documents in an S3 bucket, one object
per named snapshot plus a timestamped copy for point-in-time restores.
*/
type Snapshots struct {
	conn *Conn
}

/*
NewSnapshots creates a snapshot store over the given connection, making
sure the backing bucket exists.
*/
func NewSnapshots(ctx context.Context, conn *Conn) (*Snapshots, error) {
	if err := conn.EnsureBucket(ctx, snapshotBucket); err != nil {
		return nil, errors.ErrBackup.WithMessagef(
			"failed to ensure snapshot bucket: %v", err,
		)
	}
	return &Snapshots{conn: conn}, nil
}

/*
Save uploads the export document under the snapshot name and a
timestamped archive key.
*/
func (store *Snapshots) Save(
	ctx context.Context, name string, doc *graph.ExportDoc,
) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.ErrBackup.WithMessagef("failed to marshal snapshot: %v", err)
	}

	keys := []string{
		name + ".json",
		fmt.Sprintf("%s/%s.json", name, time.Now().UTC().Format("20060102T150405Z")),
	}
	for _, key := range keys {
		if err := store.conn.Put(
			ctx, snapshotBucket, key, bytes.NewReader(data), int64(len(data)),
		); err != nil {
			log.Error("failed to store snapshot", "key", key, "error", err)
			return errors.ErrBackup.WithMessagef("failed to store snapshot: %v", err)
		}
	}

	log.Info("snapshot saved",
		"name", name,
		"entities", len(doc.Entities),
		"relations", len(doc.Relations),
	)
	return nil
}

/*
Load fetches the current document for a snapshot name.
*/
func (store *Snapshots) Load(
	ctx context.Context, name string,
) (*graph.ExportDoc, error) {
	data, err := store.conn.Get(ctx, snapshotBucket, name+".json")
	if err != nil {
		log.Error("failed to get snapshot", "name", name, "error", err)
		return nil, errors.ErrBackup.WithMessagef("failed to get snapshot: %v", err)
	}

	var doc graph.ExportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.ErrBackup.WithMessagef(
			"failed to unmarshal snapshot: %v", err,
		)
	}

	return &doc, nil
}

/*
History lists the archived keys for a snapshot name, oldest first.
*/
func (store *Snapshots) History(
	ctx context.Context, name string,
) ([]string, error) {
	keys, err := store.conn.List(ctx, snapshotBucket, name+"/")
	if err != nil {
		return nil, errors.ErrBackup.WithMessagef(
			"failed to list snapshot history: %v", err,
		)
	}
	return keys, nil
}
