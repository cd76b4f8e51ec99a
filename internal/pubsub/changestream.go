package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const reopenDelay = 10 * time.Second

// ChangeStream watches the MongoDB materials collection. Change streams need a
// replica set or sharded cluster; Start fails on a standalone server.
type ChangeStream struct {
	subscribers

	coll   *mongo.Collection
	ctx    context.Context
	cancel context.CancelFunc
}

func NewChangeStream(db *mongo.Database) *ChangeStream {
	ctx, cancel := context.WithCancel(context.Background())

	return &ChangeStream{
		coll:   db.Collection("materials"),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (cs *ChangeStream) Start() error {
	stream, err := cs.watch()
	if err != nil {
		return err
	}

	slog.Info("Change stream started watching material changes")

	go cs.run(stream)

	return nil
}

func (cs *ChangeStream) Stop() {
	cs.cancel()
	slog.Info("Change stream stopped")
}

func (cs *ChangeStream) watch() (*mongo.ChangeStream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := cs.coll.Watch(cs.ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s collection: %w", cs.coll.Name(), err)
	}
	return stream, nil
}

func (cs *ChangeStream) run(stream *mongo.ChangeStream) {
	for {
		for stream.Next(cs.ctx) {
			var doc changeDocument
			if err := stream.Decode(&doc); err != nil {
				slog.Warn("Invalid change stream event, triggering full reload", slog.Any("error", err))
				cs.notifyHandlers(MaterialChangeEvent{Operation: OperationReload})
				continue
			}
			cs.notifyHandlers(doc.event())
		}
		_ = stream.Close(context.Background())

		if cs.ctx.Err() != nil {
			return
		}
		slog.Warn("Change stream closed, will reopen", slog.Any("error", stream.Err()))

		var ok bool
		if stream, ok = cs.reopen(); !ok {
			return
		}
		slog.Info("Change stream reopened, triggering full reload")
		cs.notifyHandlers(MaterialChangeEvent{Operation: OperationReload})
	}
}

func (cs *ChangeStream) reopen() (*mongo.ChangeStream, bool) {
	for {
		select {
		case <-cs.ctx.Done():
			return nil, false
		case <-time.After(reopenDelay):
		}

		stream, err := cs.watch()
		if err == nil {
			return stream, true
		}
		slog.Warn("Change stream reopen failed, will retry", slog.Any("error", err))
	}
}

// changeDocument is the part of a change event the cache needs.
type changeDocument struct {
	OperationType string `bson:"operationType"`
	FullDocument  *struct {
		QRCodeID string `bson:"qrCodeId"`
	} `bson:"fullDocument"`
	UpdateDescription *struct {
		UpdatedFields bson.M `bson:"updatedFields"`
	} `bson:"updateDescription"`
}

// event maps a change to the qrCodeId it touched. Deletes only carry the
// document _id, and replaces or renames may move a qrCodeId, so those reload.
func (d changeDocument) event() MaterialChangeEvent {
	reload := MaterialChangeEvent{Operation: OperationReload}

	if d.OperationType != "insert" && d.OperationType != "update" {
		return reload
	}
	if d.FullDocument == nil || d.FullDocument.QRCodeID == "" {
		return reload
	}
	if d.UpdateDescription != nil {
		if _, renamed := d.UpdateDescription.UpdatedFields["qrCodeId"]; renamed {
			return reload
		}
	}

	return MaterialChangeEvent{
		Operation: strings.ToUpper(d.OperationType),
		QRCodeID:  d.FullDocument.QRCodeID,
	}
}
