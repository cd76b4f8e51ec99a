package pubsub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/curaious/fabricqr/internal/config"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		payload string
		want    MaterialChangeEvent
		ok      bool
	}{
		{"UPDATE:FAB-001", MaterialChangeEvent{Operation: "UPDATE", QRCodeID: "FAB-001"}, true},
		{"DELETE:id:with:colons", MaterialChangeEvent{Operation: "DELETE", QRCodeID: "id:with:colons"}, true},
		{"INSERT:", MaterialChangeEvent{}, false},
		{":FAB-001", MaterialChangeEvent{}, false},
		{"garbage", MaterialChangeEvent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, ok := ParsePayload(tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotifyHandlers(t *testing.T) {
	ps := NewPubSub(&config.Config{DB_HOST: "localhost", DB_PORT: "5432", DB_NAME: "fabricqr"})
	defer ps.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var got []MaterialChangeEvent
	for i := 0; i < 2; i++ {
		ps.Subscribe(func(ev MaterialChangeEvent) {
			defer wg.Done()
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		})
	}

	wg.Add(2)
	ps.notifyHandlers(MaterialChangeEvent{Operation: OperationReload})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handlers were not called")
	}

	require.Len(t, got, 2)
	assert.Equal(t, OperationReload, got[0].Operation)
}

func TestChangeDocument_Event(t *testing.T) {
	doc := func(qrCodeID string) bson.D { return bson.D{{Key: "qrCodeId", Value: qrCodeID}} }
	reload := MaterialChangeEvent{Operation: OperationReload}

	tests := []struct {
		name string
		raw  bson.D
		want MaterialChangeEvent
	}{
		{
			name: "insert",
			raw:  bson.D{{Key: "operationType", Value: "insert"}, {Key: "fullDocument", Value: doc("FAB-001")}},
			want: MaterialChangeEvent{Operation: "INSERT", QRCodeID: "FAB-001"},
		},
		{
			name: "update of other fields",
			raw: bson.D{
				{Key: "operationType", Value: "update"},
				{Key: "fullDocument", Value: doc("FAB-001")},
				{Key: "updateDescription", Value: bson.D{{Key: "updatedFields", Value: bson.D{{Key: "color", Value: "red"}}}}},
			},
			want: MaterialChangeEvent{Operation: "UPDATE", QRCodeID: "FAB-001"},
		},
		{
			name: "update renaming qrCodeId",
			raw: bson.D{
				{Key: "operationType", Value: "update"},
				{Key: "fullDocument", Value: doc("FAB-002")},
				{Key: "updateDescription", Value: bson.D{{Key: "updatedFields", Value: bson.D{{Key: "qrCodeId", Value: "FAB-002"}}}}},
			},
			want: reload,
		},
		{
			name: "update of a document deleted since",
			raw:  bson.D{{Key: "operationType", Value: "update"}, {Key: "fullDocument", Value: nil}},
			want: reload,
		},
		{
			name: "delete",
			raw:  bson.D{{Key: "operationType", Value: "delete"}, {Key: "documentKey", Value: bson.D{{Key: "_id", Value: bson.NewObjectID()}}}},
			want: reload,
		},
		{
			name: "replace",
			raw:  bson.D{{Key: "operationType", Value: "replace"}, {Key: "fullDocument", Value: doc("FAB-001")}},
			want: reload,
		},
		{
			name: "drop",
			raw:  bson.D{{Key: "operationType", Value: "drop"}},
			want: reload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.raw)
			require.NoError(t, err)

			var d changeDocument
			require.NoError(t, bson.Unmarshal(raw, &d))
			assert.Equal(t, tt.want, d.event())
		})
	}
}
