package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobflow-io/jobflow/pkg/api"
)

// MongoStore is an api.Store backed by a MongoDB collection, mirroring
// the bson-document shape the teacher's Mongo instance store used for
// workflow instances.
type MongoStore struct {
	coll *mongo.Collection
}

var _ api.Store = (*MongoStore)(nil)

type mongoRecordDoc struct {
	UUID       string         `bson:"uuid"`
	Index      int            `bson:"index"`
	Data       bson.M         `bson:"data"`
	Metadata   bson.M         `bson:"metadata"`
	Hosts      []string       `bson:"hosts"`
	StoreNames map[string]string `bson:"store_names"`
}

// NewMongoStore wraps an existing *mongo.Collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) Connect(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.coll.Database().Client().Disconnect(ctx)
}

func mongoFilterDoc(filter api.Filter) bson.M {
	doc := bson.M{}
	for k, v := range filter {
		switch k {
		case "uuid", "index":
			doc[k] = v
		default:
			doc["data."+k] = v
		}
	}
	return doc
}

func fromMongoDoc(doc mongoRecordDoc) *api.Record {
	return &api.Record{
		UUID:       doc.UUID,
		Index:      doc.Index,
		Data:       bsonMToMap(doc.Data),
		Metadata:   bsonMToMap(doc.Metadata),
		Hosts:      doc.Hosts,
		StoreNames: doc.StoreNames,
	}
}

func bsonMToMap(m bson.M) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *MongoStore) Update(ctx context.Context, filter api.Filter, record *api.Record) error {
	doc := mongoRecordDoc{
		UUID: record.UUID, Index: record.Index,
		Data: bson.M(record.Data), Metadata: bson.M(record.Metadata),
		Hosts: record.Hosts, StoreNames: record.StoreNames,
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"uuid": record.UUID, "index": record.Index}, doc, opts)
	return err
}

func (s *MongoStore) QueryOne(ctx context.Context, filter api.Filter, properties []string) (*api.Record, error) {
	var doc mongoRecordDoc
	err := s.coll.FindOne(ctx, mongoFilterDoc(filter)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromMongoDoc(doc), nil
}

func (s *MongoStore) Query(ctx context.Context, filter api.Filter, properties []string) (api.RecordIter, error) {
	cur, err := s.coll.Find(ctx, mongoFilterDoc(filter))
	if err != nil {
		return nil, err
	}
	return &mongoIter{cur: cur}, nil
}

func (s *MongoStore) Remove(ctx context.Context, filter api.Filter) error {
	_, err := s.coll.DeleteMany(ctx, mongoFilterDoc(filter))
	return err
}

func (s *MongoStore) Count(ctx context.Context, filter api.Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, mongoFilterDoc(filter))
}

func (s *MongoStore) Distinct(ctx context.Context, field string, filter api.Filter) ([]any, error) {
	mongoField := field
	switch field {
	case "uuid", "index":
	default:
		mongoField = "data." + field
	}
	return s.coll.Distinct(ctx, mongoField, mongoFilterDoc(filter))
}

type mongoIter struct {
	cur *mongo.Cursor
}

func (it *mongoIter) Next(ctx context.Context) (*api.Record, error) {
	if !it.cur.Next(ctx) {
		return nil, it.cur.Err()
	}
	var doc mongoRecordDoc
	if err := it.cur.Decode(&doc); err != nil {
		return nil, err
	}
	return fromMongoDoc(doc), nil
}

func (it *mongoIter) Close() error {
	return it.cur.Close(context.Background())
}
