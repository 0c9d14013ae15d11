package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mediaCollection = "media"

// mongoMediaDoc is the stored shape. Field names match documents written
// by earlier versions of the app, audioData included. AudioData and
// FileSize are pointers so a zero-byte payload is still written.
type mongoMediaDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	URL           string             `bson:"url"`
	Title         string             `bson:"title"`
	IsDownloaded  bool               `bson:"isDownloaded"`
	AudioData     *[]byte            `bson:"audioData,omitempty"`
	FileExtension string             `bson:"fileExtension,omitempty"`
	FileSize      *int64             `bson:"fileSize,omitempty"`
	LocalPath     *string            `bson:"localPath,omitempty"`
	Hashtags      []string           `bson:"hashtags"`
	CreatedAt     time.Time          `bson:"createdAt"`

	// PayloadSize is only filled by the listing projection.
	PayloadSize *int64 `bson:"payloadSize,omitempty"`
}

// payloadState reports whether the document carries payload bytes and
// their length. isDownloaded alone is not enough: old documents may have
// it set next to a localPath and no audioData.
func (d *mongoMediaDoc) payloadState() (bool, int64) {
	switch {
	case d.PayloadSize != nil:
		return true, *d.PayloadSize
	case d.AudioData != nil:
		return true, int64(len(*d.AudioData))
	default:
		return false, 0
	}
}

func (d *mongoMediaDoc) toModel() *models.Media {
	localPath := ""
	if d.LocalPath != nil {
		localPath = *d.LocalPath
	}
	hasPayload, size := d.payloadState()
	return &models.Media{
		ID:        d.ID.Hex(),
		URL:       d.URL,
		Title:     d.Title,
		Hashtags:  d.Hashtags,
		CreatedAt: d.CreatedAt,
		State:     stateFromFields(hasPayload, d.FileExtension, size, localPath),
	}
}

// withoutPayload keeps listings and lookups from pulling blobs over the
// wire; the server reports the blob length instead ($binarySize is null
// when audioData is missing or null).
var withoutPayload = bson.M{
	"url":           1,
	"title":         1,
	"isDownloaded":  1,
	"fileExtension": 1,
	"localPath":     1,
	"hashtags":      1,
	"createdAt":     1,
	"payloadSize":   bson.M{"$binarySize": "$audioData"},
}

type MongoMediaRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoMediaRepo connects, pings and makes sure the indexes exist.
func NewMongoMediaRepo(ctx context.Context, uri, database string) (*MongoMediaRepo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	r := &MongoMediaRepo{
		client: client,
		coll:   client.Database(database).Collection(mediaCollection),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return r, nil
}

func (r *MongoMediaRepo) ensureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "hashtags", Value: "text"}}},
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "localPath", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create media indexes: %w", err)
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ports.ErrInvalidIdentifier, id)
	}
	return oid, nil
}

func (r *MongoMediaRepo) findOne(ctx context.Context, filter bson.M) (*models.Media, error) {
	var doc mongoMediaDoc
	err := r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(withoutPayload)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find media: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoMediaRepo) Get(ctx context.Context, id string) (*models.Media, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoMediaRepo) FindByURL(ctx context.Context, url string) (*models.Media, error) {
	return r.findOne(ctx, bson.M{"url": url})
}

func (r *MongoMediaRepo) FindByLegacyPath(ctx context.Context, paths ...string) (*models.Media, error) {
	return r.findOne(ctx, bson.M{"localPath": bson.M{"$in": paths}})
}

func (r *MongoMediaRepo) Insert(ctx context.Context, media *models.Media, payload *models.Payload) (*models.Media, error) {
	doc := newMongoDoc(media, payload, time.Now())

	res, err := r.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("%w: url %s", ports.ErrDuplicateKey, media.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toModel(), nil
}

func newMongoDoc(media *models.Media, payload *models.Payload, now time.Time) *mongoMediaDoc {
	doc := &mongoMediaDoc{
		URL:       media.URL,
		Title:     media.Title,
		Hashtags:  append([]string{}, media.Hashtags...),
		CreatedAt: now.UTC().Truncate(time.Millisecond),
	}
	if payload != nil {
		data, size := payload.Data, payload.Size()
		if data == nil {
			data = []byte{}
		}
		doc.IsDownloaded = true
		doc.AudioData = &data
		doc.FileExtension = payload.Extension
		doc.FileSize = &size
	} else if p, ok := media.LegacyPath(); ok {
		doc.LocalPath = &p
	}
	return doc
}

func metadataUpdateDoc(upd ports.MetadataUpdate) bson.M {
	update := bson.M{}
	if upd.Title != nil {
		update["$set"] = bson.M{"title": *upd.Title}
	}
	if len(upd.AddHashtags) > 0 {
		update["$addToSet"] = bson.M{"hashtags": bson.M{"$each": upd.AddHashtags}}
	}
	return update
}

func (r *MongoMediaRepo) UpdateMetadata(ctx context.Context, id string, upd ports.MetadataUpdate) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := metadataUpdateDoc(upd)
	if len(update) == 0 {
		_, err := r.findOne(ctx, bson.M{"_id": oid})
		return err
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func attachPayloadDoc(payload *models.Payload, tag string) bson.M {
	data := payload.Data
	if data == nil {
		data = []byte{}
	}
	update := bson.M{
		"$set": bson.M{
			"isDownloaded":  true,
			"audioData":     data,
			"fileExtension": payload.Extension,
			"fileSize":      payload.Size(),
		},
		"$unset": bson.M{"localPath": ""},
	}
	if tag != "" {
		update["$addToSet"] = bson.M{"hashtags": tag}
	}
	return update
}

// AttachPayload is a single UpdateOne, so readers see either the old
// document or the fully written one.
func (r *MongoMediaRepo) AttachPayload(ctx context.Context, id string, payload *models.Payload, tag string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, attachPayloadDoc(payload, tag))
	if err != nil {
		return fmt.Errorf("attach payload: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *MongoMediaRepo) Payload(ctx context.Context, id string) (*models.Payload, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc mongoMediaDoc
	opts := options.FindOne().SetProjection(bson.M{"audioData": 1, "fileExtension": 1})
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	if doc.AudioData == nil {
		return nil, ports.ErrNotFound
	}
	data := *doc.AudioData
	if data == nil {
		data = []byte{}
	}
	return &models.Payload{Data: data, Extension: doc.FileExtension}, nil
}

func (r *MongoMediaRepo) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if res.DeletedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *MongoMediaRepo) List(ctx context.Context) ([]*models.Media, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoMediaRepo) Search(ctx context.Context, query string) ([]*models.Media, error) {
	if query == "" {
		return r.List(ctx)
	}
	return r.find(ctx, bson.M{"$text": bson.M{"$search": query}})
}

func (r *MongoMediaRepo) find(ctx context.Context, filter bson.M) ([]*models.Media, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(withoutPayload)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find media: %w", err)
	}

	var docs []mongoMediaDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}

	out := make([]*models.Media, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (r *MongoMediaRepo) ClearLegacyPaths(ctx context.Context) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"localPath": bson.M{"$exists": true}},
		bson.M{"$unset": bson.M{"localPath": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("clear localPath: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoMediaRepo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
