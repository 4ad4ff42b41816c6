package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/annel0/blockverse/internal/vec"
)

// MongoConfig contains connection settings for the MongoDB catalog.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. blockverse
	Collection string // e.g. schematics
}

// MongoCatalog implements Catalog on MongoDB backend.
type MongoCatalog struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type mongoEntry struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	NameLower     string    `bson:"name_lower"`
	Author        string    `bson:"author"`
	AuthorLower   string    `bson:"author_lower"`
	SizeX         int       `bson:"size_x"`
	SizeY         int       `bson:"size_y"`
	SizeZ         int       `bson:"size_z"`
	NonAir        int       `bson:"non_air"`
	BlockEntities int       `bson:"block_entities"`
	Entities      int       `bson:"entities"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// NewMongoCatalog establishes connection and returns the catalog.
func NewMongoCatalog(cfg MongoConfig) (*MongoCatalog, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "blockverse"
	}
	if cfg.Collection == "" {
		cfg.Collection = "schematics"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	c := &MongoCatalog{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := c.ensureIndexes(); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return c, nil
}

func (c *MongoCatalog) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.ctxTimeout)
	defer cancel()
	_, err := c.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author_lower", Value: 1}}, Options: options.Index().SetName("author")},
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at")},
	})
	return err
}

func (c *MongoCatalog) Put(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	doc := mongoEntry{
		ID:            e.ID.String(),
		Name:          e.Name,
		NameLower:     strings.ToLower(e.Name),
		Author:        e.Author,
		AuthorLower:   strings.ToLower(e.Author),
		SizeX:         e.Size.X,
		SizeY:         e.Size.Y,
		SizeZ:         e.Size.Z,
		NonAir:        e.NonAir,
		BlockEntities: e.BlockEntities,
		Entities:      e.Entities,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	_, err := c.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo put %s: %w", e.ID, err)
	}
	return nil
}

func (d mongoEntry) entry() (Entry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("некорректный id %q: %w", d.ID, err)
	}
	return Entry{
		ID:            id,
		Name:          d.Name,
		Author:        d.Author,
		Size:          vec.Vec3{X: d.SizeX, Y: d.SizeY, Z: d.SizeZ},
		NonAir:        d.NonAir,
		BlockEntities: d.BlockEntities,
		Entities:      d.Entities,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

func (c *MongoCatalog) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	var doc mongoEntry
	err := c.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("mongo get %s: %w", id, err)
	}
	return doc.entry()
}

func (c *MongoCatalog) Remove(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()
	res, err := c.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("mongo remove %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *MongoCatalog) Search(ctx context.Context, q Query) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.ctxTimeout)
	defer cancel()

	filter := bson.M{}
	if q.Name != "" {
		filter["name_lower"] = bson.M{"$regex": regexp.QuoteMeta(strings.ToLower(q.Name))}
	}
	if q.Author != "" {
		filter["author_lower"] = strings.ToLower(q.Author)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(q.limit()))

	cur, err := c.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo search: %w", err)
	}
	defer cur.Close(ctx)

	var out []Entry
	for cur.Next(ctx) {
		var doc mongoEntry
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		e, err := doc.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

// Database возвращает базу каталога, чтобы другие хранилища делили соединение
func (c *MongoCatalog) Database() *mongo.Database {
	return c.collection.Database()
}

// Close terminates connection.
func (c *MongoCatalog) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}
