package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig — настройки подключения хранилища пользователей
type MongoConfig struct {
	URI        string // mongodb://localhost:27017
	Database   string // blockverse
	Collection string // users
	Counters   string // counters, последовательность user_id
}

func (c *MongoConfig) withDefaults() {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "blockverse"
	}
	if c.Collection == "" {
		c.Collection = "users"
	}
	if c.Counters == "" {
		c.Counters = "counters"
	}
}

type userDoc struct {
	UserID       uint64    `bson:"user_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	IsAdmin      bool      `bson:"is_admin"`
	CreatedAt    time.Time `bson:"created_at"`
	LastLogin    time.Time `bson:"last_login"`
}

func (d userDoc) user() *User {
	return &User{
		ID:           d.UserID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		LastLogin:    d.LastLogin,
		IsAdmin:      d.IsAdmin,
	}
}

// MongoUserRepo хранит пользователей в MongoDB.
// Соединение может принадлежать репозиторию или быть общим с каталогом схематик.
type MongoUserRepo struct {
	client   *mongo.Client // nil, если соединение чужое
	users    *mongo.Collection
	counters *mongo.Collection
	timeout  time.Duration
}

// NewMongoUserRepo открывает собственное соединение
func NewMongoUserRepo(cfg MongoConfig) (*MongoUserRepo, error) {
	cfg.withDefaults()

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

	repo, err := newMongoUserRepo(client.Database(cfg.Database), cfg)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	repo.client = client
	return repo, nil
}

// NewMongoUserRepoFromDB использует уже открытую базу; Close соединение не закрывает
func NewMongoUserRepoFromDB(db *mongo.Database) (*MongoUserRepo, error) {
	cfg := MongoConfig{Database: db.Name()}
	cfg.withDefaults()
	return newMongoUserRepo(db, cfg)
}

func newMongoUserRepo(db *mongo.Database, cfg MongoConfig) (*MongoUserRepo, error) {
	repo := &MongoUserRepo{
		users:    db.Collection(cfg.Collection),
		counters: db.Collection(cfg.Counters),
		timeout:  5 * time.Second,
	}
	ctx, cancel := repo.ctx()
	defer cancel()
	_, err := repo.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_unique")},
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("userid_unique")},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return repo, nil
}

func (m *MongoUserRepo) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m *MongoUserRepo) GetUserByUsername(username string) (*User, error) {
	return m.find(bson.M{"username": normalize(username)})
}

func (m *MongoUserRepo) GetUserByID(id uint64) (*User, error) {
	return m.find(bson.M{"user_id": id})
}

func (m *MongoUserRepo) find(filter bson.M) (*User, error) {
	ctx, cancel := m.ctx()
	defer cancel()

	var doc userDoc
	switch err := m.users.FindOne(ctx, filter).Decode(&doc); {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, err
	}
	return doc.user(), nil
}

// ValidateCredentials проверяет пароль и обновляет last_login
func (m *MongoUserRepo) ValidateCredentials(username, password string) (*User, error) {
	user, err := validateWith(m.GetUserByUsername, username, password)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.ctx()
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := m.users.UpdateOne(ctx, bson.M{"user_id": user.ID}, bson.M{"$set": bson.M{"last_login": now}}); err != nil {
		return nil, err
	}
	user.LastLogin = now
	return user, nil
}

func (m *MongoUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	id, err := m.nextID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDoc{
		UserID:       id,
		Username:     normalize(username),
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		LastLogin:    now,
	}

	ctx, cancel := m.ctx()
	defer cancel()
	if _, err := m.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return doc.user(), nil
}

// nextID атомарно увеличивает счётчик user_id
func (m *MongoUserRepo) nextID() (uint64, error) {
	ctx, cancel := m.ctx()
	defer cancel()

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "userid"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongo counter: %w", err)
	}
	return uint64(counter.Seq), nil
}

func (m *MongoUserRepo) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
