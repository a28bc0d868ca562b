// Package mongo stores the settings record in a MongoDB collection.
//
// Each write stores the record twice in one document: a canonical JSON
// string and a structured BSON mirror. Reads prefer the string and fall
// back to the mirror, so documents edited by other tools that only carry
// one of the two still load.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongod "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/academyops/academyd/internal/settings"
)

const (
	defaultDatabase   = "academy"
	defaultCollection = "app_settings"
	defaultTimeout    = 10 * time.Second
)

// Config holds MongoDB connection options.
type Config struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.Collection == "" {
		c.Collection = defaultCollection
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// document is the stored shape.
type document struct {
	ID        string                 `bson:"_id"`
	Value     string                 `bson:"value,omitempty"`
	Settings  *settings.CronSettings `bson:"settings,omitempty"`
	UpdatedAt time.Time              `bson:"updated_at"`
}

// Compile-time interface check.
var _ settings.Repository = (*Repository)(nil)

// Repository implements settings.Repository over one collection.
type Repository struct {
	client *mongod.Client
	col    *mongod.Collection
	id     string
}

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Repository, error) {
	cfg.Defaults()
	if cfg.URI == "" {
		return nil, errors.New("mongo: uri is required")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongod.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return New(client, cfg.Database, cfg.Collection), nil
}

// New wraps an existing client.
func New(client *mongod.Client, database, collection string) *Repository {
	return &Repository{
		client: client,
		col:    client.Database(database).Collection(collection),
		id:     settings.RecordID,
	}
}

// Load implements settings.Repository.
func (r *Repository) Load(ctx context.Context) (settings.CronSettings, error) {
	var doc document
	err := r.col.FindOne(ctx, bson.M{"_id": r.id}).Decode(&doc)
	if errors.Is(err, mongod.ErrNoDocuments) {
		return settings.CronSettings{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.CronSettings{}, fmt.Errorf("mongo: load settings: %w", err)
	}
	return decode(doc), nil
}

// decode prefers the JSON string, then the BSON mirror, then an empty
// record that the settings store fills with defaults.
func decode(doc document) settings.CronSettings {
	if doc.Value != "" {
		var s settings.CronSettings
		if err := json.Unmarshal([]byte(doc.Value), &s); err == nil {
			return s
		}
	}
	if doc.Settings != nil {
		return *doc.Settings
	}
	return settings.CronSettings{}
}

func (r *Repository) encode(s settings.CronSettings) (document, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return document{}, fmt.Errorf("mongo: encode settings: %w", err)
	}
	mirror := s.Clone()
	return document{ID: r.id, Value: string(raw), Settings: &mirror, UpdatedAt: time.Now().UTC()}, nil
}

// Save implements settings.Repository.
func (r *Repository) Save(ctx context.Context, s settings.CronSettings) error {
	doc, err := r.encode(s)
	if err != nil {
		return err
	}
	_, err = r.col.ReplaceOne(ctx, bson.M{"_id": r.id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: save settings: %w", err)
	}
	return nil
}

// Create implements settings.Repository with an upsert that only sets
// fields on insert.
func (r *Repository) Create(ctx context.Context, s settings.CronSettings) (bool, error) {
	doc, err := r.encode(s)
	if err != nil {
		return false, err
	}
	update := bson.M{"$setOnInsert": bson.M{
		"value":      doc.Value,
		"settings":   doc.Settings,
		"updated_at": doc.UpdatedAt,
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": r.id}, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongo: create settings: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

// Ping implements settings.Repository.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
