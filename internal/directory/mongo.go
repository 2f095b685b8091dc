package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"wa_farm_advisor_bot/internal/config"
)

// CollectionUsers is the collection backing the mongo directory.
const CollectionUsers = "users"

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// cursorAll is overridable for tests, where cursors cannot be constructed.
var cursorAll = func(ctx context.Context, cursor *mongo.Cursor, out interface{}) error {
	return cursor.All(ctx, out)
}

// Manager owns the MongoDB client and the configured database handle.
type Manager struct {
	client mongoClient
	db     *mongo.Database
}

// NewManager initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(cfg.MongoDB),
	}, nil
}

// Users returns the users collection handle.
func (m *Manager) Users() *mongo.Collection {
	return m.db.Collection(CollectionUsers)
}

// EnsureIndexes creates the unique phone index on the users collection.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errors.New("directory manager is not initialized")
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().
				SetName("phone_unique").
				SetUnique(true),
		},
	}

	if _, err := createIndexes(ctx, m.Users(), userIndexes); err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}

	return nil
}

// Ping verifies backend reachability.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil || m.client == nil {
		return errors.New("directory manager is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}

// userCollection captures the collection operations the mongo directory uses,
// allowing fakes in tests.
type userCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// Mongo is the persistent Directory implementation, selected via
// DIRECTORY_BACKEND=mongo. Records written here do survive restarts, unlike
// the default memory backend.
type Mongo struct {
	users  userCollection
	pinger interface {
		Ping(ctx context.Context) error
	}

	// now is overridable for tests.
	now func() time.Time
}

// NewMongo constructs a mongo-backed directory over the users collection.
func NewMongo(users userCollection, pinger interface{ Ping(ctx context.Context) error }) *Mongo {
	return &Mongo{
		users:  users,
		pinger: pinger,
		now:    time.Now,
	}
}

// Get returns the record for the phone number or ErrNotFound.
func (d *Mongo) Get(ctx context.Context, phone string) (Record, error) {
	if err := d.check(ctx, phone); err != nil {
		return Record{}, err
	}

	result := d.users.FindOne(ctx, bson.M{"phone": phone})
	if result == nil {
		return Record{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("find user: %w", err)
	}

	var rec Record
	if err := result.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode user: %w", err)
	}

	return rec, nil
}

// UpsertDefault creates the record if absent and reports whether it did.
func (d *Mongo) UpsertDefault(ctx context.Context, phone string) (bool, error) {
	if err := d.check(ctx, phone); err != nil {
		return false, err
	}

	now := d.now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"phone":      phone,
			"language":   LanguageEnglish,
			"subscribed": false,
			"activities": []Activity{},
			"created_at": now,
		},
	}

	result, err := d.users.UpdateOne(ctx,
		bson.M{"phone": phone},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}

	return result != nil && result.UpsertedCount > 0, nil
}

// SetLanguage stores the reply language preference.
func (d *Mongo) SetLanguage(ctx context.Context, phone string, lang Language) error {
	if err := d.check(ctx, phone); err != nil {
		return err
	}
	if !lang.Valid() {
		return errors.New("invalid language code")
	}

	return d.update(ctx, phone, bson.M{"language": lang})
}

// Subscribe enables alerts for the given city.
func (d *Mongo) Subscribe(ctx context.Context, phone, city string) error {
	if err := d.check(ctx, phone); err != nil {
		return err
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return errors.New("city is required")
	}

	return d.update(ctx, phone, bson.M{"subscribed": true, "city": city})
}

// Unsubscribe clears the subscription flag and city.
func (d *Mongo) Unsubscribe(ctx context.Context, phone string) error {
	if err := d.check(ctx, phone); err != nil {
		return err
	}

	return d.update(ctx, phone, bson.M{"subscribed": false, "city": ""})
}

// AppendActivity appends one activity note with the current timestamp.
func (d *Mongo) AppendActivity(ctx context.Context, phone, text string) error {
	if err := d.check(ctx, phone); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("activity text is required")
	}

	now := d.now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$push": bson.M{"activities": Activity{Text: text, At: now}},
		"$set":  bson.M{"updated_at": now},
	}

	if _, err := d.users.UpdateOne(ctx, bson.M{"phone": phone}, update); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	return nil
}

// ClearActivities empties the activity log.
func (d *Mongo) ClearActivities(ctx context.Context, phone string) error {
	if err := d.check(ctx, phone); err != nil {
		return err
	}

	return d.update(ctx, phone, bson.M{"activities": []Activity{}})
}

// Subscribers returns a phone→city snapshot of all subscribed users.
func (d *Mongo) Subscribers(ctx context.Context) (map[string]string, error) {
	if d == nil || d.users == nil {
		return nil, errors.New("mongo directory is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := d.users.Find(ctx, bson.M{"subscribed": true, "city": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}

	var records []Record
	if err := cursorAll(ctx, cursor, &records); err != nil {
		return nil, fmt.Errorf("decode subscribers: %w", err)
	}

	out := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.City != "" {
			out[rec.Phone] = rec.City
		}
	}

	return out, nil
}

// CountSubscribed returns the number of subscribed users.
func (d *Mongo) CountSubscribed(ctx context.Context) (int64, error) {
	if d == nil || d.users == nil {
		return 0, errors.New("mongo directory is not initialized")
	}
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	count, err := d.users.CountDocuments(ctx, bson.M{"subscribed": true})
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}

	return count, nil
}

// Ping verifies backend reachability through the owning manager.
func (d *Mongo) Ping(ctx context.Context) error {
	if d == nil || d.pinger == nil {
		return errors.New("mongo directory is not initialized")
	}

	return d.pinger.Ping(ctx)
}

// update applies a $set without upsert, so absent records stay a no-op.
func (d *Mongo) update(ctx context.Context, phone string, set bson.M) error {
	set["updated_at"] = d.now().UTC().Truncate(time.Millisecond)

	if _, err := d.users.UpdateOne(ctx, bson.M{"phone": phone}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (d *Mongo) check(ctx context.Context, phone string) error {
	if d == nil || d.users == nil {
		return errors.New("mongo directory is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(phone) == "" {
		return errors.New("phone is required")
	}
	return nil
}
