package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoConfig contains MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// Mongo implements GroupStore, IPAccessStore and DatasetStore on MongoDB.
type Mongo struct {
	client     *mongo.Client
	groups     *mongo.Collection
	ipAccess   *mongo.Collection
	userGroups *mongo.Collection
	datasets   *mongo.Collection
}

// NewMongo connects, pings and ensures the unique indexes each collection
// is keyed by.
func NewMongo(ctx context.Context, cfg *MongoConfig) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Mongo{
		client:     client,
		groups:     db.Collection("accessgroups"),
		ipAccess:   db.Collection("ipaccess"),
		userGroups: db.Collection("usergroups"),
		datasets:   db.Collection("datasets"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Mongo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}
	for coll, field := range map[*mongo.Collection]string{
		s.groups:     "groupId",
		s.ipAccess:   "ipId",
		s.userGroups: "address",
		s.datasets:   "cid",
	} {
		if _, err := coll.Indexes().CreateOne(ctx, unique(field)); err != nil {
			return err
		}
	}
	return nil
}

// AddMember is a single atomic $addToSet upsert; concurrent adds for the
// same group cannot lose updates.
func (s *Mongo) AddMember(ctx context.Context, groupID, address string) (*Group, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$addToSet":    bson.M{"userAddresses": address},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"groupId": groupID, "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var g Group
	err := s.groups.FindOneAndUpdate(ctx, bson.M{"groupId": groupID}, update, opts).Decode(&g)
	if err != nil {
		return nil, fmt.Errorf("adding member to group %s: %w", groupID, err)
	}
	return &g, nil
}

func (s *Mongo) ListMembers(ctx context.Context, groupID string) ([]string, error) {
	var g Group
	err := s.groups.FindOne(ctx, bson.M{"groupId": groupID}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", groupID, err)
	}
	return g.MemberAddresses, nil
}

func (s *Mongo) IsMember(ctx context.Context, groupID, address string) (bool, error) {
	err := s.groups.FindOne(ctx, bson.M{"groupId": groupID, "userAddresses": address}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking membership in group %s: %w", groupID, err)
	}
	return true, nil
}

func (s *Mongo) GroupForUser(ctx context.Context, address string) (string, error) {
	var doc struct {
		GroupID string `bson:"groupId"`
	}
	err := s.userGroups.FindOne(ctx, bson.M{"address": NormalizeAddress(address)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetching user group: %w", err)
	}
	return doc.GroupID, nil
}

// SetGroupForUser overwrites the mapping inside a session transaction so a
// failure cannot leave a partially updated document behind.
func (s *Mongo) SetGroupForUser(ctx context.Context, address, groupID string) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		now := time.Now().UTC()
		update := bson.M{
			"$set":         bson.M{"groupId": groupID, "updatedAt": now},
			"$setOnInsert": bson.M{"address": NormalizeAddress(address), "createdAt": now},
		}
		opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
		res := s.userGroups.FindOneAndUpdate(ctx, bson.M{"address": NormalizeAddress(address)}, update, opts)
		return nil, res.Err()
	})
	if err != nil {
		return fmt.Errorf("saving user group: %w", err)
	}
	return nil
}

// Grant mirrors AddMember for per-content allow-lists.
func (s *Mongo) Grant(ctx context.Context, ipID, address string) (*IPAccess, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$addToSet":    bson.M{"allowedUserAddresses": address},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"ipId": ipID, "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rec IPAccess
	err := s.ipAccess.FindOneAndUpdate(ctx, bson.M{"ipId": ipID}, update, opts).Decode(&rec)
	if err != nil {
		return nil, fmt.Errorf("granting access to %s: %w", ipID, err)
	}
	return &rec, nil
}

func (s *Mongo) Allowed(ctx context.Context, ipID, address string) (bool, error) {
	err := s.ipAccess.FindOne(ctx, bson.M{"ipId": ipID, "allowedUserAddresses": address}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking access to %s: %w", ipID, err)
	}
	return true, nil
}

func (s *Mongo) Save(ctx context.Context, d *Dataset) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.datasets.ReplaceOne(ctx, bson.M{"cid": d.ContentID}, d, opts)
	if err != nil {
		return fmt.Errorf("saving dataset %s: %w", d.ContentID, err)
	}
	return nil
}

func (s *Mongo) List(ctx context.Context) ([]Dataset, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.datasets.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	var out []Dataset
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding datasets: %w", err)
	}
	return out, nil
}

func (s *Mongo) ByContentID(ctx context.Context, cid string) (*Dataset, error) {
	var d Dataset
	err := s.datasets.FindOne(ctx, bson.M{"cid": cid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching dataset %s: %w", cid, err)
	}
	return &d, nil
}
