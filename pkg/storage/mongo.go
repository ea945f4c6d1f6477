package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoShortURLStorage persists short URLs in MongoDB: one collection for
// links, one for analytics. Document backends store deep links as optional
// fields, so no schema probing happens here.
type MongoShortURLStorage struct {
	urls      *mongo.Collection
	analytics *mongo.Collection
}

type mongoShortURL struct {
	ID          string           `bson:"_id"`
	Code        string           `bson:"code"`
	OriginalURL string           `bson:"originalUrl"`
	CreatedAt   time.Time        `bson:"createdAtUtc"`
	ExpiresAt   *time.Time       `bson:"expiresAtUtc,omitempty"`
	DeepLinks   *DeepLinkTargets `bson:"deepLinks,omitempty"`
}

type mongoAnalytics struct {
	Code             string     `bson:"_id"`
	TotalResolutions int64      `bson:"totalResolutions"`
	LastResolvedAt   *time.Time `bson:"lastResolvedAtUtc,omitempty"`
}

// NewMongoShortURLStorage wires the two collections and ensures the unique
// code index that backs Create's duplicate detection.
func NewMongoShortURLStorage(ctx context.Context, client *mongo.Client, database string) (*MongoShortURLStorage, error) {
	db := client.Database(database)
	s := &MongoShortURLStorage{
		urls:      db.Collection("short_urls"),
		analytics: db.Collection("short_url_analytics"),
	}

	_, err := s.urls.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure code index: %w", err)
	}
	return s, nil
}

func (s *MongoShortURLStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	count, err := s.urls.CountDocuments(ctx, bson.M{"code": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("code exists: %w", err)
	}
	return count > 0, nil
}

func (s *MongoShortURLStorage) Create(ctx context.Context, shortURL *ShortURL) error {
	doc := mongoShortURL{
		ID:          shortURL.ID.String(),
		Code:        shortURL.Code,
		OriginalURL: shortURL.OriginalURL,
		CreatedAt:   shortURL.CreatedAt.UTC(),
		ExpiresAt:   utcOrNil(shortURL.ExpiresAt),
		DeepLinks:   shortURL.DeepLinks,
	}
	if _, err := s.urls.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert short url: %w", err)
	}
	return nil
}

func (s *MongoShortURLStorage) GetByCode(ctx context.Context, code string) (*ShortURL, error) {
	var doc mongoShortURL
	err := s.urls.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get by code: %w", err)
	}
	return doc.toShortURL()
}

func (d *mongoShortURL) toShortURL() (*ShortURL, error) {
	link, err := NewShortURL(d.Code, d.OriginalURL, utcOrNil(d.ExpiresAt), d.DeepLinks)
	if err != nil {
		return nil, fmt.Errorf("decode short url: %w", err)
	}
	parsed, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode short url id: %w", err)
	}
	link.ID = parsed
	link.CreatedAt = d.CreatedAt.UTC()
	return link, nil
}

func (s *MongoShortURLStorage) RecordResolution(ctx context.Context, code string, resolvedAt time.Time) error {
	update := bson.M{
		"$inc": bson.M{"totalResolutions": 1},
		"$set": bson.M{"lastResolvedAtUtc": resolvedAt.UTC()},
	}
	_, err := s.analytics.UpdateOne(ctx, bson.M{"_id": code}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

func (s *MongoShortURLStorage) GetAnalytics(ctx context.Context, code string) (ShortURLAnalytics, error) {
	var doc mongoAnalytics
	err := s.analytics.FindOne(ctx, bson.M{"_id": code}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ShortURLAnalytics{Code: code}, nil
		}
		return ShortURLAnalytics{}, fmt.Errorf("get analytics: %w", err)
	}
	return ShortURLAnalytics{
		Code:             doc.Code,
		TotalResolutions: doc.TotalResolutions,
		LastResolvedAt:   utcOrNil(doc.LastResolvedAt),
	}, nil
}
