package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fjod/cartsync/internal/domain"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) AddItem(ctx context.Context, userID string, item domain.LineItem) error {
	now := time.Now()

	// Same product and kind already in the cart: bump its quantity
	mergeFilter := bson.M{
		"user_id": userID,
		"items": bson.M{"$elemMatch": bson.M{
			"product_id": item.ProductID,
			"type":       item.Kind,
		}},
	}
	merge := bson.M{
		"$inc": bson.M{"items.$.quantite": item.Quantity},
		"$set": bson.M{
			"items.$.nom":       item.Name,
			"items.$.prix":      item.UnitPrice,
			"items.$.image":     item.Image,
			"items.$.contenant": item.ContainerType,
			"items.$.added_at":  now,
			"updated_at":        now,
		},
	}
	merged, err := m.mergeItem(ctx, mergeFilter, merge)
	if err != nil || merged {
		return err
	}

	// New line: reserve an item id, creating the cart on the way
	var cart domain.Cart
	reserve := bson.M{
		"$inc":         bson.M{"next_item_id": 1},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now, "items": bson.A{}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := m.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, reserve, opts).Decode(&cart); err != nil {
		return fmt.Errorf("failed to reserve item id: %w", err)
	}

	// Push only while no line for the product and kind exists; a concurrent first add that won
	// the race turns this one into a merge. The reserved id is then left unused.
	item.ID = cart.NextItemID
	item.AddedAt = now
	pushFilter := bson.M{
		"user_id": userID,
		"items": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"product_id": item.ProductID,
			"type":       item.Kind,
		}}},
	}
	push := bson.M{"$push": bson.M{"items": item}}
	result, err := m.collection.UpdateOne(ctx, pushFilter, push)
	if err != nil {
		return fmt.Errorf("failed to add new item: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	merged, err := m.mergeItem(ctx, mergeFilter, merge)
	if err != nil {
		return err
	}
	if !merged {
		return fmt.Errorf("failed to add new item: cart %s changed concurrently", userID)
	}
	return nil
}

func (m *MongoRepository) mergeItem(ctx context.Context, filter, update bson.M) (bool, error) {
	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update existing item: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (m *MongoRepository) UpdateItemQuantity(ctx context.Context, userID string, itemID int64, quantity int) error {
	if quantity <= 0 {
		return m.RemoveItem(ctx, userID, itemID)
	}

	filter := bson.M{
		"user_id":  userID,
		"items.id": itemID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantite": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.id": itemID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveItem(ctx context.Context, userID string, itemID int64) error {
	filter := bson.M{"user_id": userID, "items.id": itemID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"id": itemID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (m *MongoRepository) RemoveProduct(ctx context.Context, userID string, productID domain.ProductID) (int, error) {
	cart, err := m.GetCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return 0, ErrItemNotFound
	}
	if err != nil {
		return 0, err
	}

	count := 0
	for _, item := range cart.Items {
		if item.ProductID == productID {
			count++
		}
	}
	if count == 0 {
		return 0, ErrItemNotFound
	}

	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update); err != nil {
		return 0, fmt.Errorf("failed to remove product: %w", err)
	}
	return count, nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
