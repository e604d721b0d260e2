package store

import (
	"context"
	"time"

	"tripweave/db"
	"tripweave/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements Store over the shared db collections.
type Mongo struct{}

func NewMongo() *Mongo { return &Mongo{} }

func (m *Mongo) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := db.UserCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *Mongo) TripByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	var trip models.Trip
	err := db.TripsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&trip)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (m *Mongo) InsertNode(ctx context.Context, n *models.Node) (*models.Node, error) {
	now := time.Now()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = now
	n.UpdatedAt = now
	if _, err := db.NodesCollection.InsertOne(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (m *Mongo) UpdateNodePosition(ctx context.Context, id primitive.ObjectID, pos models.Position) error {
	res, err := db.NodesCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"position": pos, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) UpdateNodeFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Node, error) {
	set := bson.M{"updatedAt": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	var node models.Node
	err := db.NodesCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&node)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (m *Mongo) DeleteNode(ctx context.Context, id primitive.ObjectID) (*models.Node, error) {
	var node models.Node
	err := db.NodesCollection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&node)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (m *Mongo) InsertConnection(ctx context.Context, c *models.Connection) (*models.Connection, error) {
	c.ID = primitive.NewObjectID()
	if _, err := db.ConnectionsCollection.InsertOne(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Mongo) DeleteConnection(ctx context.Context, id primitive.ObjectID) error {
	res, err := db.ConnectionsCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteConnectionsForNode(ctx context.Context, tripID, nodeID primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{
		"tripId": tripID,
		"$or": bson.A{
			bson.M{"fromNodeId": nodeID},
			bson.M{"toNodeId": nodeID},
		},
	}

	cursor, err := db.ConnectionsCollection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var doomed []models.Connection
	if err := cursor.All(ctx, &doomed); err != nil {
		return nil, err
	}
	if len(doomed) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(doomed))
	for _, c := range doomed {
		ids = append(ids, c.ID)
	}
	if _, err := db.ConnectionsCollection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Mongo) InsertTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	now := time.Now()
	t.ID = primitive.NewObjectID()
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := db.TasksCollection.InsertOne(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (m *Mongo) UpdateTaskFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Task, error) {
	set := bson.M{"updatedAt": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	var task models.Task
	err := db.TasksCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (m *Mongo) DeleteTask(ctx context.Context, id primitive.ObjectID) error {
	res, err := db.TasksCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) InsertComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	now := time.Now()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := db.CommentsCollection.InsertOne(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Mongo) CommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	err := db.CommentsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (m *Mongo) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	res, err := db.CommentsCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) InsertActivity(ctx context.Context, a *models.Activity) error {
	a.ID = primitive.NewObjectID()
	_, err := db.ActivitiesCollection.InsertOne(ctx, a)
	return err
}
