package store

import (
	"context"
	"errors"

	"tripweave/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a lookup, update or delete matched nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator the realtime layer writes through.
// Every mutation returns the canonical post-write object where the protocol
// broadcasts one.
type Store interface {
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	TripByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error)

	InsertNode(ctx context.Context, n *models.Node) (*models.Node, error)
	UpdateNodePosition(ctx context.Context, id primitive.ObjectID, pos models.Position) error
	UpdateNodeFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Node, error)
	DeleteNode(ctx context.Context, id primitive.ObjectID) (*models.Node, error)

	InsertConnection(ctx context.Context, c *models.Connection) (*models.Connection, error)
	DeleteConnection(ctx context.Context, id primitive.ObjectID) error
	// DeleteConnectionsForNode removes every connection in the trip that
	// touches the node as either endpoint and reports which ones went.
	DeleteConnectionsForNode(ctx context.Context, tripID, nodeID primitive.ObjectID) ([]primitive.ObjectID, error)

	InsertTask(ctx context.Context, t *models.Task) (*models.Task, error)
	UpdateTaskFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Task, error)
	DeleteTask(ctx context.Context, id primitive.ObjectID) error

	InsertComment(ctx context.Context, c *models.Comment) (*models.Comment, error)
	CommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	DeleteComment(ctx context.Context, id primitive.ObjectID) error

	InsertActivity(ctx context.Context, a *models.Activity) error
}
