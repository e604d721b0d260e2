package db

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	Client *mongo.Client

	UserCollection        *mongo.Collection
	TripsCollection       *mongo.Collection
	NodesCollection       *mongo.Collection
	ConnectionsCollection *mongo.Collection
	TasksCollection       *mongo.Collection
	CommentsCollection    *mongo.Collection
	ActivitiesCollection  *mongo.Collection
)

// Init connects to MongoDB and binds the collection handles. Called once
// from main; tests that fake the store never touch this.
func Init() {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	Client, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	database := Client.Database("tripweave")
	UserCollection = database.Collection("users")
	TripsCollection = database.Collection("trips")
	NodesCollection = database.Collection("nodes")
	ConnectionsCollection = database.Collection("connections")
	TasksCollection = database.Collection("tasks")
	CommentsCollection = database.Collection("comments")
	ActivitiesCollection = database.Collection("activities")
}

// Close disconnects the client on shutdown.
func Close(ctx context.Context) {
	if Client != nil {
		if err := Client.Disconnect(ctx); err != nil {
			log.Printf("Mongo disconnect error: %v", err)
		}
	}
}
