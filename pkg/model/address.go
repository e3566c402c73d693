package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// Address is the resolved, read-only view of a live address.
type Address struct {
	ID               primitive.ObjectID `json:"id" bson:"_id"`
	Street           string             `json:"street" bson:"street"`
	NeighborhoodID   primitive.ObjectID `json:"neighborhood_id" bson:"neighborhood_id"`
	NeighborhoodName string             `json:"neighborhood_name" bson:"neighborhood_name"`
}
