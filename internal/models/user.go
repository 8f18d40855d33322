package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a document in the "User" collection.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Password  string             `bson:"password,omitempty" json:"password,omitempty"`
	IsActive  *bool              `bson:"isActive,omitempty" json:"isActive,omitempty"`
	IsAdmin   *bool              `bson:"isAdmin,omitempty" json:"isAdmin,omitempty"`
	FirstName string             `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string             `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Cars      []Car              `bson:"cars,omitempty" json:"cars,omitempty"`
}

// Car is a sub-document of User. IDs are assigned on insert, not taken
// from the caller.
type Car struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	CarID     string             `bson:"carId" json:"carId"`
	RegNumber string             `bson:"regNumber" json:"regNumber"`
}
