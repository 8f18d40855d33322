package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akarpov87/userfleet/internal/logger"
	"github.com/akarpov87/userfleet/internal/models"
)

// Collection is the subset of *mongo.Collection the user service uses.
type Collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

var _ Collection = (*mongo.Collection)(nil)

// UserService implements user and car operations on top of a Mongo
// collection.
type UserService struct {
	col     Collection
	maxCars int
	log     *logger.Logger
}

func NewUserService(col Collection, maxCars int, log *logger.Logger) *UserService {
	return &UserService{
		col:     col,
		maxCars: maxCars,
		log:     log,
	}
}

// Update creates the user when data carries no id and modifies it
// otherwise. Either way the stored document is fetched again with the
// requested projection.
func (s *UserService) Update(ctx context.Context, data models.UserUpdate, fields []string) (*models.User, error) {
	if data.ID == "" {
		return s.create(ctx, data, fields)
	}

	objID, err := primitive.ObjectIDFromHex(data.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidUserID, err)
	}

	set := bson.M{}
	if data.Email != nil {
		set["email"] = *data.Email
	}
	if data.Password != nil {
		set["password"] = hashPassword(*data.Password)
	}
	if data.IsActive != nil {
		set["isActive"] = *data.IsActive
	}
	if data.IsAdmin != nil {
		set["isAdmin"] = *data.IsAdmin
	}
	if data.FirstName != nil {
		set["firstName"] = *data.FirstName
	}
	if data.LastName != nil {
		set["lastName"] = *data.LastName
	}

	if len(set) > 0 {
		_, err = s.col.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set})
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrDuplicateEmail
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	return s.findOne(ctx, bson.M{"_id": objID}, fields)
}

func (s *UserService) create(ctx context.Context, data models.UserUpdate, fields []string) (*models.User, error) {
	active, admin := true, false
	if data.IsActive != nil {
		active = *data.IsActive
	}
	if data.IsAdmin != nil {
		admin = *data.IsAdmin
	}

	user := models.User{
		ID:       primitive.NewObjectID(),
		IsActive: &active,
		IsAdmin:  &admin,
	}
	if data.Email != nil {
		user.Email = *data.Email
	}
	if data.Password != nil {
		user.Password = hashPassword(*data.Password)
	}
	if data.FirstName != nil {
		user.FirstName = *data.FirstName
	}
	if data.LastName != nil {
		user.LastName = *data.LastName
	}

	_, err := s.col.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return nil, models.ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.findOne(ctx, bson.M{"_id": user.ID}, fields)
}

// Fetch resolves criteria as an email when it contains "@" and as a
// user id otherwise. A missing user yields a nil result, not an error.
func (s *UserService) Fetch(ctx context.Context, criteria string, fields []string) (*models.User, error) {
	filter, err := lookupFilter(criteria)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, filter, fields)
}

// Count returns the number of users matching the given filters.
func (s *UserService) Count(ctx context.Context, filters models.UserFilters) (int64, error) {
	count, err := s.col.CountDocuments(ctx, prepareFilters(filters))
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Find returns the users matching the given filters. Zero skip and
// limit leave the corresponding clauses out of the query.
func (s *UserService) Find(ctx context.Context, filters models.UserFilters, fields []string, skip, limit int64) ([]models.User, error) {
	opts := options.Find()
	if proj := projection(fields); proj != nil {
		opts.SetProjection(proj)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.col.Find(ctx, prepareFilters(filters), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// CarsCount returns the size of the user's cars list, zero when the
// user or the list is absent.
func (s *UserService) CarsCount(ctx context.Context, criteria string) (int64, error) {
	filter, err := lookupFilter(criteria)
	if err != nil {
		return 0, err
	}
	return s.countCars(ctx, filter)
}

// AddCar appends a car to the user's list unless the list is already
// at the configured maximum. Store failures are logged and reported as
// a nil user.
func (s *UserService) AddCar(ctx context.Context, criteria, carID, regNumber string, fields []string) (*models.User, error) {
	filter, err := lookupFilter(criteria)
	if err != nil {
		return nil, err
	}

	count, err := s.countCars(ctx, filter)
	if err != nil {
		s.log.Error("failed to count cars", "error", err)
		return nil, nil
	}
	if count >= int64(s.maxCars) {
		return nil, models.ErrCarLimitExceeded
	}

	car := models.Car{
		ID:        primitive.NewObjectID(),
		CarID:     carID,
		RegNumber: regNumber,
	}
	res, err := s.col.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"cars": car}})
	if err != nil {
		s.log.Error("failed to add car", "error", err)
		return nil, nil
	}
	if res.ModifiedCount != 1 {
		return nil, nil
	}

	user, err := s.findOne(ctx, filter, fields)
	if err != nil {
		s.log.Error("failed to fetch user after adding car", "error", err)
		return nil, nil
	}
	return user, nil
}

// RemoveCar pulls the car with the given id from its owner's list.
// ErrInvalidCarID is returned when no user owns such a car. Store
// failures are logged and reported as a nil user.
func (s *UserService) RemoveCar(ctx context.Context, carID string, fields []string) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(carID)
	if err != nil {
		return nil, models.ErrInvalidCarID
	}

	var owner models.User
	err = s.col.FindOne(ctx, bson.M{"cars._id": objID}).Decode(&owner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrInvalidCarID
	}
	if err != nil {
		s.log.Error("failed to look up car owner", "error", err)
		return nil, nil
	}

	_, err = s.col.UpdateOne(ctx, bson.M{"_id": owner.ID}, bson.M{"$pull": bson.M{"cars": bson.M{"_id": objID}}})
	if err != nil {
		s.log.Error("failed to remove car", "error", err)
		return nil, nil
	}

	user, err := s.findOne(ctx, bson.M{"_id": owner.ID}, fields)
	if err != nil {
		s.log.Error("failed to fetch user after removing car", "error", err)
		return nil, nil
	}
	return user, nil
}

func (s *UserService) findOne(ctx context.Context, filter bson.M, fields []string) (*models.User, error) {
	opts := options.FindOne()
	if proj := projection(fields); proj != nil {
		opts.SetProjection(proj)
	}

	var user models.User
	err := s.col.FindOne(ctx, filter, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

func (s *UserService) countCars(ctx context.Context, filter bson.M) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$project", Value: bson.M{
			"count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$cars", bson.A{}}}},
		}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to count cars: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode cars count: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Count, nil
}

// lookupFilter treats criteria with an "@" as an email and anything
// else as a hex user id.
func lookupFilter(criteria string) (bson.M, error) {
	if strings.Contains(criteria, "@") {
		return bson.M{"email": criteria}, nil
	}
	objID, err := primitive.ObjectIDFromHex(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidUserID, err)
	}
	return bson.M{"_id": objID}, nil
}

// prepareFilters turns the optional filters into a Mongo query. Text
// fields match partially and case-insensitively, flags match exactly.
func prepareFilters(filters models.UserFilters) bson.M {
	query := bson.M{}
	if filters.Email != nil {
		query["email"] = primitive.Regex{Pattern: regexp.QuoteMeta(*filters.Email), Options: "i"}
	}
	if filters.FirstName != nil {
		query["firstName"] = primitive.Regex{Pattern: regexp.QuoteMeta(*filters.FirstName), Options: "i"}
	}
	if filters.LastName != nil {
		query["lastName"] = primitive.Regex{Pattern: regexp.QuoteMeta(*filters.LastName), Options: "i"}
	}
	if filters.IsActive != nil {
		query["isActive"] = *filters.IsActive
	}
	if filters.IsAdmin != nil {
		query["isAdmin"] = *filters.IsAdmin
	}
	return query
}

func projection(fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}
	proj := bson.M{}
	for _, f := range fields {
		proj[f] = 1
	}
	return proj
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
