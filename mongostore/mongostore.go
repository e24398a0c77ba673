// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"gigmarket/db"
	"gigmarket/models"
	"gigmarket/store"
)

type Store struct {
	client *mongo.Client
	gigs   *mongo.Collection
	bids   *mongo.Collection
	users  *mongo.Collection
}

var _ store.Store = (*Store)(nil)

func New(client *mongo.Client, database string) *Store {
	d := client.Database(database)
	return &Store{
		client: client,
		gigs:   d.Collection(db.GigsCollection),
		bids:   d.Collection(db.BidsCollection),
		users:  d.Collection(db.UsersCollection),
	}
}

// EnsureIndexes creates the unique and search indexes the services rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	bidIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "gigId", Value: 1}, {Key: "freelancerId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_gig_freelancer"),
		},
		{
			Keys:    bson.D{{Key: "gigId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("gig_status"),
		},
		{
			Keys:    bson.D{{Key: "freelancerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("freelancer_recent"),
		},
	}
	if _, err := s.bids.Indexes().CreateMany(ctx, bidIdx); err != nil {
		return fmt.Errorf("bid indexes: %w", err)
	}

	gigIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}},
			Options: options.Index().SetName("gig_text"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_recent"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("owner_recent"),
		},
	}
	if _, err := s.gigs.Indexes().CreateMany(ctx, gigIdx); err != nil {
		return fmt.Errorf("gig indexes: %w", err)
	}

	userIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_email"),
	}
	if _, err := s.users.Indexes().CreateOne(ctx, userIdx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	return nil
}

// --- transactions ---------------------------------------------------------

func (s *Store) WithTransaction(ctx context.Context, fn store.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	// Operations issued with sc join the session's transaction, so the
	// store's own methods serve as the transactional writer.
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	}, txnOpts)
	return translate(err)
}

func (s *Store) SupportsTransactions(ctx context.Context) (bool, error) {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	err := s.client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		return false, fmt.Errorf("hello: %w", err)
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid", nil
}

// --- hire writes ------------------------------------------------------------

func (s *Store) AssignGigIfOpen(ctx context.Context, gigID, bidID primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.gigs.UpdateOne(ctx,
		bson.M{"_id": gigID, "status": models.GigOpen},
		bson.M{"$set": bson.M{"status": models.GigAssigned, "hiredBidId": bidID, "updatedAt": at}},
	)
	if err != nil {
		return false, translate(err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) MarkBidHired(ctx context.Context, bidID primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.bids.UpdateOne(ctx,
		bson.M{"_id": bidID, "status": models.BidPending},
		bson.M{"$set": bson.M{"status": models.BidHired, "updatedAt": at}},
	)
	if err != nil {
		return false, translate(err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) RejectPendingBids(ctx context.Context, gigID, keep primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.bids.UpdateMany(ctx,
		bson.M{"gigId": gigID, "_id": bson.M{"$ne": keep}, "status": models.BidPending},
		bson.M{"$set": bson.M{"status": models.BidRejected, "updatedAt": at}},
	)
	if err != nil {
		return 0, translate(err)
	}
	return res.ModifiedCount, nil
}

// --- gigs -------------------------------------------------------------------

func (s *Store) InsertGig(ctx context.Context, gig *models.Gig) error {
	if gig.ID.IsZero() {
		gig.ID = primitive.NewObjectID()
	}
	_, err := s.gigs.InsertOne(ctx, gig)
	return translate(err)
}

func (s *Store) FindGig(ctx context.Context, id primitive.ObjectID) (*models.Gig, error) {
	var g models.Gig
	if err := s.gigs.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *Store) FindGigView(ctx context.Context, id primitive.ObjectID) (*models.GigView, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}
	pipeline = append(pipeline, lookupOne(db.UsersCollection, "ownerId", "owner", userSummaryFields)...)

	var out []models.GigView
	if err := s.aggregate(ctx, s.gigs, pipeline, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) SearchOpenGigs(ctx context.Context, query string) ([]models.GigView, error) {
	match := bson.M{"status": models.GigOpen}
	if q := strings.TrimSpace(query); q != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		match["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	pipeline = append(pipeline, lookupOne(db.UsersCollection, "ownerId", "owner", userSummaryFields)...)

	out := []models.GigView{}
	if err := s.aggregate(ctx, s.gigs, pipeline, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListGigsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Gig, error) {
	cursor, err := s.gigs.Find(ctx, bson.M{"ownerId": ownerID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	out := []models.Gig{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) GigsNeedingRepair(ctx context.Context) ([]models.Gig, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.GigAssigned, "hiredBidId": bson.M{"$exists": true}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": db.BidsCollection,
			"let":  bson.M{"gig": "$_id", "hired": "$hiredBidId"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$gigId", "$$gig"}},
					bson.M{"$or": bson.A{
						bson.M{"$eq": bson.A{"$status", models.BidPending}},
						bson.M{"$and": bson.A{
							bson.M{"$eq": bson.A{"$_id", "$$hired"}},
							bson.M{"$ne": bson.A{"$status", models.BidHired}},
						}},
					}},
				}}}},
				bson.M{"$limit": 1},
			},
			"as": "stale",
		}}},
		{{Key: "$match", Value: bson.M{"stale.0": bson.M{"$exists": true}}}},
		{{Key: "$project", Value: bson.M{"stale": 0}}},
	}

	out := []models.Gig{}
	if err := s.aggregate(ctx, s.gigs, pipeline, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- bids -------------------------------------------------------------------

func (s *Store) InsertBid(ctx context.Context, bid *models.Bid) error {
	if bid.ID.IsZero() {
		bid.ID = primitive.NewObjectID()
	}
	_, err := s.bids.InsertOne(ctx, bid)
	return translate(err)
}

func (s *Store) FindBid(ctx context.Context, id primitive.ObjectID) (*models.Bid, error) {
	var b models.Bid
	if err := s.bids.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *Store) FindBidByGigAndFreelancer(ctx context.Context, gigID, freelancerID primitive.ObjectID) (*models.Bid, error) {
	var b models.Bid
	err := s.bids.FindOne(ctx, bson.M{"gigId": gigID, "freelancerId": freelancerID}).Decode(&b)
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *Store) FindBidView(ctx context.Context, id primitive.ObjectID) (*models.BidView, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}
	pipeline = append(pipeline, lookupOne(db.UsersCollection, "freelancerId", "freelancer", userSummaryFields)...)
	pipeline = append(pipeline, lookupOne(db.GigsCollection, "gigId", "gig", gigSummaryFields)...)

	var out []models.BidView
	if err := s.aggregate(ctx, s.bids, pipeline, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) ListBidsForGig(ctx context.Context, gigID primitive.ObjectID) ([]models.BidView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"gigId": gigID}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	pipeline = append(pipeline, lookupOne(db.UsersCollection, "freelancerId", "freelancer", userSummaryFields)...)

	out := []models.BidView{}
	if err := s.aggregate(ctx, s.bids, pipeline, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListBidsByFreelancer(ctx context.Context, freelancerID primitive.ObjectID) ([]models.BidView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"freelancerId": freelancerID}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	pipeline = append(pipeline, lookupOne(db.GigsCollection, "gigId", "gig", gigSummaryFields)...)

	out := []models.BidView{}
	if err := s.aggregate(ctx, s.bids, pipeline, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- users ------------------------------------------------------------------

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.users.InsertOne(ctx, user)
	return translate(err)
}

func (s *Store) FindUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// --- helpers ----------------------------------------------------------------

var (
	userSummaryFields = []string{"name", "email"}
	gigSummaryFields  = []string{"title", "budget", "status"}
)

// lookupOne joins the document referenced by localField into as, keeping only
// _id and fields. A dangling reference leaves as unset.
func lookupOne(from, localField, as string, fields []string) []bson.D {
	project := bson.M{"_id": 1}
	for _, f := range fields {
		project[f] = 1
	}
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from": from,
			"let":  bson.M{"ref": "$" + localField},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$ref"}}}},
				bson.M{"$project": project},
			},
			"as": as,
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$" + as, "preserveNullAndEmptyArrays": true}}},
	}
}

func (s *Store) aggregate(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, out any) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return translate(err)
	}
	defer cursor.Close(ctx)
	return translate(cursor.All(ctx, out))
}
