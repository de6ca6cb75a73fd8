package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/people"
	"github.com/okian/facequiz/pkg/metrics"
)

const (
	visitorsCollection    = "visitors"
	gamesCollection       = "games"
	leaderboardCollection = "leaderboard"

	gamesCounterID = "games"
)

// MongoStore is the MongoDB-backed Store.
type MongoStore struct {
	client           *mongo.Client
	database         string
	peopleCollection string
	now              func() time.Time

	people      *mongo.Collection
	visitors    *mongo.Collection
	games       *mongo.Collection
	leaderboard *mongo.Collection
}

type personDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Name        string        `bson:"name"`
	Description string        `bson:"description,omitempty"`
	Occupation  string        `bson:"occupation,omitempty"`
	ImageURL    string        `bson:"imageUrl,omitempty"`
	Ethnicity   string        `bson:"ethnicity,omitempty"`
	NativeName  string        `bson:"nativeName,omitempty"`
	BirthDate   string        `bson:"birthDate,omitempty"`
	BirthPlace  string        `bson:"birthPlace,omitempty"`
	DeathDate   string        `bson:"deathDate,omitempty"`
	NotableWork string        `bson:"notableWork,omitempty"`
	Gender      string        `bson:"gender,omitempty"`
}

type visitorDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Address     string        `bson:"address"`
	FirstSeen   time.Time     `bson:"firstSeen"`
	CountryCode string        `bson:"countryCode,omitempty"`
}

type entryDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Name        string        `bson:"name"`
	Scored      int           `bson:"scored"`
	Total       int           `bson:"total"`
	CompletedAt time.Time     `bson:"completedAt"`
	Ratio       float64       `bson:"ratio,omitempty"`
}

type counterDoc struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

type countDoc struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// NewMongoStore connects to uri, verifies the connection and ensures indexes.
func NewMongoStore(ctx context.Context, uri string, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{
		database:         "facequiz",
		peopleCollection: "AsianPeople",
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s.client = client

	db := client.Database(s.database)
	s.people = db.Collection(s.peopleCollection)
	s.visitors = db.Collection(visitorsCollection)
	s.games = db.Collection(gamesCollection)
	s.leaderboard = db.Collection(leaderboardCollection)

	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the indexes the store relies on. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.visitors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "address", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("visitors index: %w", err)
	}
	if _, err := s.leaderboard.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}, {Key: "total", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "total", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("leaderboard indexes: %w", err)
	}
	if _, err := s.people.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ethnicity", Value: 1}},
	}); err != nil {
		return fmt.Errorf("people index: %w", err)
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *MongoStore) aggregatePeople(ctx context.Context, op string, p mongo.Pipeline) ([]model.Person, error) {
	defer observe(op, time.Now())
	cur, err := s.people.Aggregate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var docs []personDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]model.Person, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *MongoStore) RandomPeople(ctx context.Context, n int) ([]model.Person, error) {
	if n <= 0 {
		return []model.Person{}, nil
	}
	return s.aggregatePeople(ctx, "random_people", samplePipeline(nil, n))
}

func (s *MongoStore) FilterPeople(ctx context.Context, f people.Filter, limit int) ([]model.Person, error) {
	return s.aggregatePeople(ctx, "filter_people", filterPipeline(f, limit, s.now()))
}

func (s *MongoStore) SampleByEthnicity(ctx context.Context, ethnicity string, exclude bool, n int) ([]model.Person, error) {
	if n <= 0 {
		return []model.Person{}, nil
	}
	return s.aggregatePeople(ctx, "sample_by_ethnicity", ethnicityPipeline(ethnicity, exclude, n))
}

func (s *MongoStore) InsertPeople(ctx context.Context, ps []model.Person) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}
	defer observe("insert_people", time.Now())
	docs := make([]personDoc, 0, len(ps))
	for _, p := range ps {
		docs = append(docs, personFromModel(p))
	}
	res, err := s.people.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if res != nil && err != nil {
		return len(res.InsertedIDs), fmt.Errorf("insert people: %w", err)
	}
	if err != nil {
		return 0, fmt.Errorf("insert people: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (s *MongoStore) VisitorExists(ctx context.Context, address string) (bool, error) {
	defer observe("visitor_exists", time.Now())
	n, err := s.visitors.CountDocuments(ctx, bson.D{{Key: "address", Value: address}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("visitor exists: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) InsertVisitor(ctx context.Context, v model.Visitor) error {
	defer observe("insert_visitor", time.Now())
	if v.FirstSeen.IsZero() {
		v.FirstSeen = s.now()
	}
	_, err := s.visitors.InsertOne(ctx, visitorDoc{
		Address:     v.Address,
		FirstSeen:   v.FirstSeen.UTC(),
		CountryCode: v.CountryCode,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert visitor: %w", err)
	}
	return nil
}

func (s *MongoStore) VisitorCount(ctx context.Context) (int64, error) {
	defer observe("visitor_count", time.Now())
	n, err := s.visitors.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("visitor count: %w", err)
	}
	return n, nil
}

func (s *MongoStore) aggregateCounts(ctx context.Context, op string, p mongo.Pipeline) ([]countDoc, error) {
	defer observe(op, time.Now())
	cur, err := s.visitors.Aggregate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var docs []countDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}

func (s *MongoStore) VisitorsByDay(ctx context.Context) ([]model.DayCount, error) {
	docs, err := s.aggregateCounts(ctx, "visitors_by_day", visitorsByDayPipeline())
	if err != nil {
		return nil, err
	}
	out := make([]model.DayCount, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.DayCount{Date: d.Key, Count: d.Count})
	}
	return out, nil
}

func (s *MongoStore) TopCountries(ctx context.Context, n int) ([]model.CountryCount, error) {
	docs, err := s.aggregateCounts(ctx, "top_countries", topCountriesPipeline(n))
	if err != nil {
		return nil, err
	}
	out := make([]model.CountryCount, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.CountryCount{CountryCode: d.Key, Count: d.Count})
	}
	return out, nil
}

func (s *MongoStore) IncrementGames(ctx context.Context) (int64, error) {
	defer observe("increment_games", time.Now())
	var doc counterDoc
	err := s.games.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: gamesCounterID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "count", Value: 1}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("increment games: %w", err)
	}
	return doc.Count, nil
}

func (s *MongoStore) GameCount(ctx context.Context) (int64, error) {
	defer observe("game_count", time.Now())
	var doc counterDoc
	err := s.games.FindOne(ctx, bson.D{{Key: "_id", Value: gamesCounterID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("game count: %w", err)
	}
	return doc.Count, nil
}

func (s *MongoStore) InsertEntry(ctx context.Context, e model.LeaderboardEntry) (model.LeaderboardEntry, error) {
	defer observe("insert_entry", time.Now())
	if e.CompletedAt.IsZero() {
		e.CompletedAt = s.now()
	}
	doc := entryDoc{
		ID:          bson.NewObjectID(),
		Name:        e.Name,
		Scored:      e.Scored,
		Total:       e.Total,
		CompletedAt: e.CompletedAt.UTC(),
	}
	_, err := s.leaderboard.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return model.LeaderboardEntry{}, ErrConflict
	}
	if err != nil {
		return model.LeaderboardEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	e.ID = doc.ID.Hex()
	e.CompletedAt = doc.CompletedAt
	return e, nil
}

func (s *MongoStore) TopEntries(ctx context.Context, total, k int) ([]model.RankedEntry, error) {
	if total <= 0 {
		return []model.RankedEntry{}, nil
	}
	defer observe("top_entries", time.Now())
	cur, err := s.leaderboard.Aggregate(ctx, topEntriesPipeline(total, k))
	if err != nil {
		return nil, fmt.Errorf("top entries: %w", err)
	}
	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("top entries: %w", err)
	}
	out := make([]model.RankedEntry, 0, len(docs))
	for i, d := range docs {
		out = append(out, model.RankedEntry{
			LeaderboardEntry: d.toModel(),
			Ratio:            d.Ratio,
			Rank:             i + 1,
		})
	}
	return out, nil
}

func (s *MongoStore) Totals(ctx context.Context) ([]int, error) {
	defer observe("totals", time.Now())
	cur, err := s.leaderboard.Aggregate(ctx, totalsPipeline())
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	var docs []struct {
		Total int `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	out := make([]int, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Total)
	}
	return out, nil
}

func (s *MongoStore) DeleteEntries(ctx context.Context, ids []string) (int64, error) {
	oids := bson.A{}
	for _, id := range ids {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return 0, nil
	}
	defer observe("delete_entries", time.Now())
	res, err := s.leaderboard.DeleteMany(ctx, bson.D{
		{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}},
	})
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteUnrankable(ctx context.Context) (int64, error) {
	defer observe("delete_unrankable", time.Now())
	res, err := s.leaderboard.DeleteMany(ctx, bson.D{
		{Key: "total", Value: bson.D{{Key: "$lte", Value: 0}}},
	})
	if err != nil {
		return 0, fmt.Errorf("delete unrankable: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (d personDoc) toModel() model.Person {
	p := model.Person{
		Name:        d.Name,
		Description: d.Description,
		Occupation:  d.Occupation,
		ImageURL:    d.ImageURL,
		Ethnicity:   d.Ethnicity,
		NativeName:  d.NativeName,
		BirthDate:   d.BirthDate,
		BirthPlace:  d.BirthPlace,
		DeathDate:   d.DeathDate,
		NotableWork: d.NotableWork,
		Gender:      d.Gender,
	}
	if !d.ID.IsZero() {
		p.ID = d.ID.Hex()
	}
	return p
}

func personFromModel(p model.Person) personDoc {
	d := personDoc{
		Name:        p.Name,
		Description: p.Description,
		Occupation:  p.Occupation,
		ImageURL:    p.ImageURL,
		Ethnicity:   p.Ethnicity,
		NativeName:  p.NativeName,
		BirthDate:   p.BirthDate,
		BirthPlace:  p.BirthPlace,
		DeathDate:   p.DeathDate,
		NotableWork: p.NotableWork,
		Gender:      p.Gender,
	}
	if oid, err := bson.ObjectIDFromHex(p.ID); err == nil {
		d.ID = oid
	}
	return d
}

func (d entryDoc) toModel() model.LeaderboardEntry {
	return model.LeaderboardEntry{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Scored:      d.Scored,
		Total:       d.Total,
		CompletedAt: d.CompletedAt,
	}
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
