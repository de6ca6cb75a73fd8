package repository

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/okian/facequiz/internal/domain/people"
)

// Aggregation builders are pure so they can be tested without a server.

func samplePipeline(match bson.D, n int) mongo.Pipeline {
	p := mongo.Pipeline{}
	if len(match) > 0 {
		p = append(p, bson.D{{Key: "$match", Value: match}})
	}
	return append(p, bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: n}}}})
}

func personMatch(f people.Filter, now time.Time) bson.D {
	match := bson.D{}
	if f.Name != "" {
		match = append(match, bson.E{Key: "name", Value: f.Name})
	}
	if f.Ethnicity != "" {
		match = append(match, bson.E{Key: "ethnicity", Value: f.Ethnicity})
	}
	if f.Gender != "" {
		match = append(match, bson.E{Key: "gender", Value: f.Gender})
	}
	if len(f.Occupations) > 0 {
		in := bson.A{}
		for _, o := range f.Occupations {
			in = append(in, bson.Regex{Pattern: "^" + regexp.QuoteMeta(o) + "$", Options: "i"})
		}
		match = append(match, bson.E{Key: "occupation", Value: bson.D{{Key: "$in", Value: in}}})
	}
	if f.HasAge() {
		r := f.BirthDateRange(now)
		cond := bson.D{{Key: "$regex", Value: people.BirthDatePattern}}
		if r.From != "" {
			cond = append(cond, bson.E{Key: "$gte", Value: r.From})
		}
		if r.To != "" {
			cond = append(cond, bson.E{Key: "$lte", Value: r.To})
		}
		match = append(match, bson.E{Key: "birthDate", Value: cond})
	}
	return match
}

func filterPipeline(f people.Filter, limit int, now time.Time) mongo.Pipeline {
	match := personMatch(f, now)
	if limit > 0 {
		return samplePipeline(match, limit)
	}
	return mongo.Pipeline{bson.D{{Key: "$match", Value: match}}}
}

func ethnicityPipeline(ethnicity string, exclude bool, n int) mongo.Pipeline {
	var cond any = ethnicity
	if exclude {
		cond = bson.D{{Key: "$ne", Value: ethnicity}}
	}
	return samplePipeline(bson.D{{Key: "ethnicity", Value: cond}}, n)
}

func visitorsByDayPipeline() mongo.Pipeline {
	day := bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "format", Value: "%Y-%m-%d"},
		{Key: "date", Value: "$firstSeen"},
		{Key: "timezone", Value: "UTC"},
	}}}
	return mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: day},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func topCountriesPipeline(n int) mongo.Pipeline {
	p := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "countryCode", Value: bson.D{{Key: "$nin", Value: bson.A{nil, ""}}}},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$countryCode"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if n > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: n}})
	}
	return p
}

// topEntriesPipeline orders a partition by ratio, then by insertion order.
func topEntriesPipeline(total, k int) mongo.Pipeline {
	p := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "total", Value: total}}}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "ratio", Value: bson.D{{Key: "$divide", Value: bson.A{"$scored", "$total"}}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "ratio", Value: -1},
			{Key: "completedAt", Value: 1},
			{Key: "_id", Value: 1},
		}}},
	}
	if k > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: k}})
	}
	return p
}

func totalsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "total", Value: bson.D{{Key: "$gt", Value: 0}}}}}},
		bson.D{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$total"}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}
