package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store wraps the Mongo collections the application reads and writes.
type Store struct {
	client *mongo.Client

	Products   *mongo.Collection
	Promotions *mongo.Collection
	Orders     *mongo.Collection
	Carts      *mongo.Collection
	Reviews    *mongo.Collection
	Users      *mongo.Collection
}

func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:     client,
		Products:   db.Collection("products"),
		Promotions: db.Collection("promotions"),
		Orders:     db.Collection("orders"),
		Carts:      db.Collection("carts"),
		Reviews:    db.Collection("reviews"),
		Users:      db.Collection("users"),
	}
}

// WithTransaction runs fn inside a single Mongo transaction. The context
// passed to fn carries the session and must be used for every store call
// that belongs to the same atomic unit.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Money is stored as Decimal128 so no precision is lost in the database.

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// --- Products ---

type productDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Name        string               `bson:"name"`
	Description string               `bson:"description,omitempty"`
	Price       primitive.Decimal128 `bson:"price"`
	ImageURL    string               `bson:"image_url,omitempty"`
	Category    string               `bson:"category,omitempty"`
	Brand       string               `bson:"brand,omitempty"`
	Stock       int                  `bson:"stock"`
	PromotionID *primitive.ObjectID  `bson:"promotion_id,omitempty"`
	CreatedAt   time.Time            `bson:"created_at"`
}

func (d *productDoc) product() *Product {
	return &Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       fromDecimal128(d.Price),
		ImageURL:    d.ImageURL,
		Category:    d.Category,
		Brand:       d.Brand,
		Stock:       d.Stock,
		PromotionID: d.PromotionID,
		CreatedAt:   d.CreatedAt,
	}
}

func productToDoc(p *Product) productDoc {
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       toDecimal128(p.Price),
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Brand:       p.Brand,
		Stock:       p.Stock,
		PromotionID: p.PromotionID,
		CreatedAt:   p.CreatedAt,
	}
}

func (s *Store) GetProduct(ctx context.Context, id primitive.ObjectID) (*Product, error) {
	var doc productDoc
	if err := s.Products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.product(), nil
}

func (s *Store) ProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*Product, error) {
	out := make(map[primitive.ObjectID]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.Products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		out[docs[i].ID] = docs[i].product()
	}
	return out, nil
}

// ProductFilter narrows and orders the catalog listing.
type ProductFilter struct {
	Search   string
	Category string
	Brand    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// Sort is one of "price_asc", "price_desc", "newest".
	Sort string
}

func (s *Store) FilterProducts(ctx context.Context, f ProductFilter) ([]*Product, error) {
	filter := bson.M{}
	if f.Search != "" {
		filter["name"] = bson.M{"$regex": f.Search, "$options": "i"}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Brand != "" {
		filter["brand"] = f.Brand
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = toDecimal128(*f.MinPrice)
	}
	if f.MaxPrice != nil {
		price["$lte"] = toDecimal128(*f.MaxPrice)
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	sort := bson.D{{Key: "created_at", Value: -1}}
	switch f.Sort {
	case "price_asc":
		sort = bson.D{{Key: "price", Value: 1}}
	case "price_desc":
		sort = bson.D{{Key: "price", Value: -1}}
	}

	cur, err := s.Products.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	products := make([]*Product, len(docs))
	for i := range docs {
		products[i] = docs[i].product()
	}
	return products, nil
}

func (s *Store) InsertProduct(ctx context.Context, p *Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.Products.InsertOne(ctx, productToDoc(p))
	return err
}

func (s *Store) UpdateProduct(ctx context.Context, p *Product) error {
	doc := productToDoc(p)
	res, err := s.Products.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.Products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	res, err := s.Products.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"stock": quantity}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock lowers stock by qty with no floor; oversold stock goes
// negative at checkout.
func (s *Store) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	res, err := s.Products.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": -qty}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ProductsByPromotion(ctx context.Context, promoID primitive.ObjectID) ([]*Product, error) {
	cur, err := s.Products.Find(ctx, bson.M{"promotion_id": promoID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	products := make([]*Product, len(docs))
	for i := range docs {
		products[i] = docs[i].product()
	}
	return products, nil
}

func (s *Store) SetProductPromotion(ctx context.Context, productID, promoID primitive.ObjectID) error {
	res, err := s.Products.UpdateOne(ctx, bson.M{"_id": productID},
		bson.M{"$set": bson.M{"promotion_id": promoID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ClearProductPromotion(ctx context.Context, productID primitive.ObjectID) error {
	_, err := s.Products.UpdateOne(ctx, bson.M{"_id": productID},
		bson.M{"$unset": bson.M{"promotion_id": ""}})
	return err
}

// --- Promotions ---

func (s *Store) GetPromotion(ctx context.Context, id primitive.ObjectID) (*Promotion, error) {
	var p Promotion
	if err := s.Promotions.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ListPromotions(ctx context.Context) ([]*Promotion, error) {
	cur, err := s.Promotions.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var promos []*Promotion
	err = cur.All(ctx, &promos)
	return promos, err
}

func (s *Store) InsertPromotion(ctx context.Context, p *Promotion) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.Promotions.InsertOne(ctx, p)
	return err
}

func (s *Store) UpdatePromotion(ctx context.Context, p *Promotion) error {
	res, err := s.Promotions.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePromotion(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.Promotions.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearPromotionLinks detaches every product still pointing at the promotion.
func (s *Store) ClearPromotionLinks(ctx context.Context, promoID primitive.ObjectID) error {
	_, err := s.Products.UpdateMany(ctx, bson.M{"promotion_id": promoID},
		bson.M{"$unset": bson.M{"promotion_id": ""}})
	return err
}

// --- Reviews ---

// UpsertReview stores r, replacing any earlier review by the same user for
// the same product.
func (s *Store) UpsertReview(ctx context.Context, r *Review) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	filter := bson.M{"product_id": r.ProductID, "user_name": r.UserName}
	update := bson.M{"$set": bson.M{
		"rating":     r.Rating,
		"comment":    r.Comment,
		"created_at": r.CreatedAt,
	}}
	_, err := s.Reviews.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *Store) GetReviews(ctx context.Context, productID primitive.ObjectID) ([]*Review, error) {
	cur, err := s.Reviews.Find(ctx, bson.M{"product_id": productID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var reviews []*Review
	err = cur.All(ctx, &reviews)
	return reviews, err
}
