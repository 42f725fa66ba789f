package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderLineDoc struct {
	ProductID   primitive.ObjectID   `bson:"product_id"`
	ProductName string               `bson:"product_name"`
	Price       primitive.Decimal128 `bson:"price"`
	Quantity    int                  `bson:"quantity"`
}

type orderDoc struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty"`
	Email           string               `bson:"email"`
	FullName        string               `bson:"full_name"`
	Phone           string               `bson:"phone"`
	Province        string               `bson:"province"`
	District        string               `bson:"district"`
	Ward            string               `bson:"ward"`
	SpecificAddress string               `bson:"specific_address"`
	OrderDate       time.Time            `bson:"order_date"`
	TotalAmount     primitive.Decimal128 `bson:"total_amount"`
	Status          OrderStatus          `bson:"status"`
	PaymentMethod   string               `bson:"payment_method"`
	PaymentStatus   PaymentStatus        `bson:"payment_status"`
	TransactionID   string               `bson:"transaction_id,omitempty"`
	Lines           []orderLineDoc       `bson:"lines"`
}

func (d *orderDoc) order() *Order {
	o := &Order{
		ID:              d.ID,
		Email:           d.Email,
		FullName:        d.FullName,
		Phone:           d.Phone,
		Province:        d.Province,
		District:        d.District,
		Ward:            d.Ward,
		SpecificAddress: d.SpecificAddress,
		OrderDate:       d.OrderDate,
		TotalAmount:     fromDecimal128(d.TotalAmount),
		Status:          d.Status,
		PaymentMethod:   d.PaymentMethod,
		PaymentStatus:   d.PaymentStatus,
		TransactionID:   d.TransactionID,
	}
	for _, l := range d.Lines {
		o.Lines = append(o.Lines, OrderLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       fromDecimal128(l.Price),
			Quantity:    l.Quantity,
		})
	}
	return o
}

func orderToDoc(o *Order) orderDoc {
	doc := orderDoc{
		ID:              o.ID,
		Email:           o.Email,
		FullName:        o.FullName,
		Phone:           o.Phone,
		Province:        o.Province,
		District:        o.District,
		Ward:            o.Ward,
		SpecificAddress: o.SpecificAddress,
		OrderDate:       o.OrderDate,
		TotalAmount:     toDecimal128(o.TotalAmount),
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		TransactionID:   o.TransactionID,
	}
	for _, l := range o.Lines {
		doc.Lines = append(doc.Lines, orderLineDoc{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       toDecimal128(l.Price),
			Quantity:    l.Quantity,
		})
	}
	return doc
}

// InsertOrder persists the order together with its line snapshots in one
// document write.
func (s *Store) InsertOrder(ctx context.Context, o *Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := s.Orders.InsertOne(ctx, orderToDoc(o))
	return err
}

func (s *Store) GetOrder(ctx context.Context, id primitive.ObjectID) (*Order, error) {
	var doc orderDoc
	if err := s.Orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.order(), nil
}

func (s *Store) findOrders(ctx context.Context, filter bson.M) ([]*Order, error) {
	cur, err := s.Orders.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "order_date", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	orders := make([]*Order, len(docs))
	for i := range docs {
		orders[i] = docs[i].order()
	}
	return orders, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]*Order, error) {
	return s.findOrders(ctx, bson.M{})
}

func (s *Store) OrdersByEmail(ctx context.Context, email string) ([]*Order, error) {
	return s.findOrders(ctx, bson.M{"email": email})
}

// OrdersBetween returns orders with order_date in the half-open range
// [from, to).
func (s *Store) OrdersBetween(ctx context.Context, from, to time.Time) ([]*Order, error) {
	return s.findOrders(ctx, bson.M{"order_date": bson.M{"$gte": from, "$lt": to}})
}

func patchUpdate(patch OrderPatch) bson.M {
	set := bson.M{"status": patch.Status}
	if patch.PaymentStatus != "" {
		set["payment_status"] = patch.PaymentStatus
	}
	if patch.TransactionID != nil {
		set["transaction_id"] = *patch.TransactionID
	}
	return bson.M{"$set": set}
}

// classifyMiss distinguishes a vanished document from a failed precondition
// after an update matched nothing.
func (s *Store) classifyMiss(ctx context.Context, id primitive.ObjectID) (WriteResult, error) {
	n, err := s.Orders.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return WriteNotFound, err
	}
	if n == 0 {
		return WriteNotFound, nil
	}
	return WriteConflict, nil
}

// UpdateOrderStatusIf applies patch only while the order's status is one of
// from. The precondition is part of the update filter, so it holds at commit
// time.
func (s *Store) UpdateOrderStatusIf(ctx context.Context, id primitive.ObjectID, from []OrderStatus, patch OrderPatch) (WriteResult, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	res, err := s.Orders.UpdateOne(ctx, filter, patchUpdate(patch))
	if err != nil {
		return WriteNotFound, err
	}
	if res.MatchedCount == 0 {
		return s.classifyMiss(ctx, id)
	}
	return WriteOK, nil
}

// UpdateOrderUnlessRefunded applies patch only while the order has not been
// refunded. Refunded orders are frozen for the seller update path.
func (s *Store) UpdateOrderUnlessRefunded(ctx context.Context, id primitive.ObjectID, patch OrderPatch) (WriteResult, error) {
	filter := bson.M{"_id": id, "payment_status": bson.M{"$ne": PaymentRefunded}}
	res, err := s.Orders.UpdateOne(ctx, filter, patchUpdate(patch))
	if err != nil {
		return WriteNotFound, err
	}
	if res.MatchedCount == 0 {
		return s.classifyMiss(ctx, id)
	}
	return WriteOK, nil
}
