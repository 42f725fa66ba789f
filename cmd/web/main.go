package main

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/dashboard"
	"storefront/internal/models"
	"storefront/internal/order"
	"storefront/internal/promotion"
	"storefront/internal/repository"
)

type config struct {
	Addr       string        `envconfig:"ADDR" default:":4000"`
	MongoURI   string        `envconfig:"MONGO_URI" required:"true"`
	MongoDB    string        `envconfig:"MONGO_DB" default:"storefront"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	ImageDir   string        `envconfig:"IMAGE_DIR" default:"./data/images"`
}

type application struct {
	log          *logrus.Logger
	sessions     *scs.SessionManager
	store        *models.Store
	users        *repository.UserRepository
	images       *repository.ImageStore
	catalog      *catalog.Accessor
	guestCart    *cart.SessionCart
	consolidator *cart.Consolidator
	checkout     *checkout.Engine
	orders       *order.Manager
	promotions   *promotion.Assigner
	dashboard    *dashboard.Aggregator
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.WithError(err).Fatal("reading configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Fatal("connecting to mongodb")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.WithError(err).Fatal("pinging mongodb")
	}
	defer client.Disconnect(context.Background())

	store := models.NewStore(client, cfg.MongoDB)

	sessions := scs.New()
	sessions.Lifetime = cfg.SessionTTL

	cat := catalog.New(store)
	app := &application{
		log:          log,
		sessions:     sessions,
		store:        store,
		users:        &repository.UserRepository{Collection: store.Users},
		images:       &repository.ImageStore{Dir: cfg.ImageDir},
		catalog:      cat,
		guestCart:    cart.ForGuest(sessions, cat),
		consolidator: cart.NewConsolidator(store),
		checkout:     checkout.New(store, store),
		orders:       order.NewManager(store),
		promotions:   promotion.NewAssigner(store, store),
		dashboard:    dashboard.New(store),
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.WithField("addr", cfg.Addr).Info("starting server")
	log.Fatal(srv.ListenAndServe())
}
