package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/crumbcraft/bakehouse-golang/internal/checkout"
	"github.com/crumbcraft/bakehouse-golang/internal/database"
	"github.com/crumbcraft/bakehouse-golang/internal/handlers"
	"github.com/crumbcraft/bakehouse-golang/internal/notify"
	"github.com/crumbcraft/bakehouse-golang/internal/orders"
	"github.com/crumbcraft/bakehouse-golang/internal/payment"
	"github.com/crumbcraft/bakehouse-golang/internal/reconcile"
	"github.com/crumbcraft/bakehouse-golang/internal/routes"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	// 1. --- Database Connection ---
	// The DSN must carry parseTime=true so DATETIME columns scan into time.Time.
	db, err := database.OpenDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, "migrations"); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// 2. --- Redis Connection (checkout sessions + guest carts) ---
	rdb, err := database.OpenRedis()
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	// 3. --- Payment Gateway ---
	gateway, err := payment.NewGateway(os.Getenv("RAZORPAY_KEY_ID"), os.Getenv("RAZORPAY_KEY_SECRET"))
	if err != nil {
		log.Fatalf("Failed to initialize payment gateway: %v", err)
	}

	// 4. --- Order Events (RabbitMQ) ---
	// Optional: without a broker URL events are logged and dropped.
	var events notify.Publisher = notify.NopPublisher{}
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		publisher, err := notify.NewAMQPPublisher(url)
		if err != nil {
			log.Fatalf("Failed to connect to rabbitmq: %v", err)
		}
		defer publisher.Close()
		events = publisher
	}

	// --- Application Setup ---
	sessions := checkout.NewStore(rdb)
	orderRepo := orders.NewSQLRepository(db)
	materializer := orders.NewMaterializer(sessions, orderRepo, events)

	app := &handlers.Handlers{
		DB:         db,
		Sessions:   sessions,
		GuestCarts: checkout.NewGuestCartStore(rdb),
		Gateway:    gateway,
		Orders:     materializer,
		OrderRepo:  orderRepo,
		Reconciler: reconcile.NewManager(),
		Events:     events,
	}

	// --- 5. Background Worker ---
	// Sweeps sessions stuck in 'processing' and asks Razorpay whether the
	// payment actually went through; captured payments become orders even
	// when the customer's browser never came back.
	worker := reconcile.NewWorker(sessions, gateway, materializer)
	go worker.Run(context.Background())

	// --- Router Setup ---
	router := routes.SetupRouter(app)

	// --- Start Server ---
	log.Println("Starting Bakehouse API server on port 8080...")
	if err := router.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
