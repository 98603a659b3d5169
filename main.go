package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/controllers"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/realtime"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config.SetupLogger(cfg)
	log.WithField("env", cfg.GoEnv).Info("Starting Autoshop CRM API server...")

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := config.GetDB().AutoMigrate(models.All()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Info("Database migration completed successfully")

	publisher := setupCollaborators(cfg)
	defer publisher.Close()

	hub := realtime.NewHub()
	defer hub.Close()
	services.SetBroadcaster(hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.EnableScheduler {
		predictor := services.NewMileagePredictor(config.GetDB(), services.GetNotifier(), services.PredictorOptions{
			LookaheadDays: cfg.ReminderLookaheadDays,
			MinVisits:     cfg.MinVisitsForPrediction,
		})
		scheduler := services.NewReminderScheduler(predictor, cfg.ReminderCheckHour)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Server is running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// setupCollaborators installs the process-wide notifier, object store and
// invoice renderer. Without a broker or bucket it falls back to the log
// publisher and the local upload directory.
func setupCollaborators(cfg *config.Config) services.Publisher {
	var publisher services.Publisher = services.LogPublisher{}
	if cfg.MQTTBrokerURL != "" {
		p, err := services.NewMQTTPublisher(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.WithError(err).Warn("MQTT unavailable, notifications will only be logged")
		} else {
			publisher = p
		}
	}
	services.SetNotifier(services.NewNotificationService(config.GetDB(), publisher, cfg.MQTTTopicPrefix))

	var store services.ObjectStore
	if cfg.AWSS3Bucket != "" {
		s, err := services.InitS3Service(cfg)
		if err != nil {
			log.WithError(err).Warn("S3 unavailable, storing files locally")
		} else {
			store = s
		}
	}
	if store == nil {
		utils.UploadDir = cfg.UploadDir
		store = services.NewLocalStore(cfg.UploadDir)
	}
	services.SetObjectStore(store)
	services.InitImageService(store)
	services.SetInvoiceRenderer(services.FPDFRenderer{})
	return publisher
}

func setupRouter(cfg *config.Config, hub *realtime.Hub) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	frontDesk := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleManager, models.RoleReceptionist)
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleManager, models.RoleReceptionist, models.RoleMechanic)
	managers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleManager)
	mechanics := middleware.RequireRoles(models.RoleMechanic)
	customers := middleware.RequireRoles(models.RoleCustomer)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", controllers.HealthCheck)
		v1.GET("/database/status", controllers.DatabaseStatus)
		v1.GET("/uploads/:filename", controllers.GetUploadedFile)
		v1.POST("/auth/customer/login", controllers.CustomerLogin)
	}

	protected := v1.Group("")
	protected.Use(middleware.EnsureValidToken(cfg), middleware.ResolveTenant())
	{
		protected.GET("/auth/me", controllers.WhoAmI)
		protected.GET("/ws/board", staff, controllers.WorkshopBoard(hub))

		admin := protected.Group("/admin", middleware.RequireRoles(models.RoleSuperAdmin))
		admin.POST("/shops", controllers.CreateShop)
		admin.GET("/shops", controllers.ListShops)
		admin.PATCH("/shops/:id/active", controllers.SetShopActive)

		protected.GET("/shop", controllers.GetMyShop)
		protected.PATCH("/shop", managers, controllers.UpdateMyShop)

		protected.POST("/staff", managers, controllers.CreateStaff)
		protected.GET("/staff", staff, controllers.ListStaff)
		protected.PATCH("/staff/:id/active", managers, controllers.SetStaffActive)

		protected.GET("/customers/me", customers, controllers.GetMyProfile)
		protected.PATCH("/customers/me", customers, controllers.UpdateMyProfile)
		protected.PUT("/customers/me/consent", customers, controllers.SetMyConsent)
		protected.PUT("/customers/me/password", customers, controllers.ChangeMyPassword)
		protected.POST("/customers", frontDesk, controllers.RegisterCustomer)
		protected.GET("/customers", frontDesk, controllers.ListCustomers)
		protected.GET("/customers/:id", frontDesk, controllers.GetCustomer)
		protected.PATCH("/customers/:id", frontDesk, controllers.UpdateCustomer)
		protected.DELETE("/customers/:id", managers, controllers.DeactivateCustomer)

		protected.POST("/cars", frontDesk, controllers.RegisterCar)
		protected.GET("/cars", controllers.ListCars)
		protected.GET("/cars/:id", controllers.GetCar)
		protected.PATCH("/cars/:id", frontDesk, controllers.UpdateCar)
		protected.DELETE("/cars/:id", managers, controllers.DeleteCar)
		protected.PUT("/cars/:id/mileage", staff, controllers.UpdateCarMileage)
		protected.POST("/cars/:id/transfer", frontDesk, controllers.TransferCar)
		protected.GET("/cars/:id/history", frontDesk, controllers.GetCarOwnershipHistory)
		protected.GET("/cars/:id/service-history", controllers.GetCarServiceHistory)
		protected.POST("/cars/:id/photos", staff, controllers.UploadCarPhoto)
		protected.GET("/cars/:id/photos", controllers.ListCarPhotos)
		protected.DELETE("/cars/:id/photos/:photoId", frontDesk, controllers.DeleteCarPhoto)

		protected.POST("/work-orders", frontDesk, controllers.CreateWorkOrder)
		protected.GET("/work-orders", controllers.ListWorkOrders)
		protected.GET("/work-orders/my-tasks", mechanics, controllers.ListMyTasks)
		protected.GET("/work-orders/:id", controllers.GetWorkOrder)
		protected.PATCH("/work-orders/:id/status", staff, controllers.ChangeWorkOrderStatus)
		protected.PATCH("/work-orders/:id/notes", staff, controllers.UpdateWorkOrderNotes)
		protected.POST("/work-orders/:id/line-items", staff, controllers.AddLineItem)
		protected.DELETE("/work-orders/:id/line-items/:itemId", staff, controllers.RemoveLineItem)
		protected.POST("/work-orders/:id/reassign", frontDesk, controllers.ReassignWorkOrder)
		protected.GET("/work-orders/:id/assignments", staff, controllers.GetAssignmentHistory)

		protected.POST("/appointments", controllers.RequestAppointment)
		protected.GET("/appointments", controllers.ListAppointments)
		protected.GET("/appointments/pending", frontDesk, controllers.ListPendingAppointments)
		protected.GET("/appointments/:id", controllers.GetAppointment)
		protected.POST("/appointments/:id/confirm", frontDesk, controllers.ConfirmAppointment)
		protected.POST("/appointments/:id/reject", frontDesk, controllers.RejectAppointment)
		protected.PUT("/appointments/:id/car", frontDesk, controllers.AttachAppointmentCar)
		protected.POST("/appointments/:id/convert", frontDesk, controllers.ConvertAppointment)
		protected.DELETE("/appointments/:id", controllers.CancelAppointment)

		protected.POST("/invoices/from-work-order", frontDesk, controllers.CreateInvoice)
		protected.GET("/invoices", controllers.ListInvoices)
		protected.GET("/invoices/:id", controllers.GetInvoice)
		protected.POST("/invoices/:id/finalize", frontDesk, controllers.FinalizeInvoice)
		protected.POST("/invoices/:id/pay", frontDesk, controllers.PayInvoice)
		protected.GET("/invoices/:id/pdf", controllers.DownloadInvoicePDF)
		protected.GET("/invoices/:id/pdf-url", controllers.GetInvoicePDFURL)

		protected.POST("/reminders/evaluate", managers, controllers.EvaluateReminders)
		protected.GET("/reminders", frontDesk, controllers.ListReminders)
		protected.GET("/sms-logs", managers, controllers.ListSMSLogs)

		reports := protected.Group("/reports", managers)
		reports.GET("/dashboard", controllers.GetDashboard)
		reports.GET("/revenue", controllers.GetRevenueReport)
		reports.GET("/popular-services", controllers.GetPopularServices)
		reports.GET("/mechanic-performance", controllers.GetMechanicPerformance)
	}

	return router
}
