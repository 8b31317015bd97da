package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mk-Guvi/at-chatbot-backend/config"
	"github.com/mk-Guvi/at-chatbot-backend/controller"
	"github.com/mk-Guvi/at-chatbot-backend/dao"
	"github.com/mk-Guvi/at-chatbot-backend/logic"
	"github.com/mk-Guvi/at-chatbot-backend/middleware"
	"github.com/mk-Guvi/at-chatbot-backend/models"
	"github.com/mk-Guvi/at-chatbot-backend/script"
)

func main() {
	// Initialize config
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run main.go <config.yaml>")
	}
	configFile := os.Args[1]
	if err := config.LoadConfig(configFile); err != nil {
		log.Fatalf("Failed to load config from %s: %v", configFile, err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := gorm.Open(postgres.Open(config.GlobalConfig.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.ProgressRecord{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Load the script catalog once; it is immutable afterwards
	catalog, err := script.Load(config.GlobalConfig.Chatbot.ScriptPath)
	if err != nil {
		log.Fatalf("Failed to load chatbot script: %v", err)
	}

	// Initialize DAOs
	userDAO := dao.NewUserDAO(db)
	convoDAO := dao.NewConversationDAO(db)
	messageDAO := dao.NewMessageDAO(db)
	progressDAO := dao.NewProgressDAO(db)

	// Initialize Logics; the engine and the message path share one per-chat
	// lock table
	locks := logic.NewChatLocks()
	userLogic := logic.NewUserLogic(userDAO, logger)
	convoLogic := logic.NewConversationLogic(userDAO, convoDAO, messageDAO, progressDAO, catalog, locks, logger)
	messageLogic := logic.NewMessageLogic(userDAO, convoDAO, messageDAO, catalog, locks, logger)
	engine := logic.NewConversationEngine(convoDAO, messageDAO, progressDAO, catalog, locks, logger)

	// Initialize Controllers
	userCtrl := controller.NewUserController(userLogic)
	chatbotCtrl := controller.NewChatbotController(engine, convoLogic, messageLogic, userLogic)

	// Setup Gin router
	r := gin.Default()
	v1 := r.Group("/api/v1")
	{
		v1.POST("/user/login", userCtrl.Login)
		v1.POST("/user/", userCtrl.CreateUser)
		v1.GET("/user/", middleware.Auth, userCtrl.GetAllUsers)
		v1.GET("/user/chatbot", middleware.Auth, userCtrl.GetChatbotUser)
		v1.GET("/user/:user_id", middleware.Auth, userCtrl.GetUser)

		v1.POST("/chatbot/create_chat", middleware.Auth, chatbotCtrl.CreateChat)
		v1.POST("/chatbot/get_response/:chat_id", middleware.Auth, chatbotCtrl.GetResponse)
		v1.POST("/chatbot/add_chat/:chat_id", middleware.Auth, chatbotCtrl.AddChatMessage)
		v1.PUT("/chatbot/update_chat_message/:chat_id", middleware.Auth, chatbotCtrl.UpdateChatMessage)
		v1.DELETE("/chatbot/delete_chat_message/:chat_id", middleware.Auth, chatbotCtrl.DeleteChatMessage)
		v1.GET("/chatbot/", middleware.Auth, chatbotCtrl.GetUserChats)
		v1.GET("/chatbot/:chat_id", middleware.Auth, chatbotCtrl.GetAllChatMessages)
	}

	// Run server
	if err := r.Run(fmt.Sprintf(":%d", config.GlobalConfig.Server.Port)); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
