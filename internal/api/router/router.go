package router

import (
	"github.com/wb-go/wbf/ginext"

	accounthandler "github.com/agrosight/ndvi-vault/internal/api/handlers/account"
	authhandler "github.com/agrosight/ndvi-vault/internal/api/handlers/auth"
	imagehandler "github.com/agrosight/ndvi-vault/internal/api/handlers/image"
	"github.com/agrosight/ndvi-vault/internal/middleware"
)

func Setup(jwtSecret string, ah *authhandler.Handler, ih *imagehandler.Handler, ach *accounthandler.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/auth/login", ah.Login) // issuing session tokens

	images := api.Group("/images")
	images.Use(middleware.RequireAuth(jwtSecret))

	images.POST("", middleware.RequireAdmin(), ih.Upload) // uploading image for a client account
	images.GET("", ih.List)                               // listing own (or, for admins, any) images
	images.GET("/:id", ih.Get)                            // getting image metadata by id
	images.DELETE("/:id", ih.Delete)                      // deleting image by id
	images.POST("/signed-url", ih.SignedURL)              // time-limited access to stored objects

	accounts := api.Group("/accounts")
	accounts.Use(middleware.RequireAuth(jwtSecret), middleware.RequireAdmin())

	accounts.POST("", ach.Create)       // creating account
	accounts.GET("", ach.List)          // listing accounts
	accounts.DELETE("/:id", ach.Delete) // deleting account with cascade

	return r
}
