package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"socialgen_dev_v1_202609/internal/controller"
	"socialgen_dev_v1_202609/internal/middleware"

	_ "socialgen_dev_v1_202609/docs"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, contentCtl *controller.ContentController) {
	// 1. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 2. API 路由组
	api := r.Group("/api")
	{
		// content 内容生成
		content := api.Group("/content")
		{
			// POST /api/content/generate
			// 一次编排包含多次付费调用，用户维度冷却限流
			content.POST("/generate", middleware.GenerateRateLimit(0), contentCtl.Generate)

			// GET /api/content
			content.GET("", contentCtl.ListPackages)
			// GET /api/content/:id
			content.GET("/:id", contentCtl.GetPackage)
			// GET /api/content/assets/:asset_id/url
			content.GET("/assets/:asset_id/url", contentCtl.GetAssetURL)
		}

		// usage 用量统计
		api.GET("/usage", contentCtl.GetUsage)
	}
}
