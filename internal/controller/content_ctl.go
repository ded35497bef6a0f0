package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"socialgen_dev_v1_202609/internal/api/dto"
	"socialgen_dev_v1_202609/internal/model"
	"socialgen_dev_v1_202609/internal/repository"
	"socialgen_dev_v1_202609/internal/service"
)

// ==================== 控制器 ====================

// ContentController 内容生成控制器
type ContentController struct {
	orchestrator *service.OrchestratorService
	profileRepo  repository.BusinessProfileRepository
	packageRepo  repository.ContentPackageRepository
	logRepo      repository.AICallLogRepository
	storage      service.StorageProvider // 可为 nil（存储未配置）
}

func NewContentController(
	orchestrator *service.OrchestratorService,
	profileRepo repository.BusinessProfileRepository,
	packageRepo repository.ContentPackageRepository,
	logRepo repository.AICallLogRepository,
	storage service.StorageProvider,
) *ContentController {
	return &ContentController{
		orchestrator: orchestrator,
		profileRepo:  profileRepo,
		packageRepo:  packageRepo,
		logRepo:      logRepo,
		storage:      storage,
	}
}

// ==================== API 方法 ====================

// Generate 生成内容包
// @Summary 为业务画像生成完整内容包
// @Tags Content
// @Accept json
// @Produce json
// @Param body body dto.GenerateContentRequest true "生成请求"
// @Success 201 {object} dto.GenerateContentResult
// @Router /api/content/generate [post]
func (ctrl *ContentController) Generate(c *gin.Context) {
	var req dto.GenerateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	// TODO: 从JWT中获取UserID
	if req.OwnerID == 0 {
		req.OwnerID = 1 // 临时默认值
	}

	profile := &model.BusinessProfile{
		OwnerID:   req.OwnerID,
		Niche:     req.Niche,
		Audience:  req.Audience,
		Objective: req.Objective,
		Tone:      req.Tone,
		Platforms: req.Platforms,
	}

	ctx := c.Request.Context()
	if err := ctrl.profileRepo.Create(ctx, profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "保存业务画像失败",
		})
		return
	}

	pkg, err := ctrl.orchestrator.ProcessRequest(ctx, req.OwnerID, profile, &service.GenerateOptions{
		ContentTypes: req.ContentTypes,
		VideoTypes:   req.VideoTypes,
	})
	if err != nil {
		// 对外只暴露概括性信息，细节进服务端日志与调用日志表
		status := http.StatusInternalServerError
		message := "内容生成失败，请稍后重试"

		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			status = http.StatusUnprocessableEntity
			message = "内容策略分析未通过校验，请调整业务描述后重试"
		} else if errors.Is(err, service.ErrAllPiecesFailed) {
			message = "所有内容条目生成失败，请稍后重试"
		}

		c.JSON(status, gin.H{
			"code":    status,
			"message": message,
		})
		return
	}

	if err := ctrl.packageRepo.Create(ctx, pkg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "保存内容包失败",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.GenerateContentResult{
			PackageID:       pkg.ID,
			StrategySummary: pkg.StrategySummary,
			Pieces:          pkg.Pieces,
			ContentIdeas:    pkg.ContentIdeas,
			TotalTokens:     pkg.TotalTokens,
			TotalCostUSD:    pkg.TotalCostUSD,
			FailureManifest: pkg.FailureManifest,
		},
	})
}

// GetPackage 获取内容包详情
// @Summary 获取内容包详情
// @Tags Content
// @Param id path int true "内容包ID"
// @Success 200 {object} model.ContentPackage
// @Router /api/content/{id} [get]
func (ctrl *ContentController) GetPackage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的内容包ID",
		})
		return
	}

	pkg, err := ctrl.packageRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": "内容包不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    pkg,
	})
}

// ListPackages 内容包列表
// @Summary 分页查询内容包
// @Tags Content
// @Param owner_id query int false "用户ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.PackageListResult
// @Router /api/content [get]
func (ctrl *ContentController) ListPackages(c *gin.Context) {
	var query dto.ListPackagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	items, total, err := ctrl.packageRepo.List(c.Request.Context(), repository.PackageFilter{
		OwnerID:  query.OwnerID,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.PackageListResult{
			Total:    total,
			Page:     query.Page,
			PageSize: query.PageSize,
			Items:    items,
		},
	})
}

// 签名地址有效期
const assetURLExpires = 15 * time.Minute

// GetAssetURL 获取媒体资产访问地址
// @Summary 获取媒体资产的访问地址，私有桶返回限时签名地址
// @Tags Content
// @Param asset_id path string true "资产ID"
// @Success 200 {object} dto.AssetURLResult
// @Router /api/content/assets/{asset_id}/url [get]
func (ctrl *ContentController) GetAssetURL(c *gin.Context) {
	assetID := c.Param("asset_id")
	if assetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的资产ID",
		})
		return
	}

	asset, err := ctrl.packageRepo.GetAssetByAssetID(c.Request.Context(), assetID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": "资产不存在",
		})
		return
	}

	result := dto.AssetURLResult{AssetID: asset.AssetID, URL: asset.PermanentURL}
	if result.URL == "" {
		result.URL = asset.EphemeralURL
	}

	// 已持久化的自有对象可能在私有桶，换成限时签名地址
	if ctrl.storage != nil && asset.State == model.PersistenceStatePersisted && !asset.Placeholder {
		signed, err := ctrl.storage.GetSignedURL(c.Request.Context(), result.URL, assetURLExpires)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "生成访问地址失败",
			})
			return
		}
		result.URL = signed
		result.ExpiresInSeconds = int(assetURLExpires.Seconds())
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    result,
	})
}

// GetUsage 用量统计
// @Summary 查询用户近30天AI用量
// @Tags Usage
// @Param owner_id query int true "用户ID"
// @Success 200 {object} repository.AIUsageStats
// @Router /api/usage [get]
func (ctrl *ContentController) GetUsage(c *gin.Context) {
	ownerID, err := strconv.ParseInt(c.Query("owner_id"), 10, 64)
	if err != nil || ownerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的用户ID",
		})
		return
	}

	end := time.Now()
	start := end.AddDate(0, 0, -30)
	stats, err := ctrl.logRepo.GetUsageByOwner(c.Request.Context(), ownerID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    stats,
	})
}
