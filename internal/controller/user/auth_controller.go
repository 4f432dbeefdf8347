package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Register godoc
// @Summary Register an account
// @Description Students, teachers and parents can self-register. A student may link an existing parent.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body dto.RegisterDTO true "Account data"
// @Success 201 {object} dto.UserDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Username taken"
// @Router /auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req dto.RegisterDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	user, err := c.authService.Register(ctx.Request.Context(), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to register")
		return
	}
	ctx.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary Exchange credentials for a bearer token
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body dto.LoginDTO true "Username and password"
// @Success 200 {object} dto.TokenDTO
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	token, err := c.authService.Login(ctx.Request.Context(), req)
	if err != nil {
		controller.RespondError(ctx, err, "Invalid username or password")
		return
	}
	ctx.JSON(http.StatusOK, token)
}

// Me godoc
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UserDTO
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	user, err := c.authService.Me(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to load profile")
		return
	}
	ctx.JSON(http.StatusOK, user)
}
