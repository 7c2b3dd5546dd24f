package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/earlywake/backend/middleware"
	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/storage"
	"github.com/earlywake/backend/utils"
)

// principal reads the caller placed in the context by middleware.AuthRequired.
func principal(ctx *gin.Context) services.Principal {
	return services.Principal{
		ID:       ctx.GetString(middleware.ContextPrincipalIDKey),
		Username: ctx.GetString(middleware.ContextUsernameKey),
		Role:     ctx.GetString(middleware.ContextRoleKey),
	}
}

// respondError maps service errors onto the response envelope.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		utils.Error(ctx, http.StatusUnauthorized, 40110, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40310, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40901, err.Error())
	default:
		utils.Logger.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50001, "internal server error")
	}
}

// formPhoto returns the optional multipart "photo" file. close must always be called.
func formPhoto(ctx *gin.Context) (upload *storage.Upload, close func(), err error) {
	noop := func() {}
	fh, err := ctx.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	upload, closer, err := storage.FromFileHeader(fh)
	if err != nil {
		return nil, noop, err
	}
	return upload, func() { _ = closer.Close() }, nil
}

// bindOptional binds a JSON, urlencoded or multipart body. An empty body leaves req untouched.
func bindOptional(ctx *gin.Context, req interface{}) error {
	if ctx.Request.ContentLength == 0 {
		return nil
	}
	return ctx.ShouldBind(req)
}
