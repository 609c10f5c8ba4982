package web

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/texpad/internal/project"
)

// statusForCode maps a domain error code to its HTTP status.
func statusForCode(code project.ErrorCode) int {
	switch code {
	case project.ErrCodeValidation:
		return http.StatusBadRequest
	case project.ErrCodeNotFound:
		return http.StatusNotFound
	case project.ErrCodeAlreadyExists, project.ErrCodeBusy:
		return http.StatusConflict
	case project.ErrCodePolicy:
		return http.StatusUnprocessableEntity
	case project.ErrCodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(ctx *gin.Context, status int, code, message string) {
	ctx.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message},
	})
}

// abortWithStoreError logs err and renders it with its mapped status.
func abortWithStoreError(ctx *gin.Context, op string, err error) {
	logger := gmw.GetLogger(ctx).With(zap.String("op", op))

	typed, ok := project.AsError(err)
	if !ok {
		logger.Error("store call failed", zap.Error(err))
		abortWithError(ctx, http.StatusInternalServerError, string(project.ErrCodePersistence), "internal error")
		return
	}

	status := statusForCode(typed.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("store call failed", zap.Error(err))
	} else {
		logger.Debug("store call rejected", zap.Error(err))
	}

	msg := typed.Message
	if msg == "" {
		msg = string(typed.Code)
	}
	abortWithError(ctx, status, string(typed.Code), msg)
}

func abortWithBindError(ctx *gin.Context, err error) {
	gmw.GetLogger(ctx).Debug("bad request body", zap.Error(err))
	abortWithError(ctx, http.StatusBadRequest, string(project.ErrCodeValidation), "invalid request body")
}

func (s *Server) listProjects(ctx *gin.Context) {
	ps, err := s.store.ListProjects(ctx)
	if err != nil {
		abortWithStoreError(ctx, "list_projects", err)
		return
	}

	resp, err := newListProjectsResponse(ps)
	if err != nil {
		abortWithStoreError(ctx, "list_projects", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) createProject(ctx *gin.Context) {
	req := new(CreateProjectRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortWithBindError(ctx, err)
		return
	}

	p, err := s.store.CreateProject(ctx, req.Name, req.Description)
	if err != nil {
		abortWithStoreError(ctx, "create_project", err)
		return
	}

	resp, err := newProjectWithFilesResponse(p)
	if err != nil {
		abortWithStoreError(ctx, "create_project", err)
		return
	}
	gmw.GetLogger(ctx).Info("project created",
		zap.String("project", p.Project.ID),
		zap.String("user", ctx.GetString(ctxKeyUsername)))
	ctx.JSON(http.StatusCreated, resp)
}

func (s *Server) getProject(ctx *gin.Context) {
	p, err := s.store.GetProjectWithFiles(ctx, ctx.Param("id"))
	if err != nil {
		abortWithStoreError(ctx, "get_project", err)
		return
	}

	resp, err := newProjectWithFilesResponse(p)
	if err != nil {
		abortWithStoreError(ctx, "get_project", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) createFile(ctx *gin.Context) {
	req := new(CreateFileRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortWithBindError(ctx, err)
		return
	}

	name, err := project.NormalizeFileName(req.Name)
	if err != nil {
		abortWithStoreError(ctx, "create_file", err)
		return
	}
	fileType, err := project.ParseFileType(req.FileType)
	if err != nil {
		abortWithStoreError(ctx, "create_file", err)
		return
	}

	spec := project.FileSpec{Name: name, FileType: fileType}
	if req.Content != nil {
		spec.Content = *req.Content
	} else {
		spec.Content = project.DefaultContent(name, fileType)
	}

	f, err := s.store.CreateFile(ctx, ctx.Param("id"), spec)
	if err != nil {
		abortWithStoreError(ctx, "create_file", err)
		return
	}

	resp, err := newFileResponse(f)
	if err != nil {
		abortWithStoreError(ctx, "create_file", err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

func (s *Server) getFile(ctx *gin.Context) {
	f, err := s.store.GetFile(ctx, ctx.Param("id"))
	if err != nil {
		abortWithStoreError(ctx, "get_file", err)
		return
	}

	resp, err := newFileResponse(f)
	if err != nil {
		abortWithStoreError(ctx, "get_file", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) renameFile(ctx *gin.Context) {
	req := new(RenameFileRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortWithBindError(ctx, err)
		return
	}

	if err := s.store.RenameFile(ctx, ctx.Param("id"), req.Name); err != nil {
		abortWithStoreError(ctx, "rename_file", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) deleteFile(ctx *gin.Context) {
	if err := s.store.DeleteFile(ctx, ctx.Param("id")); err != nil {
		abortWithStoreError(ctx, "delete_file", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) updateFileContent(ctx *gin.Context) {
	req := new(UpdateContentRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortWithBindError(ctx, err)
		return
	}

	if err := s.store.UpdateFileContent(ctx, ctx.Param("id"), *req.Content); err != nil {
		abortWithStoreError(ctx, "update_file_content", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
