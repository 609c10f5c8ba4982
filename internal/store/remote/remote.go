// Package remote implements project.Store against a texpad API server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/jinzhu/copier"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/internal/web"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 20 * time.Second

// maxErrorBody caps how much of a non-JSON error body is kept.
const maxErrorBody = 4 << 10

// Store is a project.Store speaking the texpad REST API.
type Store struct {
	baseURL string
	token   string
	httpcli *http.Client
	logger  logSDK.Logger
}

// New returns a client for the API rooted at baseURL, e.g. "http://127.0.0.1:8080".
// token is sent as a bearer token when non-empty.
func New(baseURL, token string, timeout time.Duration, logger logSDK.Logger) (*Store, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrapf(err, "parse api url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("api url %q must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Logger.Named("remote_store")
	}

	httpcli, err := gutils.NewHTTPClient(
		gutils.WithHTTPClientTimeout(timeout),
	)
	if err != nil {
		return nil, errors.Wrap(err, "new http client")
	}

	return &Store{
		baseURL: strings.TrimRight(u.String(), "/"),
		token:   token,
		httpcli: httpcli,
		logger:  logger,
	}, nil
}

// do sends body as JSON and decodes a successful response into out.
func (s *Store) do(ctx context.Context, op, method, path string, body, out any) error {
	defer func(start time.Time) {
		metrics.ObserveStoreOp("remote", op, time.Since(start))
	}(time.Now())

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpcli.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Debug("close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// decodeError rebuilds the typed error rendered by the API.
func decodeError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return errors.Wrapf(err, "read error body of status %d", resp.StatusCode)
	}

	var body web.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Code == "" {
		return project.Errorf(project.ErrCodePersistence, "api returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	code := project.ErrorCode(body.Error.Code)
	switch code {
	case project.ErrCodeValidation, project.ErrCodePolicy, project.ErrCodeNotFound,
		project.ErrCodeAlreadyExists, project.ErrCodeBusy, project.ErrCodePersistence:
	default:
		return project.Errorf(project.ErrCodePersistence, "api returned %d: %s: %s",
			resp.StatusCode, body.Error.Code, body.Error.Message)
	}
	return project.NewError(code, body.Error.Message)
}

func toProjectWithFiles(resp *web.ProjectWithFilesResponse) (*project.ProjectWithFiles, error) {
	p := &project.ProjectWithFiles{Files: []project.File{}}
	if err := copier.Copy(&p.Project, &resp.Project); err != nil {
		return nil, errors.Wrap(err, "copy project")
	}
	if err := copier.Copy(&p.Files, &resp.Files); err != nil {
		return nil, errors.Wrap(err, "copy files")
	}
	return p, nil
}

// CreateProject creates a project on the server.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*project.ProjectWithFiles, error) {
	resp := new(web.ProjectWithFilesResponse)
	if err := s.do(ctx, "create_project", http.MethodPost, "/api/projects",
		web.CreateProjectRequest{Name: name, Description: description}, resp); err != nil {
		return nil, err
	}
	return toProjectWithFiles(resp)
}

// ListProjects lists the projects on the server.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	resp := new(web.ListProjectsResponse)
	if err := s.do(ctx, "list_projects", http.MethodGet, "/api/projects", nil, resp); err != nil {
		return nil, err
	}

	ps := []project.Project{}
	if err := copier.Copy(&ps, &resp.Projects); err != nil {
		return nil, errors.Wrap(err, "copy projects")
	}
	return ps, nil
}

// GetProjectWithFiles fetches a project and its files.
func (s *Store) GetProjectWithFiles(ctx context.Context, projectID string) (*project.ProjectWithFiles, error) {
	resp := new(web.ProjectWithFilesResponse)
	if err := s.do(ctx, "get_project", http.MethodGet,
		"/api/projects/"+url.PathEscape(projectID), nil, resp); err != nil {
		return nil, err
	}
	return toProjectWithFiles(resp)
}

// GetFile fetches one file.
func (s *Store) GetFile(ctx context.Context, fileID string) (*project.File, error) {
	resp := new(web.FileResponse)
	if err := s.do(ctx, "get_file", http.MethodGet,
		"/api/files/"+url.PathEscape(fileID), nil, resp); err != nil {
		return nil, err
	}

	f := new(project.File)
	if err := copier.Copy(f, resp); err != nil {
		return nil, errors.Wrap(err, "copy file")
	}
	return f, nil
}

// CreateFile creates a file with exactly spec.Content.
func (s *Store) CreateFile(ctx context.Context, projectID string, spec project.FileSpec) (*project.File, error) {
	content := spec.Content
	resp := new(web.FileResponse)
	if err := s.do(ctx, "create_file", http.MethodPost,
		fmt.Sprintf("/api/projects/%s/files", url.PathEscape(projectID)),
		web.CreateFileRequest{Name: spec.Name, FileType: string(spec.FileType), Content: &content},
		resp); err != nil {
		return nil, err
	}

	f := new(project.File)
	if err := copier.Copy(f, resp); err != nil {
		return nil, errors.Wrap(err, "copy file")
	}
	s.logger.Debug("file created", zap.String("file", f.ID), zap.String("name", f.Name))
	return f, nil
}

// RenameFile renames a file on the server.
func (s *Store) RenameFile(ctx context.Context, fileID, newName string) error {
	return s.do(ctx, "rename_file", http.MethodPatch, "/api/files/"+url.PathEscape(fileID),
		web.RenameFileRequest{Name: newName}, nil)
}

// DeleteFile deletes a file on the server.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	return s.do(ctx, "delete_file", http.MethodDelete, "/api/files/"+url.PathEscape(fileID), nil, nil)
}

// UpdateFileContent replaces the content of a file on the server.
func (s *Store) UpdateFileContent(ctx context.Context, fileID, content string) error {
	return s.do(ctx, "update_content", http.MethodPut,
		"/api/files/"+url.PathEscape(fileID)+"/content",
		web.UpdateContentRequest{Content: &content}, nil)
}
