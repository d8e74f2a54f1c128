package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/errors"
)

// listPageSize is the Drive page size per listing call; 1000 is the API
// maximum.
const listPageSize = 1000

// listFields limits responses to the fields the connector reads.
const listFields = "nextPageToken, files(id, name, mimeType, size, modifiedTime, webViewLink, trashed)"

// driveService implements driveAPI over the real Drive v3 client.
type driveService struct {
	svc *drive.Service
}

// newDriveService builds a read-only Drive client from the OAuth client
// credentials and the cached offline token referenced by the config.
func newDriveService(ctx context.Context, cfg config.GDriveSourceConfig) (*driveService, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, errors.New(errors.ErrCodeAuthFailed,
			fmt.Sprintf("failed to read gdrive credentials file: %s", cfg.CredentialsFile), err).
			WithSuggestion("download an OAuth client credentials JSON from the Google Cloud console")
	}

	oauthCfg, err := google.ConfigFromJSON(creds, drive.DriveReadonlyScope)
	if err != nil {
		return nil, errors.New(errors.ErrCodeAuthFailed, "invalid gdrive credentials file", err)
	}

	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, errors.New(errors.ErrCodeAuthFailed,
			fmt.Sprintf("failed to read gdrive token file: %s", cfg.TokenFile), err).
			WithSuggestion("complete the OAuth flow once to cache an offline token")
	}

	// The token source refreshes the cached token transparently when it
	// expires.
	svc, err := drive.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, errors.NetworkError("failed to create drive client", err)
	}
	return &driveService{svc: svc}, nil
}

// tokenFromFile loads a cached oauth2 token.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

func (s *driveService) ListPage(ctx context.Context, parentID, pageToken string) (*drive.FileList, error) {
	query := "trashed = false"
	if parentID != "" {
		query = fmt.Sprintf("'%s' in parents and trashed = false", parentID)
	}
	return s.svc.Files.List().
		Q(query).
		PageSize(listPageSize).
		Fields(listFields).
		PageToken(pageToken).
		Context(ctx).
		Do()
}

func (s *driveService) Export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	resp, err := s.svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *driveService) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := s.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
