package upload

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/fileutil"
	"loom/internal/pipeline"
	"loom/internal/services"
)

// Archiver copies processed media into the long-term library, organized by
// platform. It stands in for a remote archive: the library directory may be
// a mounted bucket or NFS share.
type Archiver struct {
	enabled     bool
	libraryDir  string
	linkBaseURL string
}

// NewArchiver builds the uploader. linkBaseURL, when set, is used to derive a
// shareable link for the archived file.
func NewArchiver(enabled bool, libraryDir, linkBaseURL string) *Archiver {
	return &Archiver{
		enabled:     enabled,
		libraryDir:  strings.TrimSpace(libraryDir),
		linkBaseURL: strings.TrimRight(strings.TrimSpace(linkBaseURL), "/"),
	}
}

// Run archives the file at localPath. A disabled archiver reports a skip,
// which the pipeline treats as success.
func (a *Archiver) Run(ctx context.Context, localPath, platform string) pipeline.Result {
	if !a.enabled {
		return pipeline.Skip("uploads disabled")
	}
	if err := ctx.Err(); err != nil {
		return pipeline.Fail(err.Error())
	}
	localPath = strings.TrimSpace(localPath)
	if localPath == "" {
		return pipeline.Fail(services.Wrap(services.ErrValidation, "upload", "run", "local path required", nil).Error())
	}
	if a.libraryDir == "" {
		return pipeline.Fail(services.Wrap(services.ErrConfiguration, "upload", "run", "library directory not configured", nil).Error())
	}

	platform = strings.TrimSpace(platform)
	if platform == "" {
		platform = "unknown"
	}
	destDir := filepath.Join(a.libraryDir, platform)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "upload", "run", "create library directory", err).Error())
	}

	dest := filepath.Join(destDir, filepath.Base(localPath))
	if err := fileutil.CopyFileVerified(localPath, dest); err != nil {
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "upload", "run", "archive copy failed", err).Error())
	}

	fields := []pipeline.Field{
		pipeline.F(pipeline.KeyLocalPath, dest),
	}
	if a.linkBaseURL != "" {
		fields = append(fields, pipeline.F(pipeline.KeyLinks,
			[]string{a.linkBaseURL + "/" + platform + "/" + filepath.Base(localPath)}))
	}
	return pipeline.Ok(fields...)
}
