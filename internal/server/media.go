package server

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/mediagrab/internal/core/downloader"
	"github.com/guiyumin/mediagrab/internal/core/extractor"
)

const platformKey = "platform"

// InfoRequest is the request body for POST /api/:platform/info
type InfoRequest struct {
	URL string `json:"url"`
}

// DownloadRequest is the request body for the download routes
type DownloadRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// FileInfo is the response for POST /api/:platform/download-info
type FileInfo struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	Format      string `json:"format"`
	Quality     string `json:"quality"`
	DownloadURL string `json:"downloadUrl"`
}

func platformOf(c *gin.Context) *extractor.Platform {
	return c.MustGet(platformKey).(*extractor.Platform)
}

func (s *Server) handleInfo(c *gin.Context) {
	p := platformOf(c)

	var req InfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	info, err := s.svc.FetchMetadata(c.Request.Context(), p.ID, req.URL)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    info,
		Message: "ok",
	})
}

func (s *Server) download(c *gin.Context) (*downloader.Result, bool) {
	p := platformOf(c)

	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return nil, false
	}

	res, err := s.svc.Download(c.Request.Context(), p.ID, req.URL, req.Format, req.Quality)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return res, true
}

// handleDownloadInfo downloads and returns a reference to the stored file
func (s *Server) handleDownloadInfo(c *gin.Context) {
	res, ok := s.download(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: FileInfo{
			FileName:    res.FileName,
			FileSize:    res.Size,
			Format:      res.Format,
			Quality:     res.Quality,
			DownloadURL: fileURL(platformOf(c).ID, res.FileName),
		},
		Message: "download completed",
	})
}

// handleDownload downloads and streams the file back as an attachment
func (s *Server) handleDownload(c *gin.Context) {
	res, ok := s.download(c)
	if !ok {
		return
	}
	s.serveFile(c, res.FileName)
}

func (s *Server) handleFile(c *gin.Context) {
	s.serveFile(c, c.Param("filename"))
}

func (s *Server) serveFile(c *gin.Context, name string) {
	f, info, err := s.svc.OpenFile(name)
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()})
	c.Header("Content-Disposition", disposition)
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
