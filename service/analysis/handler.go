// Copyright 2025 The fawa Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package analysis

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawa-io/tablestat/pkg/analysis"
	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/storage"
	"github.com/fawa-io/tablestat/pkg/table"
	"github.com/fawa-io/tablestat/service/page"
)

const (
	msgChooseFile      = "Please choose a CSV or Excel file before submitting."
	msgUploadFailed    = "Unexpected error while processing your file. Please try again."
	msgMissingDataset  = "Missing dataset context. Upload a file and try again."
	msgDatasetExpired  = "Your uploaded data is unavailable or expired. Please upload the file again."
	msgNoSelection     = "Please select at least one column to analyze."
	msgAnalysisFailed  = "Unexpected error while analyzing the selected columns. Please try again."
	msgResultExpired   = "The requested result is unavailable or has expired. Upload again to regenerate."
	msgUploadSucceeded = "File uploaded successfully. Select one or more columns to generate statistical analysis."
)

// Handler serves upload, statistics and download. Uploaded tables and
// results are only reachable through the stores for TTL after creation.
type Handler struct {
	Datasets           storage.Datasets
	Results            storage.Results
	Engine             analysis.Engine
	TTL                time.Duration
	MaxContentLengthMB int
}

// Register mounts the analysis routes and their older aliases on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/analysis/upload", h.LimitBody(), h.Upload)
	r.POST("/analysis/statistics", h.LimitBody(), h.Statistics)
	r.GET("/analysis/download/:id", h.Download)

	r.POST("/analyze", h.LimitBody(), h.Upload)
	r.POST("/analyze/column", h.LimitBody(), h.Statistics)
	r.GET("/download/:id", h.Download)
}

// multipartMemory matches gin's default MaxMultipartMemory.
const multipartMemory = 32 << 20

func (h *Handler) maxBytes() int64 {
	return int64(h.MaxContentLengthMB) * 1024 * 1024
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("File is too large. The maximum size is %d MB.", h.MaxContentLengthMB)
}

func (h *Handler) home() page.HomeView {
	return page.HomeView{MaxContentLengthMB: h.MaxContentLengthMB}
}

// LimitBody rejects declared oversized bodies up front and caps the rest
// while they are read.
func (h *Handler) LimitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > h.maxBytes() {
			v := h.home()
			v.ErrorMessage = h.tooLargeMessage()
			page.RenderHome(c, http.StatusRequestEntityTooLarge, v)
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes())
		c.Next()
	}
}

// Upload parses the file in the data_file field, stores it and shows a
// preview with the column picker.
func (h *Handler) Upload(c *gin.Context) {
	v := h.home()

	fh, err := c.FormFile("data_file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			v.ErrorMessage = h.tooLargeMessage()
			page.RenderHome(c, http.StatusRequestEntityTooLarge, v)
			return
		}
		v.ErrorMessage = msgChooseFile
		page.RenderHome(c, http.StatusBadRequest, v)
		return
	}

	data, err := readUpload(fh)
	if err != nil {
		fwlog.Errorf("read upload %q: %v", fh.Filename, err)
		v.ErrorMessage = msgUploadFailed
		page.RenderHome(c, http.StatusInternalServerError, v)
		return
	}

	t, err := table.Parse(fh.Filename, data)
	if err != nil {
		var perr *table.ParseError
		if errors.As(err, &perr) {
			fwlog.Debugf("rejected upload %q: %v", fh.Filename, err)
			v.ErrorMessage = perr.Msg
			page.RenderHome(c, http.StatusBadRequest, v)
			return
		}
		fwlog.Errorf("parse upload %q: %v", fh.Filename, err)
		v.ErrorMessage = msgUploadFailed
		page.RenderHome(c, http.StatusInternalServerError, v)
		return
	}

	filename := fh.Filename
	if filename == "" {
		filename = storage.DefaultSourceFilename
	}
	id, err := h.Datasets.Save(t, filename)
	if err != nil {
		fwlog.Errorf("save dataset: %v", err)
		v.ErrorMessage = msgUploadFailed
		page.RenderHome(c, http.StatusInternalServerError, v)
		return
	}
	fwlog.Infof("stored dataset %s from %q (%d rows, %d columns)", id, filename, t.Len(), len(t.Columns))

	v = v.WithDataset(id, filename, t)
	v.InfoMessage = msgUploadSucceeded
	page.RenderHome(c, http.StatusOK, v)
}

// parseForm reads the request body into the form up front. gin's
// PostForm drops parse errors, which would hide a body cut off by
// LimitBody.
func parseForm(c *gin.Context) error {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		return c.Request.ParseMultipartForm(multipartMemory)
	}
	return c.Request.ParseForm()
}

// Statistics runs the analysis engine on the selected columns of a stored
// dataset and stores the result for download.
func (h *Handler) Statistics(c *gin.Context) {
	v := h.home()

	if err := parseForm(c); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			v.ErrorMessage = h.tooLargeMessage()
			page.RenderHome(c, http.StatusRequestEntityTooLarge, v)
			return
		}
		fwlog.Debugf("unreadable statistics form: %v", err)
	}

	datasetID := strings.TrimSpace(c.PostForm("dataset_id"))
	selected := selectedColumns(c)
	if datasetID == "" {
		v.ErrorMessage = msgMissingDataset
		page.RenderHome(c, http.StatusBadRequest, v)
		return
	}

	t, filename, err := h.Datasets.Load(datasetID, h.TTL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			v.ErrorMessage = msgDatasetExpired
			page.RenderHome(c, http.StatusNotFound, v)
			return
		}
		fwlog.Errorf("load dataset %s: %v", datasetID, err)
		v.ErrorMessage = msgAnalysisFailed
		page.RenderHome(c, http.StatusInternalServerError, v)
		return
	}

	v = v.WithDataset(datasetID, filename, t)
	if len(selected) == 0 {
		v.ErrorMessage = msgNoSelection
		page.RenderHome(c, http.StatusBadRequest, v)
		return
	}
	v.SelectedColumns = selected

	if missing := analysis.MissingColumns(t, selected); len(missing) > 0 {
		v.ErrorMessage = "Selected columns are not available in the uploaded data: " + strings.Join(missing, ", ")
		page.RenderHome(c, http.StatusBadRequest, v)
		return
	}

	res, err := h.Engine.Summarize(c.Request.Context(), t, selected)
	if err != nil {
		var aerr *analysis.Error
		if errors.As(err, &aerr) {
			fwlog.Warnf("analysis request failed: %v", aerr)
			v.ErrorMessage = aerr.Msg
			page.RenderHome(c, http.StatusBadRequest, v)
			return
		}
		fwlog.Errorf("unexpected error during statistical analysis: %v", err)
		v.ErrorMessage = msgAnalysisFailed
		page.RenderHome(c, http.StatusInternalServerError, v)
		return
	}

	resultID, err := h.Results.Save(res)
	if err != nil {
		fwlog.Errorf("save result: %v", err)
		v.ErrorMessage = msgAnalysisFailed
		page.RenderHome(c, http.StatusInternalServerError, v)
		return
	}

	noun := "columns"
	if len(selected) == 1 {
		noun = "column"
	}
	v.InfoMessage = fmt.Sprintf("Statistical analysis generated successfully for %d %s. You can select another set and run again.", len(selected), noun)
	v.Result = res
	v.ResultID = resultID
	v.ResultRowCount = res.Len()
	page.RenderHome(c, http.StatusOK, v)
}

// Download serves a stored result as a CSV attachment.
func (h *Handler) Download(c *gin.Context) {
	id := c.Param("id")
	data, err := h.Results.Load(id, h.TTL)
	if err != nil {
		v := h.home()
		if errors.Is(err, storage.ErrNotFound) {
			v.ErrorMessage = msgResultExpired
			page.RenderHome(c, http.StatusNotFound, v)
			return
		}
		fwlog.Errorf("load result %s: %v", id, err)
		v.ErrorMessage = msgAnalysisFailed
		page.RenderHome(c, http.StatusInternalServerError, v)
		return
	}

	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="analysis_%s.csv"`, short))
	c.Data(http.StatusOK, "text/csv", data)
}

// selectedColumns reads column_names and the older single column_name
// field, trimmed and without repeats, in submission order.
func selectedColumns(c *gin.Context) []string {
	raw := c.PostFormArray("column_names")
	if legacy := strings.TrimSpace(c.PostForm("column_name")); legacy != "" {
		raw = append(raw, legacy)
	}
	selected, err := analysis.NormalizeSelection(raw)
	if err != nil {
		return nil
	}
	return selected
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
