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

// Package page renders the HTML pages of the web front end.
package page

import (
	"embed"
	"html/template"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/fawa-io/tablestat/pkg/table"
)

// PreviewRows is how many rows of an upload are shown back to the user.
const PreviewRows = 8

//go:embed templates/*.html
var templatesFS embed.FS

type tableView struct {
	Class string
	Table *table.Table
}

var funcs = template.FuncMap{
	"contains": func(list []string, s string) bool { return slices.Contains(list, s) },
	"tableView": func(class string, t *table.Table) tableView {
		return tableView{Class: class, Table: t}
	},
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

// HomeView is everything the analysis page can show. Zero fields are not
// rendered.
type HomeView struct {
	ErrorMessage string
	InfoMessage  string

	SourceFilename   string
	DatasetID        string
	Preview          *table.Table
	PreviewRowCount  int
	AvailableColumns []string
	SelectedColumns  []string

	Result         *table.Table
	ResultID       string
	ResultRowCount int

	MaxContentLengthMB int
}

// WithDataset fills the preview and column picker from an uploaded table.
func (v HomeView) WithDataset(id, filename string, t *table.Table) HomeView {
	head := t.Head(PreviewRows)
	v.DatasetID = id
	v.SourceFilename = filename
	v.Preview = head
	v.PreviewRowCount = head.Len()
	v.AvailableColumns = t.Columns
	return v
}

// RenderHome writes the analysis page with the given status.
func RenderHome(c *gin.Context, status int, v HomeView) {
	c.HTML(status, "home.html", v)
}

// RenderError writes a bare error page.
func RenderError(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", gin.H{"Status": status, "Message": msg})
}
